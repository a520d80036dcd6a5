package identity

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/keeperd/internal/blobrepo"
	"github.com/kazz187/keeperd/internal/eventbus"
	"github.com/kazz187/keeperd/pkg/secure"
	"github.com/kazz187/keeperd/pkg/storage"
)

func newSession(t *testing.T) *secure.Session {
	t.Helper()
	key, err := secure.NewKey()
	require.NoError(t, err)
	s := secure.NewSession()
	require.NoError(t, s.SetKey(key))
	return s
}

func newRepo(t *testing.T) *blobrepo.Repository {
	t.Helper()
	st, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return blobrepo.New(st, "identity/connected.enc", "identity")
}

func testIdentity() *Identity {
	return &Identity{
		Commitment: "1234567890",
		Secret:     `["0x01","0x02"]`,
		Metadata: Metadata{
			Name:      "Account #1",
			URLOrigin: "https://app.example",
			Groups:    []Group{{ID: "g1", Name: "Voters"}},
		},
	}
}

func TestService_LockedByDefault(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newRepo(t), newSession(t).For("identity"))

	_, err := svc.GetConnectedIdentity(ctx)
	assert.ErrorIs(t, err, ErrLocked)
	assert.ErrorIs(t, svc.Connect(ctx, testIdentity()), ErrLocked)
	assert.ErrorIs(t, svc.Disconnect(ctx), ErrLocked)
}

func TestService_ConnectPersists(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	session := newSession(t)
	bus := eventbus.New()
	_, events := bus.Subscribe(4)

	svc := NewService(repo, session.For("identity"), WithEventBus(bus))
	_, err := svc.Unlock(ctx)
	require.NoError(t, err)

	got, err := svc.GetConnectedIdentity(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, svc.Connect(ctx, testIdentity()))
	ev := <-events
	assert.Equal(t, eventbus.EventIdentityChanged, ev.Type)
	assert.Equal(t, "1234567890", ev.ResourceID)

	blob, ok, err := repo.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, blob, "0x01")

	reloaded := NewService(repo, session.For("identity"))
	_, err = reloaded.Unlock(ctx)
	require.NoError(t, err)
	got, err = reloaded.GetConnectedIdentity(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(testIdentity(), got); diff != "" {
		t.Errorf("identity mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, reloaded.Disconnect(ctx))
	got, err = reloaded.GetConnectedIdentity(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	_, ok, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_LockDropsIdentity(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newRepo(t), newSession(t).For("identity"))
	_, err := svc.Unlock(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.Connect(ctx, testIdentity()))

	require.NoError(t, svc.Lock(ctx))
	_, err = svc.GetConnectedIdentity(ctx)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestService_UnlockWithWrongPurpose(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	session := newSession(t)
	svc := NewService(repo, session.For("identity"))
	_, err := svc.Unlock(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.Connect(ctx, testIdentity()))

	other := NewService(repo, session.For("approvals"))
	ok, err := other.Unlock(ctx)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestService_ConnectRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newRepo(t), newSession(t).For("identity"))
	_, err := svc.Unlock(ctx)
	require.NoError(t, err)

	for name, id := range map[string]*Identity{
		"nil":           nil,
		"no commitment": {Secret: "s"},
		"no secret":     {Commitment: "c"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, svc.Connect(ctx, id), ErrInvalidIdentity)
		})
	}
}

func TestIdentity_Serialize(t *testing.T) {
	s, err := testIdentity().Serialize()
	require.NoError(t, err)

	var got struct {
		Secret   string   `json:"secret"`
		Metadata Metadata `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal([]byte(s), &got))
	assert.Equal(t, `["0x01","0x02"]`, got.Secret)
	assert.Equal(t, "Account #1", got.Metadata.Name)

	public, err := json.Marshal(testIdentity())
	require.NoError(t, err)
	assert.NotContains(t, string(public), "0x01")
}
