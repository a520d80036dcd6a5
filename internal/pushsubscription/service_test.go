package pushsubscription_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/keeperd/internal/pushsubscription"
	"github.com/kazz187/keeperd/internal/pushsubscription/repositoryimpl"
	"github.com/kazz187/keeperd/pkg/storage"
)

func newService(t *testing.T) (*pushsubscription.Service, *repositoryimpl.DocumentRepository) {
	t.Helper()
	st, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := repositoryimpl.NewDocumentRepository(st)
	return pushsubscription.NewService(repo), repo
}

func TestService_RegisterIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)

	first, err := svc.Register(ctx, "https://push.example/a", "p1", "a1")
	require.NoError(t, err)
	second, err := svc.Register(ctx, "https://push.example/a", "p2", "a2")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "p2", all[0].P256dhKey)
	assert.Equal(t, "a2", all[0].AuthKey)
}

func TestService_RegisterValidates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	tests := []struct {
		name                   string
		endpoint, p256dh, auth string
		want                   error
	}{
		{name: "no endpoint", p256dh: "p", auth: "a", want: pushsubscription.ErrEndpointRequired},
		{name: "no p256dh", endpoint: "e", auth: "a", want: pushsubscription.ErrKeysRequired},
		{name: "no auth", endpoint: "e", p256dh: "p", want: pushsubscription.ErrKeysRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.endpoint, tt.p256dh, tt.auth)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestService_Unregister(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)

	_, err := svc.Register(ctx, "https://push.example/a", "p", "a")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "https://push.example/b", "p", "a")
	require.NoError(t, err)

	require.NoError(t, svc.Unregister(ctx, "https://push.example/a"))
	assert.ErrorIs(t, svc.Unregister(ctx, "https://push.example/a"), pushsubscription.ErrNotFound)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "https://push.example/b", all[0].Endpoint)
}
