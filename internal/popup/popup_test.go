package popup

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/keeperd/internal/eventbus"
	"github.com/kazz187/keeperd/internal/pushsubscription"
)

type countingController struct {
	opens, closes int
	err           error
}

func (c *countingController) Open(context.Context) error  { c.opens++; return c.err }
func (c *countingController) Close(context.Context) error { c.closes++; return c.err }

func TestMulti(t *testing.T) {
	ctx := context.Background()
	a, b := &countingController{}, &countingController{err: errors.New("no display")}
	m := Multi{a, b, Noop{}}

	err := m.Open(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no display")
	require.Error(t, m.Close(ctx))
	assert.Equal(t, 1, a.opens)
	assert.Equal(t, 1, b.closes)

	assert.NoError(t, Multi{a, Noop{}}.Open(ctx))
}

func TestBrowser(t *testing.T) {
	var opened []string
	b := NewBrowser("http://127.0.0.1:8547/")
	b.open = func(u string) error {
		opened = append(opened, u)
		return nil
	}
	require.NoError(t, b.Open(context.Background()))
	require.NoError(t, b.Close(context.Background()))
	assert.Equal(t, []string{"http://127.0.0.1:8547/"}, opened)
}

type memSubs struct {
	mu   sync.Mutex
	subs []*pushsubscription.Subscription
}

func (m *memSubs) Save(_ context.Context, s *pushsubscription.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, s)
	return nil
}

func (m *memSubs) List(context.Context) ([]*pushsubscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*pushsubscription.Subscription(nil), m.subs...), nil
}

func (m *memSubs) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subs {
		if s.ID == id {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return nil
		}
	}
	return pushsubscription.ErrNotFound
}

func (m *memSubs) FindByEndpoint(_ context.Context, endpoint string) (*pushsubscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.Endpoint == endpoint {
			return s, nil
		}
	}
	return nil, pushsubscription.ErrNotFound
}

func browserSubscription(t *testing.T, id, endpoint string) *pushsubscription.Subscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return &pushsubscription.Subscription{
		ID:        id,
		Endpoint:  endpoint,
		P256dhKey: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthKey:   base64.RawURLEncoding.EncodeToString(auth),
		CreatedAt: time.Now(),
	}
}

func testVAPID(t *testing.T) VAPID {
	t.Helper()
	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return VAPID{PublicKey: pub, PrivateKey: priv, Contact: "ops@keeper.example"}
}

func TestWebPush_Open(t *testing.T) {
	var (
		mu   sync.Mutex
		hits = map[string]http.Header{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path] = r.Header.Clone()
		mu.Unlock()
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	repo := &memSubs{}
	repo.subs = []*pushsubscription.Subscription{
		browserSubscription(t, "live", srv.URL+"/live"),
		browserSubscription(t, "expired", srv.URL+"/gone"),
	}
	bus := eventbus.New()
	_, events := bus.Subscribe(4)

	w := NewWebPush(testVAPID(t), "http://127.0.0.1:8547/", repo, WithHTTPClient(srv.Client()), WithEventBus(bus))
	require.NoError(t, w.Open(context.Background()))

	assert.Equal(t, eventbus.EventPopupOpened, (<-events).Type)
	require.Len(t, hits, 2)
	assert.Contains(t, hits["/live"].Get("Authorization"), "vapid t=")
	assert.Equal(t, "aes128gcm", hits["/live"].Get("Content-Encoding"))

	left, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "live", left[0].ID)

	require.NoError(t, w.Close(context.Background()))
	assert.Equal(t, eventbus.EventPopupClosed, (<-events).Type)
}

func TestWebPush_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	repo := &memSubs{subs: []*pushsubscription.Subscription{browserSubscription(t, "a", srv.URL+"/a")}}
	w := NewWebPush(testVAPID(t), "", repo, WithHTTPClient(srv.Client()))
	err := w.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
}

func TestWebPush_WithoutVAPIDIsSilent(t *testing.T) {
	repo := &memSubs{subs: []*pushsubscription.Subscription{{ID: "a", Endpoint: "http://127.0.0.1:1/"}}}
	w := NewWebPush(VAPID{}, "", repo)
	assert.NoError(t, w.Open(context.Background()))
}
