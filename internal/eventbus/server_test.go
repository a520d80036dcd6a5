package eventbus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/keeperd/pkg/codec"
)

func (b *Bus) subscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func TestServer_Subscribe(t *testing.T) {
	bus := New()
	path, handler := NewEventServiceHandler(NewServer(bus), codec.ConnectHandlerOptions()...)
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	for _, c := range []connect.Codec{codec.ConnectJSON{}, codec.ConnectCBOR{}} {
		t.Run(c.Name(), func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()
			client := NewEventClient(srv.Client(), srv.URL, connect.WithCodec(c))

			stream, err := client.Subscribe(ctx, connect.NewRequest(&SubscribeRequest{
				EventTypes: []EventType{EventRequestCreated},
			}))
			require.NoError(t, err)
			require.Eventually(t, func() bool { return bus.subscriberCount() == 1 }, time.Second, time.Millisecond)

			bus.PublishNew(EventUnlocked, "", nil)
			bus.PublishNew(EventRequestCreated, "req-1", map[string]string{"type": "CONNECT"})

			require.True(t, stream.Receive(), "stream error: %v", stream.Err())
			got := stream.Msg()
			assert.Equal(t, EventRequestCreated, got.Type)
			assert.Equal(t, "req-1", got.ResourceID)
			assert.Equal(t, "CONNECT", got.Metadata["type"])

			cancel()
			_ = stream.Close()
			require.Eventually(t, func() bool { return bus.subscriberCount() == 0 }, time.Second, time.Millisecond)
		})
	}
}
