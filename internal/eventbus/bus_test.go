package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := New()
	id1, ch1 := b.Subscribe(4)
	_, ch2 := b.Subscribe(4)

	b.PublishNew(EventRequestCreated, "req-1", map[string]string{"type": "CONNECT"})

	for _, ch := range []<-chan *Event{ch1, ch2} {
		ev := <-ch
		assert.Equal(t, EventRequestCreated, ev.Type)
		assert.Equal(t, "req-1", ev.ResourceID)
		assert.NotEmpty(t, ev.ID)
	}

	b.Unsubscribe(id1)
	_, ok := <-ch1
	assert.False(t, ok)
	b.Unsubscribe(id1)
}

func TestBus_DropsWhenFull(t *testing.T) {
	b := New()
	_, ch := b.Subscribe(1)
	b.PublishNew(EventLocked, "", nil)
	b.PublishNew(EventUnlocked, "", nil)

	ev := <-ch
	require.Equal(t, EventLocked, ev.Type)
	assert.Empty(t, ch)
}

func TestFilter(t *testing.T) {
	e := &Event{Type: EventPopupClosed}
	assert.True(t, Filter(e, nil))
	assert.True(t, Filter(e, []EventType{EventLocked, EventPopupClosed}))
	assert.False(t, Filter(e, []EventType{EventLocked}))
}
