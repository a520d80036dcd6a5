package latch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatch_BroadcastsToAllWaiters(t *testing.T) {
	l := New()
	var released atomic.Int32
	var wg conc.WaitGroup
	for range 8 {
		wg.Go(func() {
			if err := l.Wait(context.Background()); err == nil {
				released.Add(1)
			}
		})
	}
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, released.Load())

	l.Open()
	wg.Wait()
	assert.EqualValues(t, 8, released.Load())
}

func TestLatch_OpenIsSticky(t *testing.T) {
	l := New()
	l.Open()
	l.Open()
	require.True(t, l.IsOpen())
	require.NoError(t, l.Wait(context.Background()))
}

func TestLatch_Reset(t *testing.T) {
	l := New()
	l.Open()
	l.Reset()
	assert.False(t, l.IsOpen())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- l.Wait(context.Background()) }()
	l.Open()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter not released after reopen")
	}
}
