// Package latch provides a resettable one-shot broadcast signal.
package latch

import (
	"context"
	"sync"
)

// Latch releases every waiter at once when opened. Waiters that arrive while
// it is open return immediately. Reset closes it again for future waiters.
type Latch struct {
	mu   sync.Mutex
	open bool
	ch   chan struct{}
}

func New() *Latch {
	return &Latch{ch: make(chan struct{})}
}

// Open releases all current waiters. Opening an open latch is a no-op.
func (l *Latch) Open() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.open {
		return
	}
	l.open = true
	close(l.ch)
}

// Reset closes the latch. Waiters blocked before Reset have already been
// released or stay blocked until the next Open.
func (l *Latch) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return
	}
	l.open = false
	l.ch = make(chan struct{})
}

func (l *Latch) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}

// Done returns a channel closed on the next Open, or an already closed
// channel when open.
func (l *Latch) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ch
}

// Wait blocks until the latch opens or ctx is done.
func (l *Latch) Wait(ctx context.Context) error {
	select {
	case <-l.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
