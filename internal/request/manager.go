package request

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/keeperd/internal/eventbus"
	"github.com/kazz187/keeperd/pkg/clog"
)

type outcome struct {
	data any
	err  error
}

type entry struct {
	req  PendingRequest
	done chan outcome
}

// Manager queues requests that need the user's decision. Each request is
// resolved at most once; whoever removes it from the queue delivers its
// outcome.
type Manager struct {
	timeout  time.Duration
	eventBus *eventbus.Bus

	mu    sync.Mutex
	queue []*entry
}

type Option func(*Manager)

// WithTimeout rejects requests left unresolved for d. Zero waits forever.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

func WithEventBus(bus *eventbus.Bus) Option {
	return func(m *Manager) { m.eventBus = bus }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) publish(t eventbus.EventType, req PendingRequest, status Status) {
	if m.eventBus == nil {
		return
	}
	m.eventBus.PublishNew(t, req.ID, map[string]string{
		"type":   req.Type.String(),
		"status": status.String(),
	})
}

// NewRequest queues a request and waits for its resolution. It returns the
// accepted data, a *RejectedError, or an error when ctx ends or the timeout
// elapses first; in those cases the request leaves the queue.
func (m *Manager) NewRequest(ctx context.Context, typ Type, payload any) (any, error) {
	e := &entry{
		req: PendingRequest{
			ID:        ulid.Make().String(),
			Type:      typ,
			Payload:   payload,
			CreatedAt: time.Now(),
		},
		done: make(chan outcome, 1),
	}
	m.mu.Lock()
	m.queue = append(m.queue, e)
	m.publish(eventbus.EventRequestCreated, e.req, StatusPending)
	m.mu.Unlock()

	clog.AddRequestID(ctx, e.req.ID)
	slog.InfoContext(ctx, "request created", "request_id", e.req.ID, "type", typ.String())

	var timeout <-chan time.Time
	if m.timeout > 0 {
		t := time.NewTimer(m.timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case o := <-e.done:
		return o.data, o.err
	case <-ctx.Done():
		return m.abandon(e, ErrCanceled.Wrap(ctx.Err()))
	case <-timeout:
		return m.abandon(e, ErrTimeout)
	}
}

// abandon removes e on behalf of its caller. If a resolver got there first
// its outcome wins.
func (m *Manager) abandon(e *entry, err error) (any, error) {
	m.take(e.req.ID, outcome{err: err})
	o := <-e.done
	return o.data, o.err
}

// take removes id and delivers o to its caller. It reports whether id was
// still pending.
func (m *Manager) take(id string, o outcome) bool {
	m.mu.Lock()
	i := slices.IndexFunc(m.queue, func(e *entry) bool { return e.req.ID == id })
	if i < 0 {
		m.mu.Unlock()
		return false
	}
	e := m.queue[i]
	m.queue = slices.Delete(m.queue, i, i+1)
	m.mu.Unlock()

	e.done <- o
	status := StatusAccepted
	switch {
	case o.err == nil:
	case isRejection(o.err):
		status = StatusRejected
	default:
		status = StatusCancelled
	}
	slog.Info("request resolved", "request_id", id, "type", e.req.Type.String(), "status", status.String())
	m.publish(eventbus.EventRequestResolved, e.req, status)
	return true
}

func isRejection(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}

// Accept resolves id with data. Unknown or already resolved ids are ignored.
func (m *Manager) Accept(id string, data any) bool {
	return m.take(id, outcome{data: data})
}

// Reject resolves id with a rejection. Unknown or already resolved ids are
// ignored.
func (m *Manager) Reject(id, reason string) bool {
	return m.take(id, outcome{err: &RejectedError{ID: id, Reason: reason}})
}

func (m *Manager) Resolve(r Resolution) bool {
	if r.Accepted {
		return m.Accept(r.ID, r.Data)
	}
	return m.Reject(r.ID, r.Reason)
}

// RejectAll rejects every pending request, as when the prompt window is
// closed by the user. It returns the number of requests rejected.
func (m *Manager) RejectAll(reason string) int {
	n := 0
	for _, req := range m.Pending() {
		if m.Reject(req.ID, reason) {
			n++
		}
	}
	return n
}

// Pending returns the queue in creation order.
func (m *Manager) Pending() []PendingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PendingRequest, 0, len(m.queue))
	for _, e := range m.queue {
		out = append(out, e.req)
	}
	return out
}

func (m *Manager) Get(id string) (PendingRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.queue {
		if e.req.ID == id {
			return e.req, true
		}
	}
	return PendingRequest{}, false
}
