// Package proof computes zero-knowledge proofs on behalf of the injector,
// either inside the broker process or in a short lived worker process.
package proof

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kazz187/keeperd/pkg/panicerr"
)

// Delegate hands a proof request to wherever proofs are computed.
type Delegate interface {
	Prove(ctx context.Context, req *Request) (*Response, error)
}

// Prover computes a proof in the calling process.
type Prover interface {
	Prove(ctx context.Context, req *Request) (*Response, error)
}

// InProcess runs a Prover in the broker process. A panicking prover is
// reported as an error.
type InProcess struct {
	prover Prover
}

func NewInProcess(p Prover) *InProcess {
	return &InProcess{prover: p}
}

func (d *InProcess) Prove(ctx context.Context, req *Request) (*Response, error) {
	return panicerr.SafeValue(func() (*Response, error) {
		return d.prover.Prove(ctx, req)
	})()
}

type Mode string

const (
	ModeInProcess Mode = "inprocess"
	ModeIsolated  Mode = "isolated"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeInProcess, ModeIsolated:
		return m, nil
	case "":
		return ModeIsolated, nil
	}
	return "", fmt.Errorf("unknown prover mode %q", s)
}

// Router validates requests, checks pinned artifacts and forwards to the
// delegate selected by its mode.
type Router struct {
	mode      Mode
	inProcess Delegate
	isolated  Delegate
	pins      *Pins
}

type RouterOption func(*Router)

func WithPins(p *Pins) RouterOption {
	return func(r *Router) { r.pins = p }
}

// NewRouter returns a Router. isolated may be nil, in which case every
// request runs in process. With neither delegate set Prove fails with
// ErrNoProver.
func NewRouter(mode Mode, inProcess, isolated Delegate, opts ...RouterOption) *Router {
	r := &Router{mode: mode, inProcess: inProcess, isolated: isolated}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Prove(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	if err := req.Validate(); err != nil {
		return nil, ErrInvalidRequest.Wrap(err)
	}
	if r.pins != nil {
		if err := r.pins.Check(req.Circuit().paths()...); err != nil {
			return nil, err
		}
	}

	mode, d := r.mode, r.isolated
	if mode == ModeInProcess || d == nil {
		mode, d = ModeInProcess, r.inProcess
	}
	if d == nil {
		return nil, ErrNoProver
	}
	start := time.Now()
	resp, err := d.Prove(ctx, req)
	if err != nil {
		slog.WarnContext(ctx, "proof failed", "kind", req.Kind, "mode", mode, "error", err)
		return nil, err
	}
	slog.InfoContext(ctx, "proof delegated", "kind", req.Kind, "mode", mode, "elapsed", time.Since(start))
	return resp, nil
}
