// Package injector is the gateway for dApp operations. Every operation
// passes the session lock and the per-origin permission before it reaches
// the user or the prover.
package injector

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/kazz187/keeperd/internal/approval"
	"github.com/kazz187/keeperd/internal/identity"
	"github.com/kazz187/keeperd/internal/popup"
	"github.com/kazz187/keeperd/internal/proof"
	"github.com/kazz187/keeperd/internal/request"
	"github.com/kazz187/keeperd/pkg/clog"
)

type Locker interface {
	OnUnlocked() bool
	AwaitUnlock(ctx context.Context) error
}

type Approvals interface {
	IsApproved(origin string) bool
	CanSkipApprove(origin string) bool
	Add(ctx context.Context, r approval.Record) error
}

type Identities interface {
	GetConnectedIdentity(ctx context.Context) (*identity.Identity, error)
}

type Requests interface {
	NewRequest(ctx context.Context, typ request.Type, payload any) (any, error)
}

// ConnectResult is the answer to a connect call.
type ConnectResult struct {
	IsApproved     bool `json:"isApproved" cbor:"is_approved"`
	CanSkipApprove bool `json:"canSkipApprove" cbor:"can_skip_approve"`
}

// ConnectDecision is the data a user attaches when accepting a CONNECT
// request.
type ConnectDecision struct {
	CanSkipApprove bool `json:"canSkipApprove"`
}

type Service struct {
	locker     Locker
	approvals  Approvals
	identities Identities
	requests   Requests
	popup      popup.Controller
	delegate   proof.Delegate
	artifacts  proof.Artifacts
}

func NewService(
	locker Locker,
	approvals Approvals,
	identities Identities,
	requests Requests,
	popupCtrl popup.Controller,
	delegate proof.Delegate,
	artifacts proof.Artifacts,
) *Service {
	return &Service{
		locker:     locker,
		approvals:  approvals,
		identities: identities,
		requests:   requests,
		popup:      popupCtrl,
		delegate:   delegate,
		artifacts:  artifacts,
	}
}

// popupScope tracks the approval UI for one call so that every exit path
// closes what the call opened, once.
type popupScope struct {
	s      *Service
	opened bool
}

func (p *popupScope) open(ctx context.Context) {
	if p.opened {
		return
	}
	p.opened = true
	if err := p.s.popup.Open(ctx); err != nil {
		slog.WarnContext(ctx, "failed to open approval ui", "error", err)
	}
}

func (p *popupScope) close(ctx context.Context) {
	if !p.opened {
		return
	}
	p.opened = false
	if err := p.s.popup.Close(context.WithoutCancel(ctx)); err != nil {
		slog.WarnContext(ctx, "failed to close approval ui", "error", err)
	}
}

// ensureUnlocked brings up the UI and waits while the session is locked.
func (s *Service) ensureUnlocked(ctx context.Context, ui *popupScope) error {
	if s.locker.OnUnlocked() {
		return nil
	}
	ui.open(ctx)
	slog.InfoContext(ctx, "waiting for unlock")
	return s.locker.AwaitUnlock(ctx)
}

// prompt asks the user about a request and closes the UI afterwards,
// whatever the answer.
func (s *Service) prompt(ctx context.Context, ui *popupScope, typ request.Type, payload any) (any, error) {
	defer ui.close(ctx)
	ui.open(ctx)
	return s.requests.NewRequest(ctx, typ, payload)
}

// Connect reports whether the calling origin may use the broker, asking the
// user when it is not yet approved. A refusal is an answer, not an error.
func (s *Service) Connect(ctx context.Context, meta approval.Metadata) (*ConnectResult, error) {
	origin := meta.URLOrigin
	if origin == "" {
		return nil, ErrOriginNotSet
	}
	clog.AddOrigin(ctx, origin)
	ui := &popupScope{s: s}
	defer ui.close(ctx)
	if err := s.ensureUnlocked(ctx, ui); err != nil {
		return nil, err
	}

	if s.approvals.IsApproved(origin) {
		return &ConnectResult{
			IsApproved:     true,
			CanSkipApprove: s.approvals.CanSkipApprove(origin),
		}, nil
	}

	data, err := s.prompt(ctx, ui, request.TypeConnect, approval.Metadata{URLOrigin: origin})
	if err != nil {
		slog.InfoContext(ctx, "connect not approved", "error", err)
		return &ConnectResult{}, nil
	}

	decision := decodeDecision(ctx, data)
	// The user's answer outlives the caller.
	if err := s.approvals.Add(context.WithoutCancel(ctx), approval.Record{URLOrigin: origin, CanSkipApprove: decision.CanSkipApprove}); err != nil {
		slog.ErrorContext(ctx, "failed to store approval", "error", err)
		return &ConnectResult{}, nil
	}
	return &ConnectResult{IsApproved: true}, nil
}

// decodeDecision reads the user's choice from accepted request data, which
// arrives as raw JSON from the approval UI.
func decodeDecision(ctx context.Context, data any) ConnectDecision {
	switch d := data.(type) {
	case ConnectDecision:
		return d
	case json.RawMessage:
		var decision ConnectDecision
		if err := json.Unmarshal(d, &decision); err != nil {
			slog.WarnContext(ctx, "ignoring malformed connect decision", "error", err)
		}
		return decision
	}
	return ConnectDecision{}
}

// authorize runs the checks shared by the proof operations and returns the
// serialized connected identity.
func (s *Service) authorize(ctx context.Context, ui *popupScope, origin string) (string, error) {
	if origin == "" {
		return "", ErrOriginNotSet
	}
	clog.AddOrigin(ctx, origin)
	if err := s.ensureUnlocked(ctx, ui); err != nil {
		return "", err
	}

	id, err := s.identities.GetConnectedIdentity(ctx)
	if err != nil {
		return "", err
	}
	if id == nil {
		return "", ErrIdentityNotFound
	}
	if !s.approvals.IsApproved(origin) {
		return "", notApproved(origin)
	}
	return id.Serialize()
}

func (s *Service) GenerateSemaphoreProof(ctx context.Context, req proof.SemaphoreProofRequest, meta approval.Metadata) (*proof.Response, error) {
	ui := &popupScope{s: s}
	defer ui.close(ctx)
	serialized, err := s.authorize(ctx, ui, meta.URLOrigin)
	if err != nil {
		return nil, err
	}
	req.IdentitySerialized = serialized
	req.Circuit = s.artifacts.Semaphore
	req.URLOrigin = meta.URLOrigin

	if !s.approvals.CanSkipApprove(meta.URLOrigin) {
		if _, err := s.prompt(ctx, ui, request.TypeSemaphoreProof, req.Redacted()); err != nil {
			return nil, err
		}
	}
	ui.close(ctx)

	if req.CircuitFilePath == "" || req.ZkeyFilePath == "" {
		return nil, delegateError(semaphoreErrorPrefix, errArtifactsNotSet)
	}
	resp, err := s.delegate.Prove(ctx, &proof.Request{Kind: proof.KindSemaphore, Semaphore: &req})
	if err != nil {
		return nil, delegateError(semaphoreErrorPrefix, err)
	}
	return resp, nil
}

func (s *Service) GenerateRLNProof(ctx context.Context, req proof.RLNProofRequest, meta approval.Metadata) (*proof.Response, error) {
	ui := &popupScope{s: s}
	defer ui.close(ctx)
	serialized, err := s.authorize(ctx, ui, meta.URLOrigin)
	if err != nil {
		return nil, err
	}
	req.IdentitySerialized = serialized
	req.Circuit = s.artifacts.RLN
	req.URLOrigin = meta.URLOrigin

	if !s.approvals.CanSkipApprove(meta.URLOrigin) {
		if _, err := s.prompt(ctx, ui, request.TypeRLNProof, req.Redacted()); err != nil {
			return nil, err
		}
	}
	ui.close(ctx)

	if req.CircuitFilePath == "" || req.ZkeyFilePath == "" {
		return nil, delegateError(rlnErrorPrefix, errArtifactsNotSet)
	}
	resp, err := s.delegate.Prove(ctx, &proof.Request{Kind: proof.KindRLN, RLN: &req})
	if err != nil {
		return nil, delegateError(rlnErrorPrefix, err)
	}
	return resp, nil
}
