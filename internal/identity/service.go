package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kazz187/keeperd/internal/eventbus"
	"github.com/kazz187/keeperd/pkg/cerr"
	"github.com/kazz187/keeperd/pkg/secure"
)

// Service holds the connected identity. Like the approval store it is only
// readable while the session is unlocked.
type Service struct {
	repo     Repository
	cipher   secure.Cipher
	eventBus *eventbus.Bus

	mu        sync.RWMutex
	unlocked  bool
	connected *Identity
}

type Option func(*Service)

func WithEventBus(bus *eventbus.Bus) Option {
	return func(s *Service) { s.eventBus = bus }
}

func NewService(repo Repository, cipher secure.Cipher, opts ...Option) *Service {
	s := &Service{repo: repo, cipher: cipher}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Unlock(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unlocked {
		return true, nil
	}
	blob, ok, err := s.repo.Get(ctx)
	if err != nil {
		return false, err
	}
	var connected *Identity
	if ok {
		plain, err := s.cipher.Decrypt(blob)
		if err != nil {
			if errors.Is(err, secure.ErrLocked) {
				return false, ErrLocked
			}
			return false, cerr.WrapDecodeError("identity", err)
		}
		connected, err = decodeIdentity(plain)
		if err != nil {
			return false, cerr.WrapDecodeError("identity", err)
		}
	}
	s.connected = connected
	s.unlocked = true
	slog.DebugContext(ctx, "identity store unlocked", "connected", connected != nil)
	return true, nil
}

func (s *Service) Lock(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = nil
	s.unlocked = false
	return nil
}

// GetConnectedIdentity returns the connected identity, or nil when there is
// none.
func (s *Service) GetConnectedIdentity(ctx context.Context) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.unlocked {
		return nil, ErrLocked
	}
	if s.connected == nil {
		return nil, nil
	}
	c := *s.connected
	return &c, nil
}

// Connect replaces the connected identity.
func (s *Service) Connect(ctx context.Context, id *Identity) error {
	if id == nil || id.validate() != nil {
		return ErrInvalidIdentity
	}
	plain, err := encodeIdentity(id)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to encode identity: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.unlocked {
		return ErrLocked
	}
	blob, err := s.cipher.Encrypt(plain)
	if err != nil {
		if errors.Is(err, secure.ErrLocked) {
			return ErrLocked
		}
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to encrypt identity: %w", err))
	}
	if err := s.repo.Set(ctx, blob); err != nil {
		return err
	}
	c := *id
	s.connected = &c
	slog.InfoContext(ctx, "identity connected", "commitment", id.Commitment, "origin", id.Metadata.URLOrigin)
	s.publish(id.Commitment)
	return nil
}

func (s *Service) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.unlocked {
		return ErrLocked
	}
	if err := s.repo.Clear(ctx); err != nil {
		return err
	}
	s.connected = nil
	slog.InfoContext(ctx, "identity disconnected")
	s.publish("")
	return nil
}

func (s *Service) publish(commitment string) {
	if s.eventBus != nil {
		s.eventBus.PublishNew(eventbus.EventIdentityChanged, commitment, nil)
	}
}
