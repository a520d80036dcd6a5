package locker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/kazz187/keeperd/internal/eventbus"
	"github.com/kazz187/keeperd/pkg/cerr"
	"github.com/kazz187/keeperd/pkg/latch"
	"github.com/kazz187/keeperd/pkg/secure"
)

type Status struct {
	IsUnlocked    bool `json:"isUnlocked"`
	IsInitialized bool `json:"isInitialized"`
}

// Store is a sibling store whose lifecycle follows the session lock, such
// as the approval and identity stores.
type Store interface {
	Unlock(ctx context.Context) (bool, error)
	Lock(ctx context.Context) error
}

// Service is the session lock. While unlocked the session holds the data key
// that every Store uses to decrypt its contents.
type Service struct {
	creds    CredentialStore
	session  *secure.Session
	kdf      secure.KDFParams
	limiter  *rate.Limiter
	eventBus *eventbus.Bus
	stores   []Store

	mu       sync.Mutex
	unlocked *latch.Latch
}

type Option func(*Service)

func WithKDFParams(p secure.KDFParams) Option {
	return func(s *Service) { s.kdf = p }
}

// WithRateLimit bounds failed password attempts. Correct passwords are not
// charged. rate.Inf disables throttling.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(s *Service) {
		if limit == rate.Inf {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(limit, burst)
	}
}

func WithEventBus(bus *eventbus.Bus) Option {
	return func(s *Service) { s.eventBus = bus }
}

// WithStores registers stores unlocked after, and locked before, the session.
func WithStores(stores ...Store) Option {
	return func(s *Service) { s.stores = append(s.stores, stores...) }
}

func NewService(creds CredentialStore, session *secure.Session, opts ...Option) *Service {
	s := &Service{
		creds:    creds,
		session:  session,
		kdf:      secure.DefaultKDFParams,
		unlocked: latch.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) publish(t eventbus.EventType) {
	if s.eventBus != nil {
		s.eventBus.PublishNew(t, "", nil)
	}
}

func (s *Service) load(ctx context.Context) (*secure.WrappedKey, error) {
	w, err := s.creds.Load(ctx)
	if errors.Is(err, ErrNoCredential) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to load credential: %w", err))
	}
	return w, nil
}

// Setup creates the data key and stores it wrapped under password. The
// keeper stays locked.
func (s *Service) Setup(ctx context.Context, password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.load(ctx); err == nil {
		return ErrAlreadyInitialized
	} else if !errors.Is(err, ErrNotInitialized) {
		return err
	}
	key, err := secure.NewKey()
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", err)
	}
	w, err := secure.WrapKey(key, password, s.kdf)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", err)
	}
	if err := s.creds.Save(ctx, w); err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to save credential: %w", err))
	}
	slog.InfoContext(ctx, "keeper password set up")
	return nil
}

func (s *Service) unwrap(ctx context.Context, password string) ([]byte, error) {
	if s.limiter != nil && s.limiter.Tokens() < 1 {
		return nil, ErrTooManyAttempts
	}
	w, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	key, err := secure.UnwrapKey(w, password)
	if errors.Is(err, secure.ErrWrongPassword) {
		if s.limiter != nil {
			s.limiter.Allow()
		}
		return nil, ErrInvalidPassword
	}
	if errors.Is(err, secure.ErrKDFParams) {
		return nil, ErrCorruptCredential.Wrap(err)
	}
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", err)
	}
	return key, nil
}

// Unlock verifies password, installs the session key and unlocks every
// registered store. Unlocking an unlocked keeper returns true without
// checking the password.
func (s *Service) Unlock(ctx context.Context, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unlocked.IsOpen() {
		return true, nil
	}

	key, err := s.unwrap(ctx, password)
	if err != nil {
		return false, err
	}
	if err := s.session.SetKey(key); err != nil {
		return false, cerr.NewError(cerr.Internal, "server error", err)
	}
	for i, store := range s.stores {
		if _, err := store.Unlock(ctx); err != nil {
			for _, done := range s.stores[:i] {
				_ = done.Lock(ctx)
			}
			s.session.Clear()
			return false, err
		}
	}
	s.unlocked.Open()
	s.publish(eventbus.EventUnlocked)
	slog.InfoContext(ctx, "keeper unlocked")
	return true, nil
}

// Lock forgets the session key. Locking a locked keeper is a no-op.
func (s *Service) Lock(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.unlocked.IsOpen() {
		return nil
	}
	var errs []error
	for _, store := range s.stores {
		errs = append(errs, store.Lock(ctx))
	}
	s.session.Clear()
	s.unlocked.Reset()
	s.publish(eventbus.EventLocked)
	slog.InfoContext(ctx, "keeper locked")
	return errors.Join(errs...)
}

func (s *Service) GetStatus(ctx context.Context) (Status, error) {
	_, err := s.load(ctx)
	if err != nil && !errors.Is(err, ErrNotInitialized) {
		return Status{}, err
	}
	return Status{
		IsUnlocked:    s.unlocked.IsOpen(),
		IsInitialized: err == nil,
	}, nil
}

// AwaitUnlock blocks until the keeper is unlocked or ctx is done. One Unlock
// releases every waiter.
func (s *Service) AwaitUnlock(ctx context.Context) error {
	return s.unlocked.Wait(ctx)
}

func (s *Service) OnUnlocked() bool {
	return s.unlocked.IsOpen()
}

// IsAuthentic checks password against the stored credential without
// changing the lock state.
func (s *Service) IsAuthentic(ctx context.Context, password string) error {
	key, err := s.unwrap(ctx, password)
	if err != nil {
		return err
	}
	if s.unlocked.IsOpen() && !s.session.Matches(key) {
		return ErrInvalidPassword
	}
	return nil
}
