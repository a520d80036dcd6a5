package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kazz187/keeperd/internal/eventbus"
	"github.com/kazz187/keeperd/pkg/cerr"
	"github.com/kazz187/keeperd/pkg/latch"
	"github.com/kazz187/keeperd/pkg/secure"
)

// Service owns the origin permission store. The store is only readable
// after Unlock has decrypted it with the session key; while locked every
// origin reads as unapproved.
type Service struct {
	repo       Repository
	cipher     secure.Cipher
	backup     *secure.Backup
	eventBus   *eventbus.Bus
	production bool

	authMu sync.RWMutex
	auth   Authenticator

	mu       sync.RWMutex
	store    *Store
	unlocked *latch.Latch
}

type Option func(*Service)

// WithProduction turns Clear into a no-op.
func WithProduction(production bool) Option {
	return func(s *Service) { s.production = production }
}

func WithEventBus(bus *eventbus.Bus) Option {
	return func(s *Service) { s.eventBus = bus }
}

func NewService(repo Repository, cipher secure.Cipher, backup *secure.Backup, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		cipher:   cipher,
		backup:   backup,
		store:    NewStore(),
		unlocked: latch.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetAuthenticator installs the password check used by backup operations.
func (s *Service) SetAuthenticator(a Authenticator) {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	s.auth = a
}

func (s *Service) authenticate(ctx context.Context, password string) error {
	s.authMu.RLock()
	a := s.auth
	s.authMu.RUnlock()
	if a == nil {
		return nil
	}
	return a.IsAuthentic(ctx, password)
}

func (s *Service) publish(t eventbus.EventType, origin string) {
	if s.eventBus != nil {
		s.eventBus.PublishNew(t, origin, nil)
	}
}

// Unlock loads and decrypts the persisted store. Calling it again while
// unlocked returns true without reloading.
func (s *Service) Unlock(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unlocked.IsOpen() {
		return true, nil
	}
	store, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	s.store = store
	s.unlocked.Open()
	slog.InfoContext(ctx, "approvals unlocked", "origins", store.Len())
	return true, nil
}

func (s *Service) load(ctx context.Context) (*Store, error) {
	blob, ok, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewStore(), nil
	}
	plain, err := s.cipher.Decrypt(blob)
	if err != nil {
		if errors.Is(err, secure.ErrLocked) {
			return nil, ErrLocked
		}
		return nil, cerr.WrapDecodeError("approvals", err)
	}
	store, err := decodeStore(plain)
	if err != nil {
		return nil, cerr.WrapDecodeError("approvals", err)
	}
	return store, nil
}

// Lock drops the decrypted store from memory.
func (s *Service) Lock(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = NewStore()
	s.unlocked.Reset()
	slog.DebugContext(ctx, "approvals locked")
	return nil
}

// AwaitUnlock blocks until Unlock has completed.
func (s *Service) AwaitUnlock(ctx context.Context) error {
	return s.unlocked.Wait(ctx)
}

func (s *Service) OnUnlocked() bool {
	return s.unlocked.IsOpen()
}

func (s *Service) IsApproved(origin string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.store.Get(origin)
	return ok
}

func (s *Service) CanSkipApprove(origin string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.store.Get(origin)
	return ok && r.CanSkipApprove
}

// GetPermission returns the stored record, or a record denying skip when the
// origin is unknown.
func (s *Service) GetPermission(origin string) Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.store.Get(origin); ok {
		return r
	}
	return Record{URLOrigin: origin}
}

func (s *Service) GetAllowedHosts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Origins()
}

func (s *Service) Permissions() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Records()
}

// mutate applies fn to a copy of the store and swaps it in once the copy is
// persisted. fn reports whether it changed anything; unchanged stores are not
// written.
func (s *Service) mutate(ctx context.Context, fn func(*Store) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.unlocked.IsOpen() {
		return ErrLocked
	}
	next := s.store.Clone()
	if !fn(next) {
		return nil
	}
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.store = next
	return nil
}

func (s *Service) persist(ctx context.Context, store *Store) error {
	plain, err := encodeStore(store)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to encode approvals: %w", err))
	}
	blob, err := s.cipher.Encrypt(plain)
	if err != nil {
		if errors.Is(err, secure.ErrLocked) {
			return ErrLocked
		}
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to encrypt approvals: %w", err))
	}
	return s.repo.Set(ctx, blob)
}

// SetPermission upserts r and returns the stored record.
func (s *Service) SetPermission(ctx context.Context, r Record) (Record, error) {
	if r.URLOrigin == "" {
		return Record{}, ErrOriginNotSet
	}
	err := s.mutate(ctx, func(store *Store) bool {
		store.Set(r)
		return true
	})
	if err != nil {
		return Record{}, err
	}
	s.publish(eventbus.EventPermissionSet, r.URLOrigin)
	return r, nil
}

// Add inserts r unless its origin already has a record.
func (s *Service) Add(ctx context.Context, r Record) error {
	if r.URLOrigin == "" {
		return ErrOriginNotSet
	}
	added := false
	err := s.mutate(ctx, func(store *Store) bool {
		if _, ok := store.Get(r.URLOrigin); ok {
			return false
		}
		store.Set(r)
		added = true
		return true
	})
	if err == nil && added {
		s.publish(eventbus.EventPermissionSet, r.URLOrigin)
	}
	return err
}

func (s *Service) Remove(ctx context.Context, origin string) error {
	removed := false
	err := s.mutate(ctx, func(store *Store) bool {
		removed = store.Delete(origin)
		return removed
	})
	if err == nil && removed {
		s.publish(eventbus.EventPermissionGone, origin)
	}
	return err
}

// IsOriginApproved returns payload unchanged when meta's origin is approved.
func (s *Service) IsOriginApproved(payload any, meta Metadata) (any, error) {
	if meta.URLOrigin == "" {
		return nil, ErrOriginNotSet
	}
	if !s.IsApproved(meta.URLOrigin) {
		return nil, ErrOriginNotApproved
	}
	return payload, nil
}

// Clear wipes the store in memory and in storage. It does nothing in
// production.
func (s *Service) Clear(ctx context.Context) error {
	if s.production {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Clear(ctx); err != nil {
		return err
	}
	s.store = NewStore()
	slog.InfoContext(ctx, "approvals cleared")
	return nil
}
