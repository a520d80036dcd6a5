package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kazz187/keeperd/pkg/cerr"
	"github.com/kazz187/keeperd/pkg/secure"
)

// DownloadEncryptedStorage exports the store encrypted and authenticated
// under password. It returns nil when nothing has been persisted yet.
func (s *Service) DownloadEncryptedStorage(ctx context.Context, password string) (*string, error) {
	if err := s.authenticate(ctx, password); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok, err := s.repo.Get(ctx)
	if err != nil || !ok {
		return nil, err
	}
	plain, err := s.cipher.Decrypt(blob)
	if err != nil {
		if errors.Is(err, secure.ErrLocked) {
			return nil, ErrLocked
		}
		return nil, cerr.WrapDecodeError("approvals", err)
	}
	sealed, err := s.backup.Seal(plain, password)
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to encrypt approvals backup: %w", err))
	}
	return &sealed, nil
}

// UploadEncryptedStorage verifies and imports a DownloadEncryptedStorage
// export. backup must be a string; an empty string is ignored. The imported
// store replaces the persisted one and, when unlocked, the one in memory.
func (s *Service) UploadEncryptedStorage(ctx context.Context, backup any, password string) error {
	serialized, ok := backup.(string)
	if !ok {
		return ErrIncorrectBackupFormat
	}
	if serialized == "" {
		return nil
	}
	if err := s.authenticate(ctx, password); err != nil {
		return err
	}

	plain, err := s.backup.Open(serialized, password)
	switch {
	case errors.Is(err, secure.ErrBackupTampered):
		return ErrBackupTampered.Wrap(err)
	case errors.Is(err, secure.ErrWrongPassword):
		return ErrBackupPassword.Wrap(err)
	case errors.Is(err, secure.ErrMalformed):
		return ErrIncorrectBackupFormat.Wrap(err)
	case err != nil:
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to decrypt approvals backup: %w", err))
	}
	store, err := decodeStore(plain)
	if err != nil {
		return ErrIncorrectBackupFormat.Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(ctx, store); err != nil {
		return err
	}
	if s.unlocked.IsOpen() {
		s.store = store
	}
	slog.InfoContext(ctx, "approvals restored from encrypted backup", "origins", store.Len())
	return nil
}

// DownloadStorage returns the persisted blob as is, or nil.
func (s *Service) DownloadStorage(ctx context.Context) (*string, error) {
	blob, ok, err := s.repo.Get(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return &blob, nil
}

// RestoreStorage replaces the persisted blob with raw, which must be a
// string produced by DownloadStorage. When unlocked the blob must decrypt
// under the current session and the in-memory store is reloaded from it.
func (s *Service) RestoreStorage(ctx context.Context, raw any) error {
	blob, ok := raw.(string)
	if !ok {
		return ErrIncorrectRestoreFormat
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var store *Store
	if s.unlocked.IsOpen() {
		plain, err := s.cipher.Decrypt(blob)
		if err != nil {
			return ErrIncorrectRestoreFormat.Wrap(err)
		}
		if store, err = decodeStore(plain); err != nil {
			return ErrIncorrectRestoreFormat.Wrap(err)
		}
	}
	if err := s.repo.Set(ctx, blob); err != nil {
		return err
	}
	if store != nil {
		s.store = store
	}
	return nil
}
