package credentialimpl

import (
	"context"
	"errors"
	"fmt"

	"github.com/byteness/keyring"

	"github.com/kazz187/keeperd/internal/locker"
	"github.com/kazz187/keeperd/pkg/secure"
)

const keyringItemKey = "keeperd-credential"

// KeyringStore keeps the wrapped key in the operating system keyring.
type KeyringStore struct {
	ring keyring.Keyring
}

var _ locker.CredentialStore = (*KeyringStore)(nil)

// OpenKeyring opens the platform keyring. fileDir and filePassword configure
// the encrypted file fallback used where no native backend exists.
func OpenKeyring(serviceName, backend, fileDir, filePassword string) (*KeyringStore, error) {
	cfg := keyring.Config{
		ServiceName:                    serviceName,
		FileDir:                        fileDir,
		FilePasswordFunc:               func(string) (string, error) { return filePassword, nil },
		LibSecretCollectionName:        serviceName,
		KWalletAppID:                   serviceName,
		KWalletFolder:                  serviceName,
		WinCredPrefix:                  serviceName,
		KeychainTrustApplication:       true,
		KeychainAccessibleWhenUnlocked: true,
		KeyCtlScope:                    "user",
	}
	if backend != "" {
		cfg.AllowedBackends = []keyring.BackendType{keyring.BackendType(backend)}
	}
	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

func (k *KeyringStore) Load(context.Context) (*secure.WrappedKey, error) {
	item, err := k.ring.Get(keyringItemKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, locker.ErrNoCredential
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring: %w", err)
	}
	return decode(item.Data)
}

func (k *KeyringStore) Save(_ context.Context, w *secure.WrappedKey) error {
	data, err := encode(w)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	return k.ring.Set(keyring.Item{
		Key:         keyringItemKey,
		Data:        data,
		Label:       "keeperd",
		Description: "keeperd wrapped data key",
	})
}
