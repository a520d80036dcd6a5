package locker

import (
	"context"
	"errors"

	"github.com/kazz187/keeperd/pkg/secure"
)

// ErrNoCredential is returned by CredentialStore.Load before Setup.
var ErrNoCredential = errors.New("no credential")

// CredentialStore persists the password wrapped data key.
type CredentialStore interface {
	Load(ctx context.Context) (*secure.WrappedKey, error)
	Save(ctx context.Context, key *secure.WrappedKey) error
}
