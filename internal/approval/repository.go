package approval

import "context"

// Repository persists the encrypted approval store as one opaque blob.
type Repository interface {
	// Get returns the blob and whether one has been stored.
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, blob string) error
	Clear(ctx context.Context) error
}

// Authenticator verifies the user's password without unlocking anything.
type Authenticator interface {
	IsAuthentic(ctx context.Context, password string) error
}
