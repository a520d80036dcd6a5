package identity

import "context"

// Repository persists the encrypted connected identity as one opaque blob.
type Repository interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, blob string) error
	Clear(ctx context.Context) error
}
