// Package blobrepo persists a single opaque, already encrypted document at a
// fixed storage path.
package blobrepo

import (
	"context"
	"errors"

	"github.com/kazz187/keeperd/pkg/cerr"
	"github.com/kazz187/keeperd/pkg/storage"
)

type Repository struct {
	storage storage.Storage
	path    string
	target  string
}

// New returns a repository for the document at path. target names the
// document in error messages.
func New(s storage.Storage, path, target string) *Repository {
	return &Repository{storage: s, path: path, target: target}
}

// Get returns the stored document and whether one exists.
func (r *Repository) Get(ctx context.Context) (string, bool, error) {
	data, err := r.storage.Read(ctx, r.path)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, cerr.WrapStorageReadError(r.target, err)
	}
	return string(data), true, nil
}

func (r *Repository) Set(ctx context.Context, blob string) error {
	if err := r.storage.Write(ctx, r.path, []byte(blob)); err != nil {
		return cerr.WrapStorageWriteError(r.target, err)
	}
	return nil
}

// Clear removes the document. Clearing a missing document succeeds.
func (r *Repository) Clear(ctx context.Context) error {
	err := r.storage.Delete(ctx, r.path)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return cerr.WrapStorageDeleteError(r.target, err)
	}
	return nil
}
