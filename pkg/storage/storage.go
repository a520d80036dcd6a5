package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested path does not exist in storage.
var ErrNotFound = errors.New("not found")

// Storage is the key-value persistence engine behind every encrypted blob the
// broker keeps. Paths are slash separated keys.
type Storage interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)
}

const (
	TypeLocal  = "local"
	TypeS3     = "s3"
	TypeSQLite = "sqlite"
)
