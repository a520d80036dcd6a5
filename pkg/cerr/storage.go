package cerr

import (
	"errors"
	"fmt"

	"github.com/kazz187/keeperd/pkg/storage"
)

func WrapStorageReadError(target string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	}
	return NewError(Internal, "server error", fmt.Errorf("failed to read %s: %w", target, err))
}

func WrapStorageWriteError(target string, err error) error {
	return NewError(Internal, "server error", fmt.Errorf("failed to write %s: %w", target, err))
}

func WrapStorageDeleteError(target string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	}
	return NewError(Internal, "server error", fmt.Errorf("failed to delete %s: %w", target, err))
}

// WrapDecodeError reports persisted data that exists but can not be decrypted
// or parsed.
func WrapDecodeError(target string, err error) error {
	return NewError(DataLoss, fmt.Sprintf("%s is unreadable", target), fmt.Errorf("failed to decode %s: %w", target, err))
}
