package locker

import "github.com/kazz187/keeperd/pkg/cerr"

var (
	ErrLocked             = cerr.Sentinel(cerr.FailedPrecondition, "keeper is locked")
	ErrNotInitialized     = cerr.Sentinel(cerr.FailedPrecondition, "keeper password is not set up")
	ErrAlreadyInitialized = cerr.Sentinel(cerr.AlreadyExists, "keeper password is already set up")
	ErrInvalidPassword    = cerr.Sentinel(cerr.Unauthenticated, "invalid password")
	ErrEmptyPassword      = cerr.Sentinel(cerr.InvalidArgument, "password must not be empty")
	ErrTooManyAttempts    = cerr.Sentinel(cerr.ResourceExhausted, "too many unlock attempts")
	ErrCorruptCredential  = cerr.Sentinel(cerr.DataLoss, "stored credential is corrupt")
)
