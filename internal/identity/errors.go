package identity

import "github.com/kazz187/keeperd/pkg/cerr"

var (
	ErrLocked          = cerr.Sentinel(cerr.FailedPrecondition, "identities are locked")
	ErrInvalidIdentity = cerr.Sentinel(cerr.InvalidArgument, "identity must have a commitment and a secret")
)
