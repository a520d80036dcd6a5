package injector

import (
	"errors"

	"github.com/kazz187/keeperd/pkg/cerr"
)

const (
	semaphoreErrorPrefix = "Error in generateSemaphoreProof(): "
	rlnErrorPrefix       = "Error in generateRlnProof(): "
)

var (
	ErrOriginNotSet     = cerr.Sentinel(cerr.InvalidArgument, "Origin is not set")
	ErrIdentityNotFound = cerr.Sentinel(cerr.FailedPrecondition, "connected identity not found")

	errArtifactsNotSet = errors.New("Injected service: Must set circuitFilePath and zkeyFilePath")
)

func notApproved(origin string) error {
	return cerr.NewError(cerr.PermissionDenied, origin+" is not approved", nil)
}

// delegateError reports a failed proof with the message dApps expect.
func delegateError(prefix string, err error) error {
	return cerr.NewError(cerr.Internal, prefix+cerr.Message(err), err)
}
