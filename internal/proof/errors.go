package proof

import "github.com/kazz187/keeperd/pkg/cerr"

var (
	ErrArtifactChanged = cerr.Sentinel(cerr.FailedPrecondition, "proving artifact changed since it was pinned")
	ErrInvalidRequest  = cerr.Sentinel(cerr.InvalidArgument, "invalid proof request")
	ErrNoProver        = cerr.Sentinel(cerr.FailedPrecondition, "no prover configured")
)
