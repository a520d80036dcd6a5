package request

import (
	"fmt"

	"github.com/kazz187/keeperd/pkg/cerr"
)

var (
	ErrRejected = cerr.Sentinel(cerr.PermissionDenied, "request rejected")
	ErrTimeout  = cerr.Sentinel(cerr.DeadlineExceeded, "request timed out")
	ErrCanceled = cerr.Sentinel(cerr.Canceled, "request canceled")

	ErrRequestNotFound = cerr.Sentinel(cerr.NotFound, "request not found")
)

// RejectedError is returned to the caller of a request the user rejected.
type RejectedError struct {
	ID     string
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("request %s rejected", e.ID)
	}
	return fmt.Sprintf("request %s rejected: %s", e.ID, e.Reason)
}

func (e *RejectedError) Unwrap() error {
	return ErrRejected
}
