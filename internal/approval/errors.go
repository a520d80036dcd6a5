package approval

import "github.com/kazz187/keeperd/pkg/cerr"

var (
	ErrOriginNotSet           = cerr.Sentinel(cerr.InvalidArgument, "CryptKeeper: origin is not set")
	ErrOriginNotApproved      = cerr.Sentinel(cerr.PermissionDenied, "CryptKeeper: origin is not approved")
	ErrIncorrectBackupFormat  = cerr.Sentinel(cerr.InvalidArgument, "Incorrect backup format for approvals")
	ErrIncorrectRestoreFormat = cerr.Sentinel(cerr.InvalidArgument, "Incorrect restore format for approvals")
	ErrLocked                 = cerr.Sentinel(cerr.FailedPrecondition, "approvals are locked")
	ErrBackupTampered         = cerr.Sentinel(cerr.DataLoss, "backup failed authentication")
	ErrBackupPassword         = cerr.Sentinel(cerr.Unauthenticated, "backup password is incorrect")
)
