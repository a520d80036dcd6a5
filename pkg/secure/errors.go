package secure

import "errors"

var (
	ErrLocked         = errors.New("session is locked")
	ErrDecrypt        = errors.New("decryption failed")
	ErrWrongPassword  = errors.New("wrong password")
	ErrBackupTampered = errors.New("backup authentication failed")
	ErrMalformed      = errors.New("malformed backup")
	ErrKDFParams      = errors.New("invalid key derivation parameters")
)
