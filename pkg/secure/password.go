package secure

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// KDFParams are the argon2id parameters used to derive a key encryption key
// from the user's password.
type KDFParams struct {
	Time    uint32 `yaml:"time"`
	Memory  uint32 `yaml:"memory"`
	Threads uint8  `yaml:"threads"`
}

var DefaultKDFParams = KDFParams{Time: 3, Memory: 64 * 1024, Threads: 4}

// WrappedKey is a data key encrypted under a password derived key. It is the
// only persisted form of the session key.
type WrappedKey struct {
	Salt []byte    `yaml:"salt"`
	KDF  KDFParams `yaml:"kdf"`
	Blob []byte    `yaml:"blob"`
}

const wrapLabel = "keeperd.wrapped-key"

func (p KDFParams) validate() error {
	if p.Time < 1 || p.Threads < 1 || p.Memory < 8*uint32(p.Threads) {
		return fmt.Errorf("%w: time=%d memory=%d threads=%d", ErrKDFParams, p.Time, p.Memory, p.Threads)
	}
	return nil
}

func (p KDFParams) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, KeySize)
}

// WrapKey encrypts dataKey under password.
func WrapKey(dataKey []byte, password string, params KDFParams) (*WrappedKey, error) {
	if password == "" {
		return nil, errors.New("password must not be empty")
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	blob, err := Seal(params.derive(password, salt), dataKey, wrapLabel)
	if err != nil {
		return nil, err
	}
	return &WrappedKey{Salt: salt, KDF: params, Blob: blob}, nil
}

// UnwrapKey returns the data key, or ErrWrongPassword. A credential with
// unusable parameters fails with ErrKDFParams.
func UnwrapKey(w *WrappedKey, password string) ([]byte, error) {
	if err := w.KDF.validate(); err != nil {
		return nil, err
	}
	key, err := Open(w.KDF.derive(password, w.Salt), w.Blob, wrapLabel)
	if errors.Is(err, ErrDecrypt) {
		return nil, ErrWrongPassword
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}
