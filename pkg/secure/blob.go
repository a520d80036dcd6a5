// Package secure holds the broker's encryption primitives: the in-memory
// session cipher used for data at rest and the password based backup format.
package secure

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the size of the session (data) key.
const KeySize = chacha20poly1305.KeySize

const blobVersion byte = 0x01

const blobOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// NewKey returns a random KeySize key.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return key, nil
}

func deriveKey(master []byte, info string) ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("deriving %s key: %w", info, err)
	}
	return key, nil
}

func aad(label string) []byte {
	return append([]byte{blobVersion}, label...)
}

// Seal encrypts plaintext with XChaCha20-Poly1305 into
// [version][nonce][ciphertext+tag]. label is authenticated but not stored.
func Seal(key, plaintext []byte, label string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	out := make([]byte, 1+len(nonce), blobOverhead+len(plaintext))
	out[0] = blobVersion
	copy(out[1:], nonce[:])
	return aead.Seal(out, nonce[:], plaintext, aad(label)), nil
}

// Open reverses Seal. Any authentication failure, including a wrong key or
// label, is reported as ErrDecrypt.
func Open(key, blob []byte, label string) ([]byte, error) {
	if len(blob) < blobOverhead {
		return nil, fmt.Errorf("%w: blob is %d bytes, minimum is %d", ErrDecrypt, len(blob), blobOverhead)
	}
	if blob[0] != blobVersion {
		return nil, fmt.Errorf("%w: unsupported blob version %d", ErrDecrypt, blob[0])
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	nonce := blob[1 : 1+chacha20poly1305.NonceSizeX]
	plaintext, err := aead.Open(nil, nonce, blob[1+chacha20poly1305.NonceSizeX:], aad(label))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	return plaintext, nil
}
