package secure

import (
	"bytes"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
	"github.com/zeebo/blake3"
)

const (
	// DefaultWorkFactor is the scrypt log2(N) used for backups.
	DefaultWorkFactor = 18

	macContext = "keeperd 2024 backup authentication key"
	macHexSize = 64
)

// Backup implements the password protected export format: an armored age
// scrypt file prefixed with a hex BLAKE3 keyed MAC over the armored text.
type Backup struct {
	WorkFactor int
}

func NewBackup(workFactor int) *Backup {
	if workFactor <= 0 {
		workFactor = DefaultWorkFactor
	}
	return &Backup{WorkFactor: workFactor}
}

// Encrypt returns plaintext encrypted under password.
func (b *Backup) Encrypt(plaintext []byte, password string) (string, error) {
	recipient, err := age.NewScryptRecipient(password)
	if err != nil {
		return "", fmt.Errorf("creating scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(b.WorkFactor)

	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)
	w, err := age.Encrypt(aw, recipient)
	if err != nil {
		return "", fmt.Errorf("encrypting backup: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return "", fmt.Errorf("encrypting backup: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("encrypting backup: %w", err)
	}
	if err := aw.Close(); err != nil {
		return "", fmt.Errorf("armoring backup: %w", err)
	}
	return buf.String(), nil
}

// Decrypt reverses Encrypt.
func (b *Backup) Decrypt(ciphertext, password string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}
	identity.SetMaxWorkFactor(max(b.WorkFactor, DefaultWorkFactor))

	r, err := age.Decrypt(armor.NewReader(strings.NewReader(ciphertext)), identity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return nil, ErrWrongPassword
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	return plaintext, nil
}

func mac(ciphertext, password string) string {
	key := make([]byte, 32)
	blake3.DeriveKey(macContext, []byte(password), key)
	h, err := blake3.NewKeyed(key)
	if err != nil {
		// NewKeyed only fails on a key that is not 32 bytes.
		panic(err)
	}
	_, _ = h.WriteString(ciphertext)
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateEncryptedHmac prefixes ciphertext with its authentication tag.
func (b *Backup) GenerateEncryptedHmac(ciphertext, password string) string {
	return mac(ciphertext, password) + ciphertext
}

// GetAuthenticBackup verifies the tag and returns the ciphertext it covers.
func (b *Backup) GetAuthenticBackup(serialized, password string) (string, error) {
	if len(serialized) <= macHexSize {
		return "", ErrMalformed
	}
	tag, ciphertext := serialized[:macHexSize], serialized[macHexSize:]
	if subtle.ConstantTimeCompare([]byte(tag), []byte(mac(ciphertext, password))) != 1 {
		return "", ErrBackupTampered
	}
	return ciphertext, nil
}

// Seal encrypts then authenticates plaintext.
func (b *Backup) Seal(plaintext []byte, password string) (string, error) {
	ciphertext, err := b.Encrypt(plaintext, password)
	if err != nil {
		return "", err
	}
	return b.GenerateEncryptedHmac(ciphertext, password), nil
}

// Open authenticates then decrypts a Seal output.
func (b *Backup) Open(serialized, password string) ([]byte, error) {
	ciphertext, err := b.GetAuthenticBackup(serialized, password)
	if err != nil {
		return nil, err
	}
	return b.Decrypt(ciphertext, password)
}
