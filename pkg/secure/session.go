package secure

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"sync"
)

// Cipher encrypts documents for data at rest.
type Cipher interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
}

// Session holds the data key while the broker is unlocked. The key never
// leaves memory.
type Session struct {
	mu  sync.RWMutex
	key []byte
}

func NewSession() *Session {
	return &Session{}
}

// SetKey installs a copy of key.
func (s *Session) SetKey(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("session key must be %d bytes, got %d", KeySize, len(key))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = append([]byte(nil), key...)
	return nil
}

// Clear zeroes and drops the key.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.key {
		s.key[i] = 0
	}
	s.key = nil
}

func (s *Session) HasKey() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key != nil
}

// Matches reports whether key equals the installed key.
func (s *Session) Matches(key []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key != nil && subtle.ConstantTimeCompare(s.key, key) == 1
}

func (s *Session) subkey(purpose string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return nil, ErrLocked
	}
	return deriveKey(s.key, "keeperd.session."+purpose)
}

// For returns a Cipher bound to purpose. Ciphertexts of one purpose can not
// be opened as another.
func (s *Session) For(purpose string) Cipher {
	return &purposeCipher{session: s, purpose: purpose}
}

type purposeCipher struct {
	session *Session
	purpose string
}

func (c *purposeCipher) Encrypt(plaintext []byte) (string, error) {
	key, err := c.session.subkey(c.purpose)
	if err != nil {
		return "", err
	}
	blob, err := Seal(key, plaintext, c.purpose)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(blob), nil
}

func (c *purposeCipher) Decrypt(ciphertext string) ([]byte, error) {
	key, err := c.session.subkey(c.purpose)
	if err != nil {
		return nil, err
	}
	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	return Open(key, blob, c.purpose)
}
