package credentialimpl

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/keeperd/internal/locker"
	"github.com/kazz187/keeperd/pkg/secure"
	"github.com/kazz187/keeperd/pkg/storage"
)

const credentialPath = "locker/credential.yaml"

type document struct {
	Version int              `yaml:"version"`
	Salt    string           `yaml:"salt"`
	KDF     secure.KDFParams `yaml:"kdf"`
	Blob    string           `yaml:"blob"`
}

func encode(w *secure.WrappedKey) ([]byte, error) {
	return yaml.Marshal(document{
		Version: 1,
		Salt:    base64.StdEncoding.EncodeToString(w.Salt),
		KDF:     w.KDF,
		Blob:    base64.StdEncoding.EncodeToString(w.Blob),
	})
}

func decode(data []byte) (*secure.WrappedKey, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	if doc.Version != 1 {
		return nil, fmt.Errorf("unsupported credential version %d", doc.Version)
	}
	salt, err := base64.StdEncoding.DecodeString(doc.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode credential salt: %w", err)
	}
	blob, err := base64.StdEncoding.DecodeString(doc.Blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode credential blob: %w", err)
	}
	return &secure.WrappedKey{Salt: salt, KDF: doc.KDF, Blob: blob}, nil
}

// YAMLStore keeps the wrapped key as a YAML document in storage.
type YAMLStore struct {
	storage storage.Storage
}

var _ locker.CredentialStore = (*YAMLStore)(nil)

func NewYAMLStore(s storage.Storage) *YAMLStore {
	return &YAMLStore{storage: s}
}

func (r *YAMLStore) Load(ctx context.Context) (*secure.WrappedKey, error) {
	data, err := r.storage.Read(ctx, credentialPath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, locker.ErrNoCredential
	}
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func (r *YAMLStore) Save(ctx context.Context, w *secure.WrappedKey) error {
	data, err := encode(w)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	return r.storage.Write(ctx, credentialPath, data)
}
