package identity

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

type Group struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Favicon     string `json:"favicon,omitempty" yaml:"favicon,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	API         string `json:"api,omitempty" yaml:"api,omitempty"`
	Contract    string `json:"contract,omitempty" yaml:"contract,omitempty"`
}

type Metadata struct {
	Name      string  `json:"name" yaml:"name"`
	URLOrigin string  `json:"urlOrigin,omitempty" yaml:"url_origin,omitempty"`
	Groups    []Group `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// Identity is the identity connected to the broker. Secret is the identity's
// serialized private material and is only handed to provers.
type Identity struct {
	Commitment string   `json:"commitment" yaml:"commitment"`
	Secret     string   `json:"-" yaml:"secret"`
	Metadata   Metadata `json:"metadata" yaml:"metadata"`
}

// Connection is the public view of the connected identity.
type Connection struct {
	Commitment string `json:"commitment"`
	Name       string `json:"name"`
	URLOrigin  string `json:"urlOrigin,omitempty"`
}

func (i *Identity) Connection() Connection {
	return Connection{
		Commitment: i.Commitment,
		Name:       i.Metadata.Name,
		URLOrigin:  i.Metadata.URLOrigin,
	}
}

type serialized struct {
	Secret   string   `json:"secret"`
	Metadata Metadata `json:"metadata"`
}

// Serialize returns the form passed to provers.
func (i *Identity) Serialize() (string, error) {
	b, err := json.Marshal(serialized{Secret: i.Secret, Metadata: i.Metadata})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (i *Identity) validate() error {
	switch {
	case i.Commitment == "":
		return fmt.Errorf("commitment is empty")
	case i.Secret == "":
		return fmt.Errorf("secret is empty")
	}
	return nil
}

type document struct {
	Version  int       `yaml:"version"`
	Identity *Identity `yaml:"identity"`
}

const documentVersion = 1

func encodeIdentity(i *Identity) ([]byte, error) {
	return yaml.Marshal(document{Version: documentVersion, Identity: i})
}

func decodeIdentity(data []byte) (*Identity, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Version != documentVersion {
		return nil, fmt.Errorf("unsupported identity document version %d", doc.Version)
	}
	if doc.Identity == nil {
		return nil, fmt.Errorf("identity document is empty")
	}
	if err := doc.Identity.validate(); err != nil {
		return nil, err
	}
	return doc.Identity, nil
}
