package proof

import (
	"fmt"
	"path/filepath"
)

type Kind string

const (
	KindSemaphore Kind = "semaphore"
	KindRLN       Kind = "rln"
)

type MerkleProof struct {
	Root        string   `json:"root" cbor:"root"`
	Leaf        string   `json:"leaf" cbor:"leaf"`
	Siblings    []string `json:"siblings" cbor:"siblings"`
	PathIndices []int    `json:"pathIndices" cbor:"path_indices"`
}

// MerkleProofArtifacts lets the prover build the merkle proof from a leaf set.
type MerkleProofArtifacts struct {
	Leaves        []string `json:"leaves" cbor:"leaves"`
	Depth         int      `json:"depth" cbor:"depth"`
	LeavesPerNode int      `json:"leavesPerNode" cbor:"leaves_per_node"`
}

// Circuit locates the proving artifacts of one circuit.
type Circuit struct {
	CircuitFilePath string `json:"circuitFilePath,omitempty" cbor:"circuit_file_path,omitempty"`
	ZkeyFilePath    string `json:"zkeyFilePath,omitempty" cbor:"zkey_file_path,omitempty"`
	VerificationKey string `json:"verificationKey,omitempty" cbor:"verification_key,omitempty"`
}

func (c Circuit) paths() []string {
	var paths []string
	for _, p := range []string{c.CircuitFilePath, c.ZkeyFilePath, c.VerificationKey} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// Artifacts holds the circuits available to the broker.
type Artifacts struct {
	Semaphore Circuit
	RLN       Circuit
}

// ArtifactsIn returns the conventional artifact layout under dir.
func ArtifactsIn(dir string) Artifacts {
	circuit := func(name string) Circuit {
		return Circuit{
			CircuitFilePath: filepath.Join(dir, name+".wasm"),
			ZkeyFilePath:    filepath.Join(dir, name+".zkey"),
			VerificationKey: filepath.Join(dir, name+".json"),
		}
	}
	return Artifacts{Semaphore: circuit("semaphore"), RLN: circuit("rln")}
}

func (a Artifacts) Paths() []string {
	return append(a.Semaphore.paths(), a.RLN.paths()...)
}

type SemaphoreProofRequest struct {
	IdentitySerialized   string                `json:"identitySerialized,omitempty" cbor:"identity_serialized,omitempty"`
	ExternalNullifier    string                `json:"externalNullifier" cbor:"external_nullifier"`
	Signal               string                `json:"signal" cbor:"signal"`
	MerkleStorageAddress string                `json:"merkleStorageAddress,omitempty" cbor:"merkle_storage_address,omitempty"`
	MerkleProofArtifacts *MerkleProofArtifacts `json:"merkleProofArtifacts,omitempty" cbor:"merkle_proof_artifacts,omitempty"`
	MerkleProofProvided  *MerkleProof          `json:"merkleProofProvided,omitempty" cbor:"merkle_proof_provided,omitempty"`
	Circuit
	URLOrigin string `json:"urlOrigin,omitempty" cbor:"url_origin,omitempty"`
}

// Redacted returns a copy without the serialized identity, fit for display.
func (r SemaphoreProofRequest) Redacted() SemaphoreProofRequest {
	r.IdentitySerialized = ""
	return r
}

type RLNProofRequest struct {
	IdentitySerialized   string                `json:"identitySerialized,omitempty" cbor:"identity_serialized,omitempty"`
	RLNIdentifier        string                `json:"rlnIdentifier" cbor:"rln_identifier"`
	Message              string                `json:"message" cbor:"message"`
	Epoch                string                `json:"epoch" cbor:"epoch"`
	MessageLimit         int                   `json:"messageLimit" cbor:"message_limit"`
	MessageID            int                   `json:"messageId" cbor:"message_id"`
	MerkleStorageAddress string                `json:"merkleStorageAddress,omitempty" cbor:"merkle_storage_address,omitempty"`
	MerkleProofArtifacts *MerkleProofArtifacts `json:"merkleProofArtifacts,omitempty" cbor:"merkle_proof_artifacts,omitempty"`
	MerkleProofProvided  *MerkleProof          `json:"merkleProofProvided,omitempty" cbor:"merkle_proof_provided,omitempty"`
	Circuit
	URLOrigin string `json:"urlOrigin,omitempty" cbor:"url_origin,omitempty"`
}

func (r RLNProofRequest) Redacted() RLNProofRequest {
	r.IdentitySerialized = ""
	return r
}

// Request is one unit of work for a Delegate. Exactly one of Semaphore and
// RLN is set, matching Kind.
type Request struct {
	Kind      Kind                   `json:"kind" cbor:"kind"`
	Semaphore *SemaphoreProofRequest `json:"semaphore,omitempty" cbor:"semaphore,omitempty"`
	RLN       *RLNProofRequest       `json:"rln,omitempty" cbor:"rln,omitempty"`
}

func (r *Request) Validate() error {
	switch r.Kind {
	case KindSemaphore:
		if r.Semaphore == nil {
			return fmt.Errorf("semaphore request is empty")
		}
	case KindRLN:
		if r.RLN == nil {
			return fmt.Errorf("rln request is empty")
		}
	default:
		return fmt.Errorf("unknown proof kind %q", r.Kind)
	}
	return nil
}

func (r *Request) Circuit() Circuit {
	if r.Kind == KindRLN && r.RLN != nil {
		return r.RLN.Circuit
	}
	if r.Semaphore != nil {
		return r.Semaphore.Circuit
	}
	return Circuit{}
}

// FullProof is a snark proof together with its public signals.
type FullProof struct {
	Proof         map[string]any `json:"proof" cbor:"proof"`
	PublicSignals []string       `json:"publicSignals" cbor:"public_signals"`
}

type Response struct {
	Kind      Kind      `json:"kind" cbor:"kind"`
	FullProof FullProof `json:"fullProof" cbor:"full_proof"`
}
