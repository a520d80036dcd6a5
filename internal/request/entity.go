package request

import (
	"fmt"
	"time"
)

type Type int32

const (
	TypeUnspecified    Type = 0
	TypeConnect        Type = 1
	TypeSemaphoreProof Type = 2
	TypeRLNProof       Type = 3
	TypeApprove        Type = 4
	TypeCreateIdentity Type = 5
)

var typeNames = map[Type]string{
	TypeUnspecified:    "UNSPECIFIED",
	TypeConnect:        "CONNECT",
	TypeSemaphoreProof: "SEMAPHORE_PROOF",
	TypeRLNProof:       "RLN_PROOF",
	TypeApprove:        "APPROVE",
	TypeCreateIdentity: "CREATE_IDENTITY",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int32(t))
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	for k, v := range typeNames {
		if v == string(text) {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown request type %q", text)
}

type Status int32

const (
	StatusPending   Status = 0
	StatusAccepted  Status = 1
	StatusRejected  Status = 2
	StatusCancelled Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	case StatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

// PendingRequest is a prompt waiting for the user's decision.
type PendingRequest struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Resolution is the user's decision on one pending request.
type Resolution struct {
	ID       string `json:"id"`
	Accepted bool   `json:"accepted"`
	Data     any    `json:"data,omitempty"`
	Reason   string `json:"reason,omitempty"`
}
