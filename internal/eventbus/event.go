package eventbus

import "time"

type EventType string

const (
	EventLocked          EventType = "locker.locked"
	EventUnlocked        EventType = "locker.unlocked"
	EventRequestCreated  EventType = "request.created"
	EventRequestResolved EventType = "request.resolved"
	EventPermissionSet   EventType = "permission.set"
	EventPermissionGone  EventType = "permission.removed"
	EventIdentityChanged EventType = "identity.changed"
	EventPopupOpened     EventType = "popup.opened"
	EventPopupClosed     EventType = "popup.closed"
)

type Event struct {
	ID         string            `json:"id" cbor:"id"`
	Type       EventType         `json:"type" cbor:"type"`
	ResourceID string            `json:"resource_id,omitempty" cbor:"resource_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty" cbor:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at" cbor:"created_at"`
}
