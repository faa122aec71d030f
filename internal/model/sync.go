package model

import (
	"time"

	"github.com/google/uuid"
)

// SyncEvent is the wire form of an event inside a sync round. Timestamps are
// Unix milliseconds of the device clock.
type SyncEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Source    string    `json:"source"`
	ServerID  int64     `json:"serverId,omitempty"`
}

// SyncRequest is one client-initiated sync round: every locally pending event
// plus the checkpoint returned by the previous round.
type SyncRequest struct {
	DeviceID       string      `json:"deviceId"`
	Events         []SyncEvent `json:"events"`
	LastCheckpoint int64       `json:"lastSyncCheckpoint"`
	ClientTime     int64       `json:"clientTime"`
}

// Confirmation maps a client-generated event id to its server-assigned id.
type Confirmation struct {
	ClientID uuid.UUID `json:"clientId"`
	ServerID int64     `json:"serverId"`
}

// SyncResponse carries everything the client needs to reconcile: one
// confirmation per submitted event, events recorded by other devices since the
// previous checkpoint, and the new checkpoint.
type SyncResponse struct {
	Confirmed  []Confirmation `json:"confirmed"`
	Missing    []SyncEvent    `json:"missing"`
	Checkpoint int64          `json:"checkpoint"`
}

// WireEvent converts a canonical event to its wire form.
func WireEvent(e Event) SyncEvent {
	return SyncEvent{
		ID:        e.ID,
		Type:      e.Type,
		Timestamp: e.Timestamp.UnixMilli(),
		Source:    e.Source,
		ServerID:  e.ServerID,
	}
}

// EventFromWire converts a wire event into a canonical event owned by userID.
func EventFromWire(se SyncEvent, userID uuid.UUID, deviceID string) Event {
	return Event{
		ID:        se.ID,
		UserID:    userID,
		DeviceID:  deviceID,
		Type:      se.Type,
		Timestamp: time.UnixMilli(se.Timestamp).UTC(),
		Source:    se.Source,
		ServerID:  se.ServerID,
	}
}
