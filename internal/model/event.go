package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventStore defines persistence operations for the canonical event log.
type EventStore interface {
	InsertIfAbsent(ctx context.Context, event Event) (serverID int64, inserted bool, err error)
	ListRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]Event, error)
	ListReceivedAfter(ctx context.Context, userID uuid.UUID, after time.Time, excludeDevice string) ([]Event, error)
	Latest(ctx context.Context, userID uuid.UUID) (Event, error)
	LatestBefore(ctx context.Context, userID uuid.UUID, before time.Time) (Event, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Event represents a single lock or unlock transition.
//
// ID is assigned on the originating device and never changes; it is the
// idempotency key for sync. ServerID is assigned by the server of record on
// first insert. Timestamp carries the device clock at millisecond resolution;
// ReceivedAt carries the server clock and is the axis sync checkpoints move
// along.
type Event struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	DeviceID   string
	Type       EventType
	Timestamp  time.Time
	Source     string
	SyncState  SyncState
	ServerID   int64
	ReceivedAt time.Time
}

// EventType enumerates transition kinds.
type EventType string

const (
	// EventTypeLock marks the device becoming locked.
	EventTypeLock EventType = "lock"
	// EventTypeUnlock marks the device becoming interactively unlocked.
	EventTypeUnlock EventType = "unlock"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return t == EventTypeLock || t == EventTypeUnlock
}

// SyncState enumerates client-side sync states of an event.
type SyncState string

const (
	// SyncStatePending means the event has not been confirmed by the server.
	SyncStatePending SyncState = "pending"
	// SyncStateConfirmed means the server has acknowledged the event.
	SyncStateConfirmed SyncState = "confirmed"
)

// SourceAutomatic tags events recorded from device signals, as opposed to
// backfills or administrative inserts.
const SourceAutomatic = "automatic"
