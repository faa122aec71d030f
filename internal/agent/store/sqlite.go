// Package store is the agent's durable local event log, an append-only
// SQLite database that survives restarts and offline stretches.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/davidtorcivia/stifle-sub001/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id         TEXT PRIMARY KEY,
    type       TEXT NOT NULL,
    ts_ms      INTEGER NOT NULL,
    source     TEXT NOT NULL DEFAULT 'automatic',
    sync_state TEXT NOT NULL DEFAULT 'pending',
    server_id  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_events_state_ts ON events (sync_state, ts_ms);

CREATE TABLE IF NOT EXISTS sync_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const checkpointKey = "last_sync_checkpoint"

// SQLiteStore is the local event store backed by a SQLite file.
type SQLiteStore struct {
	path string
	db   *sql.DB
}

// NewSQLiteStore creates a store at path; call Init before use.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init creates the parent directory, opens the database and applies the
// schema.
func (s *SQLiteStore) Init() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append durably stores a freshly captured event. The id is unique by
// construction; a conflict means a real bug upstream and is surfaced.
func (s *SQLiteStore) Append(ctx context.Context, event model.Event) error {
	const query = `INSERT INTO events (id, type, ts_ms, source, sync_state, server_id) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		event.ID.String(), string(event.Type), event.Timestamp.UnixMilli(),
		event.Source, string(event.SyncState), event.ServerID,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ListPending returns all unconfirmed events ordered by timestamp ascending.
func (s *SQLiteStore) ListPending(ctx context.Context) ([]model.Event, error) {
	const query = `SELECT id, type, ts_ms, source, sync_state, server_id FROM events WHERE sync_state = ? ORDER BY ts_ms ASC`
	rows, err := s.db.QueryContext(ctx, query, string(model.SyncStatePending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// MarkConfirmed flags one event confirmed and stores its server id.
// Confirming an already-confirmed event is a no-op.
func (s *SQLiteStore) MarkConfirmed(ctx context.Context, clientID uuid.UUID, serverID int64) error {
	const query = `UPDATE events SET sync_state = ?, server_id = ? WHERE id = ? AND sync_state = ?`
	_, err := s.db.ExecContext(ctx, query,
		string(model.SyncStateConfirmed), serverID,
		clientID.String(), string(model.SyncStatePending),
	)
	if err != nil {
		return fmt.Errorf("failed to mark event confirmed: %w", err)
	}
	return nil
}

// InsertConfirmed stores a server-originated event as already confirmed.
// Events the store has already seen are skipped by id.
func (s *SQLiteStore) InsertConfirmed(ctx context.Context, event model.Event) error {
	const query = `INSERT OR IGNORE INTO events (id, type, ts_ms, source, sync_state, server_id) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		event.ID.String(), string(event.Type), event.Timestamp.UnixMilli(),
		event.Source, string(model.SyncStateConfirmed), event.ServerID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert confirmed event: %w", err)
	}
	return nil
}

// Latest returns the most recent event by timestamp, or ErrNotFound on an
// empty log.
func (s *SQLiteStore) Latest(ctx context.Context) (model.Event, error) {
	const query = `SELECT id, type, ts_ms, source, sync_state, server_id FROM events ORDER BY ts_ms DESC LIMIT 1`
	row := s.db.QueryRowContext(ctx, query)

	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, model.ErrNotFound
	}
	return event, err
}

// PurgeOlderThan deletes events with timestamps strictly before cutoff,
// regardless of sync state. Local retention only; correctness never depends
// on it.
func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM events WHERE ts_ms < ?`
	res, err := s.db.ExecContext(ctx, query, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge events: %w", err)
	}
	return res.RowsAffected()
}

// Checkpoint returns the last server-issued sync checkpoint in Unix
// milliseconds, zero before the first successful round.
func (s *SQLiteStore) Checkpoint(ctx context.Context) (int64, error) {
	const query = `SELECT value FROM sync_meta WHERE key = ?`
	var value int64
	err := s.db.QueryRowContext(ctx, query, checkpointKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	return value, nil
}

// SetCheckpoint advances the stored checkpoint.
func (s *SQLiteStore) SetCheckpoint(ctx context.Context, ms int64) error {
	const query = `INSERT INTO sync_meta (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, query, checkpointKey, ms); err != nil {
		return fmt.Errorf("failed to store checkpoint: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (model.Event, error) {
	var event model.Event
	var id, eventType, syncState string
	var tsMillis int64
	if err := row.Scan(&id, &eventType, &tsMillis, &event.Source, &syncState, &event.ServerID); err != nil {
		return model.Event{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return model.Event{}, fmt.Errorf("corrupt event id %q: %w", id, err)
	}
	event.ID = parsed
	event.Type = model.EventType(eventType)
	event.SyncState = model.SyncState(syncState)
	event.Timestamp = time.UnixMilli(tsMillis).UTC()

	return event, nil
}

func scanEvents(rows *sql.Rows) ([]model.Event, error) {
	var events []model.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
