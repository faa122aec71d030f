package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/davidtorcivia/stifle-sub001/internal/model"
)

var _ model.EventStore = (*EventRepository)(nil)

// EventRepository stores the canonical per-user event log.
type EventRepository struct {
	db *Connection
}

func NewEventRepository(db *Connection) *EventRepository {
	return &EventRepository{
		db: db,
	}
}

// InsertIfAbsent inserts the event keyed by (user_id, client_id); when the id
// is already present it returns the existing server id untouched, which makes
// repeated sync submissions idempotent.
func (r *EventRepository) InsertIfAbsent(ctx context.Context, event model.Event) (int64, bool, error) {
	query := `
		WITH ins AS (
			INSERT INTO events (client_id, user_id, device_id, type, ts, source)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, client_id) DO NOTHING
			RETURNING server_id
		)
		SELECT server_id, TRUE AS inserted
		FROM ins
		UNION ALL
		SELECT e.server_id, FALSE AS inserted
		FROM events e
		WHERE NOT EXISTS (SELECT 1 FROM ins) AND e.user_id = $2 AND e.client_id = $1
		LIMIT 1`

	var serverID int64
	var inserted bool
	err := r.db.QueryRow(ctx, query,
		event.ID, event.UserID, event.DeviceID, string(event.Type), event.Timestamp, event.Source,
	).Scan(&serverID, &inserted)
	if err != nil {
		return 0, false, err
	}

	return serverID, inserted, nil
}

// ListRange returns the user's events with ts in [from, to), ascending.
func (r *EventRepository) ListRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]model.Event, error) {
	query := `
		SELECT e.server_id, e.client_id, e.user_id, e.device_id, e.type, e.ts, e.source, e.received_at
		FROM events e
		WHERE e.user_id = $1 AND e.ts >= $2 AND e.ts < $3
		ORDER BY e.ts ASC`

	rows, err := r.db.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListReceivedAfter returns events the server recorded after the given
// checkpoint, skipping those that originated on excludeDevice. This is the
// "events from other sessions" feed of a sync round.
func (r *EventRepository) ListReceivedAfter(ctx context.Context, userID uuid.UUID, after time.Time, excludeDevice string) ([]model.Event, error) {
	query := `
		SELECT e.server_id, e.client_id, e.user_id, e.device_id, e.type, e.ts, e.source, e.received_at
		FROM events e
		WHERE e.user_id = $1 AND e.received_at > $2 AND e.device_id <> $3
		ORDER BY e.received_at ASC`

	rows, err := r.db.Query(ctx, query, userID, after, excludeDevice)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Latest returns the user's most recent event by device timestamp.
func (r *EventRepository) Latest(ctx context.Context, userID uuid.UUID) (model.Event, error) {
	query := `
		SELECT e.server_id, e.client_id, e.user_id, e.device_id, e.type, e.ts, e.source, e.received_at
		FROM events e
		WHERE e.user_id = $1
		ORDER BY e.ts DESC
		LIMIT 1`

	return r.queryOne(ctx, query, userID)
}

// LatestBefore returns the user's most recent event strictly before the given
// instant. Scoring uses it to seed cross-week streak pairing.
func (r *EventRepository) LatestBefore(ctx context.Context, userID uuid.UUID, before time.Time) (model.Event, error) {
	query := `
		SELECT e.server_id, e.client_id, e.user_id, e.device_id, e.type, e.ts, e.source, e.received_at
		FROM events e
		WHERE e.user_id = $1 AND e.ts < $2
		ORDER BY e.ts DESC
		LIMIT 1`

	return r.queryOne(ctx, query, userID, before)
}

// DeleteOlderThan purges events with ts strictly older than cutoff and
// returns the number of rows removed.
func (r *EventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM events WHERE ts < $1`
	cmd, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *EventRepository) queryOne(ctx context.Context, query string, args ...any) (model.Event, error) {
	var event model.Event
	var eventType string
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&event.ServerID, &event.ID, &event.UserID, &event.DeviceID,
		&eventType, &event.Timestamp, &event.Source, &event.ReceivedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Event{}, model.ErrNotFound
		}
		return model.Event{}, err
	}
	event.Type = model.EventType(eventType)
	event.SyncState = model.SyncStateConfirmed

	return event, nil
}

func scanEvents(rows pgx.Rows) ([]model.Event, error) {
	var events []model.Event
	for rows.Next() {
		var event model.Event
		var eventType string
		err := rows.Scan(
			&event.ServerID, &event.ID, &event.UserID, &event.DeviceID,
			&eventType, &event.Timestamp, &event.Source, &event.ReceivedAt,
		)
		if err != nil {
			return nil, err
		}
		event.Type = model.EventType(eventType)
		event.SyncState = model.SyncStateConfirmed
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
