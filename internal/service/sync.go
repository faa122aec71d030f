package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davidtorcivia/stifle-sub001/internal/logger"
	"github.com/davidtorcivia/stifle-sub001/internal/model"
)

// Sync processes client sync rounds against the canonical event log.
type Sync struct {
	eventStore model.EventStore
	logger     *logger.Logger
	now        func() time.Time
}

func NewSync(eventStore model.EventStore, logger *logger.Logger) *Sync {
	return &Sync{
		eventStore: eventStore,
		logger:     logger,
		now:        time.Now,
	}
}

// ProcessRound applies one sync round: dedup-insert every submitted event,
// collect confirmations, and gather events from other devices the client has
// not seen. The checkpoint is taken before the missing-events query so an
// event received mid-round is never skipped; at worst it is sent twice, and
// the client inserts by id so a repeat is harmless.
func (s *Sync) ProcessRound(ctx context.Context, userID uuid.UUID, req model.SyncRequest) (model.SyncResponse, error) {
	if req.DeviceID == "" {
		return model.SyncResponse{}, fmt.Errorf("%w: missing device id", model.ErrInvalidEvent)
	}

	checkpoint := s.now()

	confirmed := make([]model.Confirmation, 0, len(req.Events))
	submitted := make(map[uuid.UUID]struct{}, len(req.Events))
	for _, se := range req.Events {
		if se.ID == uuid.Nil || !se.Type.Valid() || se.Timestamp <= 0 {
			s.logger.Warn("skipping malformed sync event",
				"user_id", userID,
				"client_id", se.ID,
				"type", se.Type)
			continue
		}

		event := model.EventFromWire(se, userID, req.DeviceID)
		serverID, inserted, err := s.eventStore.InsertIfAbsent(ctx, event)
		if err != nil {
			return model.SyncResponse{}, fmt.Errorf("failed to insert event: %w", err)
		}
		if !inserted {
			s.logger.Debug("event already known, re-confirming",
				"user_id", userID,
				"client_id", se.ID,
				"server_id", serverID)
		}

		confirmed = append(confirmed, model.Confirmation{ClientID: se.ID, ServerID: serverID})
		submitted[se.ID] = struct{}{}
	}

	after := time.UnixMilli(req.LastCheckpoint).UTC()
	others, err := s.eventStore.ListReceivedAfter(ctx, userID, after, req.DeviceID)
	if err != nil {
		return model.SyncResponse{}, fmt.Errorf("failed to list events after checkpoint: %w", err)
	}

	missing := make([]model.SyncEvent, 0, len(others))
	for _, e := range others {
		if _, ok := submitted[e.ID]; ok {
			continue
		}
		missing = append(missing, model.WireEvent(e))
	}

	return model.SyncResponse{
		Confirmed:  confirmed,
		Missing:    missing,
		Checkpoint: checkpoint.UnixMilli(),
	}, nil
}

// Status classifies the user as locked or unlocked from the latest canonical
// event and reports the live streak duration while locked. An empty log reads
// as unlocked.
func (s *Sync) Status(ctx context.Context, userID uuid.UUID) (model.StatusInfo, error) {
	latest, err := s.eventStore.Latest(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return model.StatusInfo{}, nil
	}
	if err != nil {
		return model.StatusInfo{}, fmt.Errorf("failed to get latest event: %w", err)
	}

	info := model.StatusInfo{
		Locked: latest.Type == model.EventTypeLock,
		Since:  latest.Timestamp,
	}
	if info.Locked {
		if secs := int64(s.now().Sub(latest.Timestamp) / time.Second); secs > 0 {
			info.CurrentStreakSeconds = secs
		}
	}

	return info, nil
}

// EventsInRange returns the user's canonical events with timestamps in
// [from, to), ascending.
func (s *Sync) EventsInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]model.Event, error) {
	events, err := s.eventStore.ListRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}
