// Package syncer reconciles the agent's local event log with the server of
// record. Rounds are safe to retry without bound: the server dedupes by
// client event id, so a round lost to the network costs nothing but time.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/davidtorcivia/stifle-sub001/internal/logger"
	"github.com/davidtorcivia/stifle-sub001/internal/model"
)

// Store is the slice of the local store the engine reconciles.
type Store interface {
	ListPending(ctx context.Context) ([]model.Event, error)
	MarkConfirmed(ctx context.Context, clientID uuid.UUID, serverID int64) error
	InsertConfirmed(ctx context.Context, event model.Event) error
	Checkpoint(ctx context.Context) (int64, error)
	SetCheckpoint(ctx context.Context, ms int64) error
}

// Engine pushes pending events to the server and applies the response.
type Engine struct {
	store    Store
	client   *http.Client
	baseURL  string
	userID   uuid.UUID
	deviceID string
	interval time.Duration
	trigger  chan struct{}
	logger   *logger.Logger
	now      func() time.Time
}

// New creates an Engine syncing store against the server at baseURL.
// requestTimeout bounds each round; a timed-out round leaves every event
// pending for the next trigger.
func New(store Store, baseURL string, userID uuid.UUID, deviceID string, interval, requestTimeout time.Duration, logger *logger.Logger) *Engine {
	return &Engine{
		store:    store,
		client:   &http.Client{Timeout: requestTimeout},
		baseURL:  baseURL,
		userID:   userID,
		deviceID: deviceID,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		logger:   logger,
		now:      time.Now,
	}
}

// Trigger requests a sync round without blocking the caller. A round already
// queued absorbs further triggers.
func (e *Engine) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Run serves sync rounds until ctx is done: one round per trigger, plus a
// periodic backstop for events captured while the server was unreachable.
// The loop serializes rounds; overlap would be safe regardless because the
// server inserts idempotently.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.trigger:
		case <-ticker.C:
		}

		if err := e.SyncOnce(ctx); err != nil {
			// Silent to the user: events stay pending and the next
			// trigger retries.
			e.logger.Warn("sync round failed", "error", err)
		}
	}
}

// SyncOnce runs a single round: push every pending event plus the current
// checkpoint, then apply the whole response or none of it.
func (e *Engine) SyncOnce(ctx context.Context) error {
	pending, err := e.store.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending events: %w", err)
	}
	checkpoint, err := e.store.Checkpoint(ctx)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}

	req := model.SyncRequest{
		DeviceID:       e.deviceID,
		Events:         make([]model.SyncEvent, 0, len(pending)),
		LastCheckpoint: checkpoint,
		ClientTime:     e.now().UnixMilli(),
	}
	for _, event := range pending {
		req.Events = append(req.Events, model.WireEvent(event))
	}

	resp, err := e.postRound(ctx, req)
	if err != nil {
		return err
	}

	return e.apply(ctx, resp)
}

func (e *Engine) postRound(ctx context.Context, round model.SyncRequest) (model.SyncResponse, error) {
	body, err := json.Marshal(round)
	if err != nil {
		return model.SyncResponse{}, fmt.Errorf("failed to encode sync request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/v1/sync", bytes.NewReader(body))
	if err != nil {
		return model.SyncResponse{}, fmt.Errorf("failed to build sync request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-User-ID", e.userID.String())

	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		return model.SyncResponse{}, fmt.Errorf("sync request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 256))
		return model.SyncResponse{}, fmt.Errorf("sync request rejected: status %d: %s", httpResp.StatusCode, snippet)
	}

	var resp model.SyncResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return model.SyncResponse{}, fmt.Errorf("failed to decode sync response: %w", err)
	}

	return resp, nil
}

// apply commits a fully received response. Every step is idempotent, so a
// crash mid-apply is repaired by the next round re-confirming.
func (e *Engine) apply(ctx context.Context, resp model.SyncResponse) error {
	for _, confirmation := range resp.Confirmed {
		if err := e.store.MarkConfirmed(ctx, confirmation.ClientID, confirmation.ServerID); err != nil {
			return fmt.Errorf("failed to confirm event %s: %w", confirmation.ClientID, err)
		}
	}

	for _, wire := range resp.Missing {
		event := model.EventFromWire(wire, e.userID, "")
		event.SyncState = model.SyncStateConfirmed
		if err := e.store.InsertConfirmed(ctx, event); err != nil {
			return fmt.Errorf("failed to insert server event %s: %w", wire.ID, err)
		}
	}

	if err := e.store.SetCheckpoint(ctx, resp.Checkpoint); err != nil {
		return fmt.Errorf("failed to advance checkpoint: %w", err)
	}

	e.logger.Debug("sync round applied",
		"confirmed", len(resp.Confirmed),
		"received", len(resp.Missing),
		"checkpoint", resp.Checkpoint)

	return nil
}
