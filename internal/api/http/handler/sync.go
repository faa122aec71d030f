package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/davidtorcivia/stifle-sub001/internal/logger"
	"github.com/davidtorcivia/stifle-sub001/internal/model"
)

// Sync handles the sync round and event log endpoints.
type Sync struct {
	syncService    SyncService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewSync creates a new Sync handler.
func NewSync(syncService SyncService, contextManager model.ContextManager, logger *logger.Logger) *Sync {
	return &Sync{
		syncService:    syncService,
		contextManager: contextManager,
		logger:         logger,
	}
}

// ProcessRound accepts a batch of pending client events plus the client's
// checkpoint and responds with confirmations, missing events and a new
// checkpoint. Safe to retry: the server dedupes by client event id.
func (h *Sync) ProcessRound(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.contextManager.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing user id"})
		return
	}

	var req model.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	resp, err := h.syncService.ProcessRound(r.Context(), userID, req)
	if err != nil {
		h.logger.Error("sync round failed",
			"user_id", userID,
			"device_id", req.DeviceID,
			"error", err.Error())
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	Locked               bool   `json:"locked"`
	Since                int64  `json:"since,omitempty"`
	CurrentStreakSeconds int64  `json:"currentStreakSeconds"`
	State                string `json:"state"`
}

// Status reports the caller's live lock state from the canonical log.
func (h *Sync) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.contextManager.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing user id"})
		return
	}

	info, err := h.syncService.Status(r.Context(), userID)
	if err != nil {
		h.logger.Error("status query failed", "user_id", userID, "error", err.Error())
		handleError(w, err)
		return
	}

	resp := statusResponse{
		Locked:               info.Locked,
		CurrentStreakSeconds: info.CurrentStreakSeconds,
		State:                "unlocked",
	}
	if info.Locked {
		resp.State = "locked"
	}
	if !info.Since.IsZero() {
		resp.Since = info.Since.UnixMilli()
	}

	writeJSON(w, http.StatusOK, resp)
}

type eventsResponse struct {
	Events []model.SyncEvent `json:"events"`
}

// Events returns the caller's canonical events in [from, to), both given as
// Unix milliseconds. The range defaults to the trailing seven days.
func (h *Sync) Events(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.contextManager.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing user id"})
		return
	}

	to := time.Now()
	from := to.AddDate(0, 0, -7)

	query := r.URL.Query()
	if s := query.Get("to"); s != "" {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid 'to' parameter"})
			return
		}
		to = time.UnixMilli(ms)
		from = to.AddDate(0, 0, -7)
	}
	if s := query.Get("from"); s != "" {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid 'from' parameter"})
			return
		}
		from = time.UnixMilli(ms)
	}

	events, err := h.syncService.EventsInRange(r.Context(), userID, from, to)
	if err != nil {
		h.logger.Error("event range query failed", "user_id", userID, "error", err.Error())
		handleError(w, err)
		return
	}

	resp := eventsResponse{Events: make([]model.SyncEvent, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, model.WireEvent(e))
	}

	writeJSON(w, http.StatusOK, resp)
}
