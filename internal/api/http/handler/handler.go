package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/davidtorcivia/stifle-sub001/internal/model"
)

// SyncService defines the sync and log-query operations the API exposes.
type SyncService interface {
	ProcessRound(ctx context.Context, userID uuid.UUID, req model.SyncRequest) (model.SyncResponse, error)
	Status(ctx context.Context, userID uuid.UUID) (model.StatusInfo, error)
	EventsInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]model.Event, error)
}

// ScoreService defines the weekly score operations the API exposes.
type ScoreService interface {
	RecomputeWeek(ctx context.Context, userID uuid.UUID, t time.Time) (model.WeeklyScore, error)
	WeekScore(ctx context.Context, userID uuid.UUID, t time.Time) (model.WeeklyScore, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}
