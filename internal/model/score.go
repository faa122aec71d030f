package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ScoreStore defines persistence operations for weekly scores.
type ScoreStore interface {
	Upsert(ctx context.Context, score WeeklyScore) (WeeklyScore, error)
	GetByWeek(ctx context.Context, userID uuid.UUID, weekStart time.Time) (WeeklyScore, error)
}

// WeeklyScore represents the scored result of one user-week. There is one row
// per (user, week start); recomputation overwrites it.
type WeeklyScore struct {
	UserID               uuid.UUID
	WeekStart            time.Time
	TotalPoints          float64
	StreakCount          int
	LongestStreakSeconds int64
	CalculatedAt         time.Time
}

// StatusInfo describes a user's live lock state derived from the latest
// canonical event.
type StatusInfo struct {
	Locked               bool
	Since                time.Time
	CurrentStreakSeconds int64
}
