package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davidtorcivia/stifle-sub001/internal/logger"
	"github.com/davidtorcivia/stifle-sub001/internal/model"
	"github.com/davidtorcivia/stifle-sub001/internal/scoring"
)

// Score recomputes and serves weekly scores from the canonical event log.
type Score struct {
	eventStore model.EventStore
	scoreStore model.ScoreStore
	logger     *logger.Logger
	loc        *time.Location
	now        func() time.Time

	mu        sync.Mutex
	weekLocks map[weekKey]*sync.Mutex
}

type weekKey struct {
	userID    uuid.UUID
	weekStart int64
}

func NewScore(eventStore model.EventStore, scoreStore model.ScoreStore, loc *time.Location, logger *logger.Logger) *Score {
	return &Score{
		eventStore: eventStore,
		scoreStore: scoreStore,
		logger:     logger,
		loc:        loc,
		now:        time.Now,
		weekLocks:  map[weekKey]*sync.Mutex{},
	}
}

// RecomputeWeek derives the weekly score for the week containing t and
// upserts it. The result is a pure function of the canonical log: identical
// inputs always overwrite to the identical stored row. Recomputes for the
// same (user, week) are serialized; distinct keys run in parallel.
func (s *Score) RecomputeWeek(ctx context.Context, userID uuid.UUID, t time.Time) (model.WeeklyScore, error) {
	weekStart := scoring.WeekStart(t, s.loc)

	lock := s.weekLock(userID, weekStart)
	lock.Lock()
	defer lock.Unlock()

	var seed *model.Event
	seedEvent, err := s.eventStore.LatestBefore(ctx, userID, weekStart)
	if err == nil {
		seed = &seedEvent
	} else if !errors.Is(err, model.ErrNotFound) {
		return model.WeeklyScore{}, fmt.Errorf("failed to get event before week start: %w", err)
	}

	events, err := s.eventStore.ListRange(ctx, userID, weekStart, scoring.WeekEnd(weekStart))
	if err != nil {
		return model.WeeklyScore{}, fmt.Errorf("failed to list week events: %w", err)
	}

	streaks := scoring.PairStreaks(seed, events)
	totalPoints, streakCount, longestSeconds := scoring.Summarize(streaks)

	score := model.WeeklyScore{
		UserID:               userID,
		WeekStart:            weekStart,
		TotalPoints:          totalPoints,
		StreakCount:          streakCount,
		LongestStreakSeconds: longestSeconds,
		CalculatedAt:         s.now(),
	}

	saved, err := s.scoreStore.Upsert(ctx, score)
	if err != nil {
		return model.WeeklyScore{}, fmt.Errorf("failed to upsert weekly score: %w", err)
	}

	s.logger.Info("weekly score recomputed",
		"user_id", userID,
		"week_start", weekStart.Format("2006-01-02"),
		"total_points", saved.TotalPoints,
		"streak_count", saved.StreakCount)

	return saved, nil
}

// WeekScore returns the stored score for the week containing t.
func (s *Score) WeekScore(ctx context.Context, userID uuid.UUID, t time.Time) (model.WeeklyScore, error) {
	weekStart := scoring.WeekStart(t, s.loc)

	score, err := s.scoreStore.GetByWeek(ctx, userID, weekStart)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.WeeklyScore{}, err
		}
		return model.WeeklyScore{}, fmt.Errorf("failed to get weekly score: %w", err)
	}

	return score, nil
}

func (s *Score) weekLock(userID uuid.UUID, weekStart time.Time) *sync.Mutex {
	key := weekKey{userID: userID, weekStart: weekStart.Unix()}

	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.weekLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.weekLocks[key] = lock
	}
	return lock
}
