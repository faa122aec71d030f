package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidtorcivia/stifle-sub001/internal/model"
	"github.com/davidtorcivia/stifle-sub001/internal/testutil"
)

// memScoreStore is an in-memory ScoreStore with upsert semantics.
type memScoreStore struct {
	mu      sync.Mutex
	scores  map[string]model.WeeklyScore
	upserts int
}

func newMemScoreStore() *memScoreStore {
	return &memScoreStore{scores: map[string]model.WeeklyScore{}}
}

func scoreKey(userID uuid.UUID, weekStart time.Time) string {
	return userID.String() + "/" + weekStart.UTC().Format("2006-01-02")
}

func (s *memScoreStore) Upsert(_ context.Context, score model.WeeklyScore) (model.WeeklyScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[scoreKey(score.UserID, score.WeekStart)] = score
	s.upserts++
	return score, nil
}

func (s *memScoreStore) GetByWeek(_ context.Context, userID uuid.UUID, weekStart time.Time) (model.WeeklyScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.scores[scoreKey(userID, weekStart)]
	if !ok {
		return model.WeeklyScore{}, model.ErrNotFound
	}
	return score, nil
}

func seedEvents(t *testing.T, store *memEventStore, userID uuid.UUID, events []model.Event) {
	t.Helper()
	for _, e := range events {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		e.UserID = userID
		_, _, err := store.InsertIfAbsent(context.Background(), e)
		require.NoError(t, err)
	}
}

func TestScore_RecomputeWeek(t *testing.T) {
	// Monday of the scored week.
	weekStart := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	userID := uuid.New()

	t.Run("single 45 minute streak", func(t *testing.T) {
		events := newMemEventStore()
		scores := newMemScoreStore()
		seedEvents(t, events, userID, []model.Event{
			{Type: model.EventTypeLock, Timestamp: weekStart.Add(10 * time.Hour)},
			{Type: model.EventTypeUnlock, Timestamp: weekStart.Add(10*time.Hour + 45*time.Minute)},
		})

		svc := NewScore(events, scores, time.UTC, testutil.MakeNoopLogger())
		score, err := svc.RecomputeWeek(context.Background(), userID, weekStart)
		require.NoError(t, err)

		assert.InDelta(t, 39.38, score.TotalPoints, 0.001)
		assert.Equal(t, 1, score.StreakCount)
		assert.Equal(t, int64(45*60), score.LongestStreakSeconds)
		assert.True(t, weekStart.Equal(score.WeekStart))
	})

	t.Run("streak crossing the week boundary counts for the unlock week", func(t *testing.T) {
		events := newMemEventStore()
		scores := newMemScoreStore()
		seedEvents(t, events, userID, []model.Event{
			// Locked Sunday 23:00, unlocked Monday 01:00.
			{Type: model.EventTypeLock, Timestamp: weekStart.Add(-time.Hour)},
			{Type: model.EventTypeUnlock, Timestamp: weekStart.Add(time.Hour)},
		})

		svc := NewScore(events, scores, time.UTC, testutil.MakeNoopLogger())
		score, err := svc.RecomputeWeek(context.Background(), userID, weekStart)
		require.NoError(t, err)

		assert.Equal(t, 1, score.StreakCount)
		assert.Equal(t, int64(2*60*60), score.LongestStreakSeconds)

		// The previous week gets nothing for it.
		previous, err := svc.RecomputeWeek(context.Background(), userID, weekStart.AddDate(0, 0, -7))
		require.NoError(t, err)
		assert.Zero(t, previous.StreakCount)
		assert.Zero(t, previous.TotalPoints)
	})

	t.Run("sub-threshold streaks score zero", func(t *testing.T) {
		events := newMemEventStore()
		scores := newMemScoreStore()
		seedEvents(t, events, userID, []model.Event{
			{Type: model.EventTypeLock, Timestamp: weekStart.Add(9 * time.Hour)},
			{Type: model.EventTypeUnlock, Timestamp: weekStart.Add(9*time.Hour + 8*time.Minute)},
		})

		svc := NewScore(events, scores, time.UTC, testutil.MakeNoopLogger())
		score, err := svc.RecomputeWeek(context.Background(), userID, weekStart)
		require.NoError(t, err)

		assert.Zero(t, score.TotalPoints)
		assert.Zero(t, score.StreakCount)
	})

	t.Run("recompute is idempotent", func(t *testing.T) {
		events := newMemEventStore()
		scores := newMemScoreStore()
		seedEvents(t, events, userID, []model.Event{
			{Type: model.EventTypeLock, Timestamp: weekStart.Add(8 * time.Hour)},
			{Type: model.EventTypeUnlock, Timestamp: weekStart.Add(9 * time.Hour)},
			{Type: model.EventTypeLock, Timestamp: weekStart.Add(26 * time.Hour)},
			{Type: model.EventTypeUnlock, Timestamp: weekStart.Add(34 * time.Hour)},
		})

		svc := NewScore(events, scores, time.UTC, testutil.MakeNoopLogger())
		fixed := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return fixed }

		first, err := svc.RecomputeWeek(context.Background(), userID, weekStart)
		require.NoError(t, err)
		second, err := svc.RecomputeWeek(context.Background(), userID, weekStart)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 2, scores.upserts)

		stored, err := svc.WeekScore(context.Background(), userID, weekStart)
		require.NoError(t, err)
		assert.Equal(t, first, stored)
	})

	t.Run("week start is normalized from any instant in the week", func(t *testing.T) {
		events := newMemEventStore()
		scores := newMemScoreStore()
		seedEvents(t, events, userID, []model.Event{
			{Type: model.EventTypeLock, Timestamp: weekStart.Add(50 * time.Hour)},
			{Type: model.EventTypeUnlock, Timestamp: weekStart.Add(51 * time.Hour)},
		})

		svc := NewScore(events, scores, time.UTC, testutil.MakeNoopLogger())
		score, err := svc.RecomputeWeek(context.Background(), userID, weekStart.Add(3*24*time.Hour+5*time.Hour))
		require.NoError(t, err)
		assert.True(t, weekStart.Equal(score.WeekStart))
		assert.Equal(t, 1, score.StreakCount)
	})
}

func TestScore_WeekScore_NotFound(t *testing.T) {
	svc := NewScore(newMemEventStore(), newMemScoreStore(), time.UTC, testutil.MakeNoopLogger())

	_, err := svc.WeekScore(context.Background(), uuid.New(), time.Now())
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestScore_ConcurrentRecomputesAreSafe(t *testing.T) {
	weekStart := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	userID := uuid.New()

	events := newMemEventStore()
	scores := newMemScoreStore()
	seedEvents(t, events, userID, []model.Event{
		{Type: model.EventTypeLock, Timestamp: weekStart.Add(8 * time.Hour)},
		{Type: model.EventTypeUnlock, Timestamp: weekStart.Add(9 * time.Hour)},
	})

	svc := NewScore(events, scores, time.UTC, testutil.MakeNoopLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecomputeWeek(context.Background(), userID, weekStart)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := svc.WeekScore(context.Background(), userID, weekStart)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.StreakCount)
	assert.InDelta(t, 60.0, stored.TotalPoints, 0.001)
}
