package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/davidtorcivia/stifle-sub001/internal/model"
)

var _ model.ScoreStore = (*ScoreRepository)(nil)

// ScoreRepository stores recomputed weekly scores, one row per (user, week).
type ScoreRepository struct {
	db *Connection
}

func NewScoreRepository(db *Connection) *ScoreRepository {
	return &ScoreRepository{
		db: db,
	}
}

// Upsert overwrites the stored score for (user, week start). Recomputation is
// a pure function of the event log, so overwriting is always safe.
func (r *ScoreRepository) Upsert(ctx context.Context, score model.WeeklyScore) (model.WeeklyScore, error) {
	query := `
		INSERT INTO weekly_scores (user_id, week_start, total_points, streak_count, longest_streak_seconds, calculated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, week_start) DO UPDATE SET
			total_points = EXCLUDED.total_points,
			streak_count = EXCLUDED.streak_count,
			longest_streak_seconds = EXCLUDED.longest_streak_seconds,
			calculated_at = EXCLUDED.calculated_at
		RETURNING user_id, week_start, total_points, streak_count, longest_streak_seconds, calculated_at`

	var saved model.WeeklyScore
	err := r.db.QueryRow(ctx, query,
		score.UserID, score.WeekStart, score.TotalPoints, score.StreakCount,
		score.LongestStreakSeconds, score.CalculatedAt,
	).Scan(
		&saved.UserID, &saved.WeekStart, &saved.TotalPoints, &saved.StreakCount,
		&saved.LongestStreakSeconds, &saved.CalculatedAt,
	)
	if err != nil {
		return model.WeeklyScore{}, err
	}

	return saved, nil
}

// GetByWeek returns the stored score for (user, week start).
func (r *ScoreRepository) GetByWeek(ctx context.Context, userID uuid.UUID, weekStart time.Time) (model.WeeklyScore, error) {
	query := `
		SELECT user_id, week_start, total_points, streak_count, longest_streak_seconds, calculated_at
		FROM weekly_scores
		WHERE user_id = $1 AND week_start = $2`

	var score model.WeeklyScore
	err := r.db.QueryRow(ctx, query, userID, weekStart).Scan(
		&score.UserID, &score.WeekStart, &score.TotalPoints, &score.StreakCount,
		&score.LongestStreakSeconds, &score.CalculatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.WeeklyScore{}, model.ErrNotFound
		}
		return model.WeeklyScore{}, err
	}

	return score, nil
}
