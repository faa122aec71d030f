package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/davidtorcivia/stifle-sub001/internal/logger"
	"github.com/davidtorcivia/stifle-sub001/internal/model"
)

// Score handles the weekly score endpoints.
type Score struct {
	scoreService   ScoreService
	contextManager model.ContextManager
	loc            *time.Location
	logger         *logger.Logger
}

// NewScore creates a new Score handler. loc is the zone week boundaries are
// computed in; week parameters are interpreted there so a requested date
// lands in the same week the scoring service resolves.
func NewScore(scoreService ScoreService, contextManager model.ContextManager, loc *time.Location, logger *logger.Logger) *Score {
	return &Score{
		scoreService:   scoreService,
		contextManager: contextManager,
		loc:            loc,
		logger:         logger,
	}
}

type scoreResponse struct {
	UserID               uuid.UUID `json:"userId"`
	WeekStart            string    `json:"weekStart"`
	TotalPoints          float64   `json:"totalPoints"`
	StreakCount          int       `json:"streakCount"`
	LongestStreakSeconds int64     `json:"longestStreakSeconds"`
	CalculatedAt         time.Time `json:"calculatedAt"`
}

func toScoreResponse(score model.WeeklyScore) scoreResponse {
	return scoreResponse{
		UserID:               score.UserID,
		WeekStart:            score.WeekStart.Format("2006-01-02"),
		TotalPoints:          score.TotalPoints,
		StreakCount:          score.StreakCount,
		LongestStreakSeconds: score.LongestStreakSeconds,
		CalculatedAt:         score.CalculatedAt,
	}
}

// weekParam parses the optional week query parameter; any instant inside the
// wanted week works, the service normalizes to the Monday boundary. The date
// is read in the scoring zone, not UTC: midnight UTC of a Monday can still be
// Sunday in a zone behind UTC, which would resolve to the week before.
// Defaults to the current week.
func (h *Score) weekParam(r *http.Request) (time.Time, bool) {
	s := r.URL.Query().Get("week")
	if s == "" {
		return time.Now().In(h.loc), true
	}
	t, err := time.ParseInLocation("2006-01-02", s, h.loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Get returns the stored weekly score for the caller.
func (h *Score) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.contextManager.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing user id"})
		return
	}

	week, ok := h.weekParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid 'week' parameter, want YYYY-MM-DD"})
		return
	}

	score, err := h.scoreService.WeekScore(r.Context(), userID, week)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toScoreResponse(score))
}

// Recompute rebuilds the weekly score from the canonical log and returns the
// stored result. Recomputation is idempotent; callers may invoke it freely.
func (h *Score) Recompute(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.contextManager.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing user id"})
		return
	}

	week, ok := h.weekParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid 'week' parameter, want YYYY-MM-DD"})
		return
	}

	score, err := h.scoreService.RecomputeWeek(r.Context(), userID, week)
	if err != nil {
		h.logger.Error("score recompute failed", "user_id", userID, "error", err.Error())
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toScoreResponse(score))
}
