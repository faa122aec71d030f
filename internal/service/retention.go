package service

import (
	"context"
	"time"

	"github.com/davidtorcivia/stifle-sub001/internal/logger"
	"github.com/davidtorcivia/stifle-sub001/internal/model"
)

// Retention purges canonical events older than the retention window. The
// server and the device agents purge independently; scoring for retained
// weeks is unaffected because past weeks are recomputed before their events
// age out.
type Retention struct {
	eventStore model.EventStore
	logger     *logger.Logger
	window     time.Duration
	interval   time.Duration
	now        func() time.Time
}

func NewRetention(eventStore model.EventStore, days int, interval time.Duration, logger *logger.Logger) *Retention {
	return &Retention{
		eventStore: eventStore,
		logger:     logger,
		window:     time.Duration(days) * 24 * time.Hour,
		interval:   interval,
		now:        time.Now,
	}
}

// Run purges once immediately and then on every tick until ctx is done.
func (r *Retention) Run(ctx context.Context) {
	r.purge(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.purge(ctx)
		}
	}
}

func (r *Retention) purge(ctx context.Context) {
	cutoff := r.now().Add(-r.window)
	deleted, err := r.eventStore.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		r.logger.Error("event purge failed", "error", err)
		return
	}
	if deleted > 0 {
		r.logger.Info("purged expired events", "deleted", deleted, "cutoff", cutoff)
	}
}
