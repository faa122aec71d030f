// Package capture turns raw device signals into durable lock/unlock events.
//
// The deciding factor is the last recorded event, not raw signal counting:
// the event log itself is the state machine, re-read on every signal. That
// makes capture naturally idempotent against duplicate broadcasts and
// "glanced at the lock screen" noise without any reconciliation timer.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davidtorcivia/stifle-sub001/internal/agent/signal"
	"github.com/davidtorcivia/stifle-sub001/internal/logger"
	"github.com/davidtorcivia/stifle-sub001/internal/model"
)

// EventStore is the slice of the local store capture writes through.
type EventStore interface {
	Append(ctx context.Context, event model.Event) error
	Latest(ctx context.Context) (model.Event, error)
}

// Capture decides per signal whether to record a transition.
type Capture struct {
	store    EventStore
	debounce *debouncer
	logger   *logger.Logger
	deviceID string
	onRecord func()
	newID    func() uuid.UUID

	// mu serializes the read-state-then-append step; signal deliveries may
	// race when several broadcast listeners are registered.
	mu sync.Mutex
}

// New creates a Capture writing through store. onRecord fires after every
// successful recording; the agent points it at the sync trigger.
func New(store EventStore, deviceID string, debounceWindow time.Duration, onRecord func(), logger *logger.Logger) *Capture {
	if onRecord == nil {
		onRecord = func() {}
	}
	return &Capture{
		store:    store,
		debounce: newDebouncer(debounceWindow),
		logger:   logger,
		deviceID: deviceID,
		onRecord: onRecord,
		newID:    uuid.New,
	}
}

// Run consumes the source until ctx is done or the source closes. Shutdown
// via ctx is a clean stop, not an error.
func (c *Capture) Run(ctx context.Context, source signal.Source) error {
	signals, err := source.Signals(ctx)
	if err != nil {
		return fmt.Errorf("failed to open signal source: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			if err := c.HandleSignal(ctx, sig); err != nil {
				// Storage faults are the caller's retry concern; the
				// signal itself is gone either way.
				c.logger.Error("failed to handle signal", "kind", sig.Kind, "error", err)
			}
		}
	}
}

// HandleSignal applies the transition rule for one signal.
func (c *Capture) HandleSignal(ctx context.Context, sig signal.Signal) error {
	if !c.debounce.Allow(string(sig.Kind), sig.At) {
		c.logger.Debug("signal debounced", "kind", sig.Kind)
		return nil
	}

	switch sig.Kind {
	case signal.KindUserPresent:
		return c.record(ctx, model.EventTypeUnlock, sig.At)
	case signal.KindScreenOff:
		return c.record(ctx, model.EventTypeLock, sig.At)
	case signal.KindScreenOn:
		// Screen wake is advisory: it never records on its own.
		return nil
	default:
		c.logger.Debug("ignoring unknown signal", "kind", sig.Kind)
		return nil
	}
}

func (c *Capture) record(ctx context.Context, eventType model.EventType, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	latest, err := c.store.Latest(ctx)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("failed to read last event: %w", err)
	}
	if err == nil && latest.Type == eventType {
		c.logger.Debug("duplicate signal for current state", "type", eventType)
		return nil
	}

	event := model.Event{
		ID:        c.newID(),
		DeviceID:  c.deviceID,
		Type:      eventType,
		Timestamp: at,
		Source:    model.SourceAutomatic,
		SyncState: model.SyncStatePending,
	}
	if err := c.store.Append(ctx, event); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	c.logger.Info("recorded transition", "type", eventType, "at", at)
	c.onRecord()

	return nil
}
