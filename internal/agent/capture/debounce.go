package capture

import (
	"sync"
	"time"
)

// debouncer is an expiring last-seen map keyed by signal kind. Redundant OS
// broadcast registrations can deliver the same signal several times within a
// few hundred milliseconds; the debouncer absorbs those regardless of the
// current lock state.
type debouncer struct {
	mu       sync.Mutex
	window   time.Duration
	lastSeen map[string]time.Time
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		window:   window,
		lastSeen: map[string]time.Time{},
	}
}

// Allow reports whether a signal of this kind at instant at should be
// processed, and records it as seen if so. Check and set are one atomic step
// so racing deliveries cannot both pass.
func (d *debouncer) Allow(kind string, at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.lastSeen[kind]; ok && at.Sub(last) < d.window {
		return false
	}
	d.lastSeen[kind] = at
	return true
}
