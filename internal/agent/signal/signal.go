// Package signal defines the raw device notifications the agent consumes.
// The OS delivers them with no ordering guarantee across kinds, and
// duplicates are expected when several listeners are registered.
package signal

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"
)

// Kind identifies a raw device signal.
type Kind string

const (
	// KindUserPresent fires when the device becomes interactively unlocked.
	KindUserPresent Kind = "user-present"
	// KindScreenOff fires when the screen turns off.
	KindScreenOff Kind = "screen-off"
	// KindScreenOn fires when the screen wakes. Advisory only: glancing at
	// the lock screen wakes the display without unlocking.
	KindScreenOn Kind = "screen-on"
)

// Signal is one raw device notification.
type Signal struct {
	Kind Kind
	At   time.Time
}

// Source delivers device signals until ctx is done or the underlying feed
// closes.
type Source interface {
	Signals(ctx context.Context) (<-chan Signal, error)
}

// LineSource reads newline-delimited signal kind names from a reader. The
// platform hook that observes lock-screen broadcasts pipes into it.
type LineSource struct {
	reader io.Reader
	now    func() time.Time
}

// NewLineSource creates a LineSource reading from r.
func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{reader: r, now: time.Now}
}

// Signals parses one signal per line; unknown lines are dropped. The channel
// closes when the reader is exhausted or ctx is done.
func (s *LineSource) Signals(ctx context.Context) (<-chan Signal, error) {
	out := make(chan Signal)

	go func() {
		defer close(out)
		scanner := bufio.NewScanner(s.reader)
		for scanner.Scan() {
			kind := Kind(strings.TrimSpace(scanner.Text()))
			switch kind {
			case KindUserPresent, KindScreenOff, KindScreenOn:
			default:
				continue
			}
			select {
			case out <- Signal{Kind: kind, At: s.now()}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
