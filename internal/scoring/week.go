package scoring

import (
	"time"

	"github.com/davidtorcivia/stifle-sub001/internal/model"
)

// WeekStart returns Monday 00:00 of the week containing t in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	daysSinceMonday := (int(lt.Weekday()) + 6) % 7
	midnight := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	return midnight.AddDate(0, 0, -daysSinceMonday)
}

// WeekEnd returns the exclusive end of the week starting at weekStart.
// AddDate keeps the boundary on midnight across DST shifts.
func WeekEnd(weekStart time.Time) time.Time {
	return weekStart.AddDate(0, 0, 7)
}

// Streak is one continuous lock-to-unlock interval.
type Streak struct {
	Start time.Time
	End   time.Time
}

// Duration returns the streak length.
func (s Streak) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// PairStreaks walks events in timestamp order and pairs each unlock with the
// most recent unmatched lock. A later lock replaces an earlier unmatched one;
// an unlock with no open lock is dropped. Each lock is consumed by at most one
// unlock, so consecutive unlocks after a single lock yield a single streak.
//
// seed carries the latest event preceding the walked range; when it is a lock
// it opens a streak that started before the range and counts for the week the
// unlock falls into.
func PairStreaks(seed *model.Event, events []model.Event) []Streak {
	var open *time.Time
	if seed != nil && seed.Type == model.EventTypeLock {
		t := seed.Timestamp
		open = &t
	}

	var streaks []Streak
	for _, e := range events {
		switch e.Type {
		case model.EventTypeLock:
			t := e.Timestamp
			open = &t
		case model.EventTypeUnlock:
			if open != nil && open.Before(e.Timestamp) {
				streaks = append(streaks, Streak{Start: *open, End: e.Timestamp})
				open = nil
			}
		}
	}

	return streaks
}

// Summarize folds a set of streaks into week totals. Sub-threshold streaks
// contribute neither points nor counts.
func Summarize(streaks []Streak) (totalPoints float64, streakCount int, longestSeconds int64) {
	for _, s := range streaks {
		points := StreakPoints(s.Duration())
		if points == 0 {
			continue
		}
		totalPoints += points
		streakCount++
		if secs := int64(s.Duration() / time.Second); secs > longestSeconds {
			longestSeconds = secs
		}
	}
	totalPoints = round2(totalPoints)
	return totalPoints, streakCount, longestSeconds
}
