// Package scoring converts lock-to-unlock streaks into points.
//
// The curve is super-linear on purpose: one long streak always outscores
// several shorter streaks adding up to the same duration, so splitting a
// streak never pays.
package scoring

import (
	"math"
	"time"
)

const (
	// minScoredMinutes is the threshold below which a streak scores zero.
	minScoredMinutes = 10
	// rampEndMinutes closes the 0.5x-to-1.0x multiplier ramp.
	rampEndMinutes = 60
	// bonusStartMinutes opens the logarithmic tail.
	bonusStartMinutes = 240
	// bonusBase is the fixed score at the start of the logarithmic tail.
	bonusBase = 360
	// bonusFactor scales the logarithmic tail.
	bonusFactor = 15
)

// StreakPoints maps a streak duration to points.
//
// Under 10 minutes scores zero. From 10 to 60 minutes the multiplier ramps
// linearly from 0.5x to 1.0x of the minute count; from 60 to 240 minutes it
// ramps on to 1.5x. Past 240 minutes the score is a flat 360 plus a
// logarithmically diminishing bonus for the excess. Results are rounded to
// two decimal places.
func StreakPoints(d time.Duration) float64 {
	minutes := d.Minutes()
	switch {
	case minutes < minScoredMinutes:
		return 0
	case minutes <= rampEndMinutes:
		multiplier := 0.5 + (minutes/rampEndMinutes)*0.5
		return round2(minutes * multiplier)
	case minutes <= bonusStartMinutes:
		multiplier := 1.0 + ((minutes-rampEndMinutes)/(bonusStartMinutes-rampEndMinutes))*0.5
		return round2(minutes * multiplier)
	default:
		return round2(bonusBase + math.Log(minutes-bonusStartMinutes+1)*bonusFactor)
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
