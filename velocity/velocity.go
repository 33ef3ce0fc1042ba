// Package velocity estimates how fast a position is growing and projects
// when it will reach a threshold.
package velocity

import (
	"fmt"
	"math"
	"time"
)

const (
	DefaultWindow = time.Hour
	DefaultAlpha  = 0.3

	minSpan = time.Minute
)

type fill struct {
	at     time.Time
	shares float64
}

// Tracker is a streaming buying-rate estimator in shares per hour. Each
// observed fill joins a rolling window; the raw rate over the window is then
// smoothed exponentially so a single large print does not swing the
// estimate. A Tracker is owned by one goroutine and is not safe for
// concurrent use.
type Tracker struct {
	window time.Duration
	alpha  float64

	fills  []fill
	value  float64
	seeded bool
}

// NewTracker creates a tracker. Non-positive window or an alpha outside
// (0,1] fall back to the defaults.
func NewTracker(window time.Duration, alpha float64) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &Tracker{window: window, alpha: alpha}
}

func (t *Tracker) Name() string {
	return fmt.Sprintf("Velocity(%s, %.2f)", t.window, t.alpha)
}

// Reset discards all history. The next Observe seeds a fresh estimate.
func (t *Tracker) Reset() {
	t.fills = t.fills[:0]
	t.value = 0
	t.seeded = false
}

// Ready reports whether at least one fill has been observed.
func (t *Tracker) Ready() bool {
	return t.seeded
}

// Observe adds a signed fill and returns the updated smoothed velocity.
func (t *Tracker) Observe(at time.Time, shares float64) float64 {
	t.fills = append(t.fills, fill{at: at, shares: shares})
	t.evict(at)

	raw := t.raw(at)
	if !t.seeded {
		t.value = raw
		t.seeded = true
	} else {
		t.value = t.alpha*raw + (1-t.alpha)*t.value
	}
	return t.value
}

// Decay ages the window to now without a new fill. Fills that fell out of
// the window are dropped and the estimate is blended toward the rate of
// what remains; an empty window reads zero and the next Observe seeds a
// fresh estimate. Calling it again at the same instant changes nothing.
func (t *Tracker) Decay(now time.Time) float64 {
	before := len(t.fills)
	t.evict(now)
	switch {
	case len(t.fills) == 0:
		t.value = 0
		t.seeded = false
	case len(t.fills) < before:
		t.value = t.alpha*t.raw(now) + (1-t.alpha)*t.value
	}
	return t.value
}

// Value is the current smoothed velocity in shares per hour.
func (t *Tracker) Value() float64 {
	return t.value
}

func (t *Tracker) evict(now time.Time) {
	cutoff := now.Add(-t.window)
	i := 0
	for i < len(t.fills) && t.fills[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		t.fills = append(t.fills[:0], t.fills[i:]...)
	}
}

func (t *Tracker) raw(now time.Time) float64 {
	if len(t.fills) == 0 {
		return 0
	}
	sum := 0.0
	for _, f := range t.fills {
		sum += f.shares
	}
	span := now.Sub(t.fills[0].at)
	if span < minSpan {
		span = minSpan
	}
	if span > t.window {
		span = t.window
	}
	return sum / span.Hours()
}

// Project returns the hours until current reaches threshold at the given
// velocity. ok is false when the position is not moving toward the
// threshold or the result would not be a finite number.
func Project(current, threshold, velocity float64) (hours float64, ok bool) {
	if velocity <= 0 || math.IsNaN(velocity) {
		return 0, false
	}
	h := (threshold - current) / velocity
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return 0, false
	}
	if h < 0 {
		h = 0
	}
	return h, true
}
