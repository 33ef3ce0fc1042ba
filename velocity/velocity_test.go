package velocity

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC)

func TestTrackerSeedsWithFirstRate(t *testing.T) {
	t.Parallel()

	tr := NewTracker(0, 0)
	assert.False(t, tr.Ready())

	// a single fill is spread over the one-minute floor
	v := tr.Observe(t0, 1000)
	assert.True(t, tr.Ready())
	assert.InDelta(t, 60_000, v, 1e-9)
	assert.Equal(t, v, tr.Value())
}

func TestTrackerSmoothing(t *testing.T) {
	t.Parallel()

	tr := NewTracker(time.Hour, 0.5)
	tr.Observe(t0, 1000) // raw 60000
	v := tr.Observe(t0.Add(30*time.Minute), 1000)
	// raw = 2000 / 0.5h = 4000; 0.5*4000 + 0.5*60000
	assert.InDelta(t, 32_000, v, 1e-9)
}

func TestTrackerWindowEviction(t *testing.T) {
	t.Parallel()

	tr := NewTracker(time.Hour, 1)
	tr.Observe(t0, 5000)
	v := tr.Observe(t0.Add(2*time.Hour), 600)
	// the first fill left the window; raw is 600 over the one-minute floor
	assert.InDelta(t, 36_000, v, 1e-9)

	v = tr.Observe(t0.Add(2*time.Hour+30*time.Minute), 600)
	assert.InDelta(t, 2400, v, 1e-9)
}

func TestTrackerSellsTurnVelocityNegative(t *testing.T) {
	t.Parallel()

	tr := NewTracker(time.Hour, 1)
	tr.Observe(t0, 100)
	v := tr.Observe(t0.Add(10*time.Minute), -700)
	assert.Less(t, v, 0.0)
}

func TestTrackerReset(t *testing.T) {
	t.Parallel()

	tr := NewTracker(time.Hour, 0.3)
	tr.Observe(t0, 100)
	tr.Observe(t0.Add(time.Minute), 100)
	tr.Reset()
	assert.False(t, tr.Ready())
	assert.Zero(t, tr.Value())

	v := tr.Observe(t0.Add(2*time.Minute), 10)
	assert.InDelta(t, 600, v, 1e-9)
}

func TestTrackerDecay(t *testing.T) {
	t.Parallel()

	tr := NewTracker(time.Hour, 0.5)
	tr.Observe(t0, 1000)
	v := tr.Observe(t0.Add(30*time.Minute), 1000)
	require.InDelta(t, 32_000, v, 1e-9)

	// nothing left the window yet
	assert.InDelta(t, 32_000, tr.Decay(t0.Add(30*time.Minute)), 1e-9)
	assert.InDelta(t, 32_000, tr.Decay(t0.Add(30*time.Minute)), 1e-9)

	// the first fill ages out; 1000 shares remain over a 31 minute span
	raw := 1000 / (31.0 / 60)
	want := 0.5*raw + 0.5*32_000
	assert.InDelta(t, want, tr.Decay(t0.Add(61*time.Minute)), 1e-6)
	assert.InDelta(t, want, tr.Decay(t0.Add(61*time.Minute)), 1e-6)

	// an idle window reads zero
	assert.Zero(t, tr.Decay(t0.Add(3*time.Hour)))
	assert.Zero(t, tr.Value())
	assert.False(t, tr.Ready())

	// the next fill seeds afresh
	assert.InDelta(t, 60_000, tr.Observe(t0.Add(3*time.Hour), 1000), 1e-9)
}

func TestProject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		current   float64
		threshold float64
		velocity  float64
		want      float64
		ok        bool
	}{
		{"approaching", 4_500_000, 5_000_000, 100_000, 5, true},
		{"already past", 5_100_000, 5_000_000, 100_000, 0, true},
		{"flat", 4_500_000, 5_000_000, 0, 0, false},
		{"shrinking", 4_500_000, 5_000_000, -10, 0, false},
		{"nan velocity", 4_500_000, 5_000_000, math.NaN(), 0, false},
		{"tiny velocity", -math.MaxFloat64, math.MaxFloat64, math.SmallestNonzeroFloat64, 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, ok := Project(tt.current, tt.threshold, tt.velocity)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, h, 1e-9)
		})
	}
}

func TestProjectMonotonic(t *testing.T) {
	t.Parallel()

	const threshold, v = 5_000_000.0, 50_000.0
	prev := math.Inf(1)
	for shares := 4_500_000.0; shares < threshold; shares += 50_000 {
		h, ok := Project(shares, threshold, v)
		require.True(t, ok)
		assert.Less(t, h, prev)
		prev = h
	}
	h, ok := Project(threshold, threshold, v)
	require.True(t, ok)
	assert.Zero(t, h)
}
