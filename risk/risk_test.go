package risk

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to Status
		want     EventType
		ok       bool
	}{
		{Safe, Warning, WarningDetected, true},
		{Safe, Breach, BreachDetected, true},
		{Warning, Breach, BreachDetected, true},
		{Breach, Warning, BreachResolved, true},
		{Breach, Safe, BreachResolved, true},
		{Warning, Safe, WarningCleared, true},
		{Safe, Safe, "", false},
		{Warning, Warning, "", false},
		{Breach, Breach, "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			t.Parallel()
			got, ok := DetectTransition(tt.from, tt.to)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewTransitionCopiesAssessment(t *testing.T) {
	t.Parallel()

	hours := 2.5
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	a := Assessment{
		SecurityID:           "ACME",
		Jurisdiction:         "US",
		Status:               Warning,
		OwnershipPercent:     4.6,
		ThresholdPercent:     5,
		BuyingVelocity:       1000,
		ProjectedBreachHours: &hours,
	}

	tr, ok := NewTransition("01J", Safe, a, at)
	require.True(t, ok)
	assert.Equal(t, WarningDetected, tr.Type)
	assert.Equal(t, Safe, tr.From)
	assert.Equal(t, Warning, tr.To)
	assert.Equal(t, "ACME", tr.SecurityID)
	assert.Equal(t, 2.5, *tr.ProjectedBreachHours)
	assert.Equal(t, at, tr.Timestamp)

	_, ok = NewTransition("01K", Warning, a, at)
	assert.False(t, ok)
}

func TestClassifyFreshness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		age       time.Duration
		connected bool
		want      Freshness
	}{
		{"just now", 0, true, Fresh},
		{"59s", 59 * time.Second, true, Fresh},
		{"1m", time.Minute, true, Aging},
		{"14m", 14 * time.Minute, true, Aging},
		{"15m", 15 * time.Minute, true, Stale},
		{"1h", time.Hour, true, Stale},
		{"2h", 2 * time.Hour, true, FeedError},
		{"disconnected fresh", time.Second, false, Stale},
		{"disconnected aging", 5 * time.Minute, false, Stale},
		{"disconnected old", 3 * time.Hour, false, FeedError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ClassifyFreshness(tt.age, tt.connected))
		})
	}
}

func TestStatusText(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{Safe, Warning, Breach} {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var back Status
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, s, back)
	}
	_, err := ParseStatus("panic")
	assert.Error(t, err)
}

func TestAssessmentThresholdShares(t *testing.T) {
	t.Parallel()

	a := Assessment{SharesOutstanding: decimal.NewFromInt(100_000_000), ThresholdPercent: 5}
	assert.True(t, a.ThresholdShares().Equal(decimal.NewFromInt(5_000_000)))
}

func openBreach(t *testing.T) Alert {
	t.Helper()
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	a, act := OpenAlert(Transition{ID: "T1", SecurityID: "ACME", To: Breach, Timestamp: at})
	assert.Equal(t, ActionOpen, act.Action)
	assert.Equal(t, AlertOpen, a.State)
	return a
}

func TestAlertWorkflow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)

	t.Run("acknowledge then resolve", func(t *testing.T) {
		a := openBreach(t)
		act, err := a.Acknowledge("alice", now)
		require.NoError(t, err)
		assert.Equal(t, AlertOpen, act.From)
		assert.Equal(t, AlertAcknowledged, act.To)

		_, err = a.Acknowledge("alice", now)
		assert.True(t, errors.Is(err, ErrInvalidAlertAction))

		act, err = a.Resolve("bob", "filed 13D", now)
		require.NoError(t, err)
		assert.Equal(t, AlertResolved, a.State)
		assert.Equal(t, "filed 13D", act.Justification)

		_, err = a.Dismiss("bob", "late", now)
		assert.True(t, errors.Is(err, ErrInvalidAlertAction))
	})

	t.Run("dismiss requires justification", func(t *testing.T) {
		a := openBreach(t)
		_, err := a.Dismiss("alice", "   ", now)
		assert.True(t, errors.Is(err, ErrJustificationRequired))
		assert.Equal(t, AlertOpen, a.State)
	})

	t.Run("dismissing a breach needs supervisor review", func(t *testing.T) {
		a := openBreach(t)
		act, err := a.Dismiss("alice", "index rebalance, transient", now)
		require.NoError(t, err)
		assert.True(t, act.SupervisorReviewRequired)
		assert.True(t, a.SupervisorReviewRequired)
		assert.Equal(t, AlertDismissed, a.State)
	})

	t.Run("dismissing a warning does not", func(t *testing.T) {
		a, _ := OpenAlert(Transition{ID: "T2", SecurityID: "ACME", To: Warning, Timestamp: now})
		act, err := a.Dismiss("alice", "hedged", now)
		require.NoError(t, err)
		assert.False(t, act.SupervisorReviewRequired)
	})
}
