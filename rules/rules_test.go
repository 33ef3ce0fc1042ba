package rules

import (
	"bytes"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/stakewatch/market"
	"github.com/rustyeddy/stakewatch/risk"
)

func day(s string) time.Time {
	d, err := time.Parse(dateKey, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestClassificationAcrossDefaultTable(t *testing.T) {
	t.Parallel()

	e := NewEvaluator(DefaultTable())
	for _, j := range e.Table().Jurisdictions() {
		rule, _ := e.Table().Rule(j)
		for _, pt := range []market.PositionType{market.Long, market.Short} {
			band := rule.Band(pt)
			th := band.ThresholdPercent
			floor := band.WarningFloor()
			require.InDelta(t, 0.9*th, floor, 1e-12, j)

			cases := []struct {
				p    float64
				want risk.Status
			}{
				{0, risk.Safe},
				{floor / 2, risk.Safe},
				{floor - 1e-9, risk.Safe},
				{floor, risk.Warning},
				{(floor + th) / 2, risk.Warning},
				{th - 1e-9, risk.Warning},
				{th, risk.Breach},
				{th + 1e-9, risk.Breach},
				{100, risk.Breach},
			}
			for _, c := range cases {
				ev := e.Evaluate(strings.ToLower(j), c.p, pt, false)
				assert.Equal(t, c.want, ev.Status, "%s %s p=%v", j, pt, c.p)
				assert.True(t, ev.Supported)
				assert.Equal(t, band.Form, ev.RequiredForm)
				require.NotNil(t, ev.DeadlineDays)
				assert.Equal(t, band.DeadlineDays, *ev.DeadlineDays)
			}
		}
	}
}

func TestEvaluateWarningExample(t *testing.T) {
	t.Parallel()

	// 4.5M of 100M against the 5% US threshold
	ev := NewEvaluator(nil).Evaluate("US", 4.5, market.Long, false)
	assert.Equal(t, risk.Warning, ev.Status)
	assert.Equal(t, 5.0, ev.ThresholdPercent)
	assert.Equal(t, 4.5, ev.WarningPercent)
	assert.Equal(t, "Schedule 13D", ev.RequiredForm)
	assert.Equal(t, "SEC-13D", ev.RuleCode)
}

func TestEvaluateShortBand(t *testing.T) {
	t.Parallel()

	e := NewEvaluator(nil)

	long := e.Evaluate("uk", 0.25, market.Long, false)
	assert.Equal(t, risk.Safe, long.Status)
	assert.Equal(t, 3.0, long.ThresholdPercent)

	sh := e.Evaluate("uk", 0.25, market.Short, false)
	assert.Equal(t, risk.Breach, sh.Status)
	assert.Equal(t, 0.2, sh.ThresholdPercent)
	assert.Equal(t, "Net Short Position Notification", sh.RequiredForm)

	// no short band: long threshold applies
	us := e.Evaluate("US", 4.6, market.Short, false)
	assert.Equal(t, risk.Warning, us.Status)
	assert.Equal(t, 5.0, us.ThresholdPercent)
}

func TestEvaluateUnsupportedJurisdiction(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	var calls atomic.Int32
	e := NewEvaluator(DefaultTable(),
		WithLogger(zerolog.New(&buf)),
		WithUnsupportedHook(func(string) { calls.Add(1) }),
	)

	for i := 0; i < 3; i++ {
		ev := e.Evaluate("zz", 99, market.Long, true)
		assert.Equal(t, risk.Safe, ev.Status)
		assert.Equal(t, NotApplicable, ev.RequiredForm)
		assert.Nil(t, ev.DeadlineDays)
		assert.False(t, ev.Supported)
		assert.True(t, ev.DataQualityWarning)
		assert.Equal(t, "ZZ", ev.Jurisdiction)
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1, strings.Count(buf.String(), "No disclosure rule"))
}

func TestDataQualityWarningIsPassThrough(t *testing.T) {
	t.Parallel()

	e := NewEvaluator(nil)
	a := e.Evaluate("US", 6, market.Long, false)
	b := e.Evaluate("US", 6, market.Long, true)
	assert.Equal(t, a.Status, b.Status)
	assert.False(t, a.DataQualityWarning)
	assert.True(t, b.DataQualityWarning)
}

func TestExplicitWarningFloor(t *testing.T) {
	t.Parallel()

	table := DefaultTable().With([]Rule{{
		Code: "XX-TEST", Jurisdiction: "xx",
		Long: Band{ThresholdPercent: 10, WarningPercent: 5, Form: "X1", DeadlineDays: 3},
	}}, nil)
	e := NewEvaluator(table)
	assert.Equal(t, risk.Safe, e.Evaluate("XX", 4.99, market.Long, false).Status)
	assert.Equal(t, risk.Warning, e.Evaluate("XX", 5, market.Long, false).Status)
	assert.Equal(t, risk.Breach, e.Evaluate("XX", 10, market.Long, false).Status)

	// the default table is untouched
	_, ok := DefaultTable().Rule("XX")
	assert.False(t, ok)
	_, ok = table.Rule("US")
	assert.True(t, ok)
}

func TestClassifyNonFinite(t *testing.T) {
	t.Parallel()

	b := Band{ThresholdPercent: 5}
	assert.Equal(t, risk.Breach, Classify(math.Inf(1), b))
	assert.Equal(t, risk.Safe, Classify(math.Inf(-1), b))
}

func TestBusinessDeadline(t *testing.T) {
	t.Parallel()

	table := DefaultTable()

	tests := []struct {
		name         string
		start        string
		days         int
		jurisdiction string
		want         string
		adjusted     bool
	}{
		// Thu 2025-05-29 is Ascension Day
		{"mid-week holiday", "2025-05-26", 5, "de", "2025-06-03", true},
		{"same week no holiday", "2025-06-02", 3, "DE", "2025-06-05", false},
		{"over a weekend", "2025-06-05", 2, "US", "2025-06-09", false},
		// Fri 2025-07-04
		{"us independence day", "2025-07-01", 3, "US", "2025-07-07", true},
		{"unknown calendar", "2025-07-01", 3, "ZZ", "2025-07-04", false},
		{"zero days on a weekend", "2025-06-07", 0, "US", "2025-06-09", false},
		{"zero days on a holiday", "2025-12-25", 0, "UK", "2025-12-29", true},
		{"zero days on a business day", "2025-06-04", 0, "US", "2025-06-04", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := table.BusinessDeadline(day(tt.start), tt.days, tt.jurisdiction)
			assert.Equal(t, tt.want, d.Date.Format(dateKey))
			assert.Equal(t, tt.adjusted, d.AdjustedForHoliday)
			assert.True(t, table.IsBusinessDay(tt.jurisdiction, d.Date))
		})
	}
}

func TestBusinessDeadlineMidWeekHolidayAddsADay(t *testing.T) {
	t.Parallel()

	// five business days spanning one weekend and one holiday
	start := day("2025-05-26")
	d := DefaultTable().BusinessDeadline(start, 5, "DE")
	assert.Equal(t, start.AddDate(0, 0, 8), d.Date)
	assert.True(t, d.AdjustedForHoliday)
	require.Len(t, d.Holidays, 1)
	assert.Equal(t, "2025-05-29", d.Holidays[0].Format(dateKey))
}

func TestDefaultHolidaysAreWeekdays(t *testing.T) {
	t.Parallel()

	for j, days := range DefaultHolidays() {
		for _, d := range days {
			if j == "EU" || j == "DE" || j == "HK" {
				// fixed-date holidays can land on weekends
				continue
			}
			assert.False(t, isWeekend(d), "%s %s", j, d.Format(dateKey))
		}
	}
}
