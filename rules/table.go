// Package rules holds the jurisdiction disclosure rules, holiday calendars
// and the evaluator that classifies an ownership percentage against them.
package rules

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/stakewatch/market"
)

const DefaultWarningRatio = 0.9

// Band is one threshold of a rule.
type Band struct {
	ThresholdPercent float64 `json:"threshold_percent" yaml:"threshold_percent"`
	// WarningPercent is the explicit floor of the warning band. Zero means
	// DefaultWarningRatio of the threshold.
	WarningPercent float64 `json:"warning_percent,omitempty" yaml:"warning_percent,omitempty"`
	Form           string  `json:"form" yaml:"form"`
	DeadlineDays   int     `json:"deadline_days" yaml:"deadline_days"`
}

func (b Band) threshold() decimal.Decimal {
	return decimal.NewFromFloat(b.ThresholdPercent)
}

func (b Band) warningFloor() decimal.Decimal {
	if b.WarningPercent > 0 {
		return decimal.NewFromFloat(b.WarningPercent)
	}
	return b.threshold().Mul(decimal.NewFromFloat(DefaultWarningRatio))
}

// WarningFloor is the lowest percentage classified as Warning.
func (b Band) WarningFloor() float64 {
	return b.warningFloor().InexactFloat64()
}

// Rule is the disclosure regime of one jurisdiction.
type Rule struct {
	Code         string `json:"code" yaml:"code"`
	Name         string `json:"name" yaml:"name"`
	Jurisdiction string `json:"jurisdiction" yaml:"jurisdiction"`
	Long         Band   `json:"long" yaml:"long"`
	Short        *Band  `json:"short,omitempty" yaml:"short,omitempty"`
}

// Band selects the threshold for the position direction. Rules without a
// short band apply the long band to both.
func (r Rule) Band(pt market.PositionType) Band {
	if pt == market.Short && r.Short != nil {
		return *r.Short
	}
	return r.Long
}

// DirectionSensitive reports whether shorts have their own threshold.
func (r Rule) DirectionSensitive() bool {
	return r.Short != nil
}

// Table is the immutable rule and holiday reference data. Build it once and
// share it; nothing mutates a Table after construction.
type Table struct {
	rules    map[string]Rule
	holidays map[string]map[string]struct{}
}

const dateKey = "2006-01-02"

func NewTable(rules []Rule, holidays map[string][]time.Time) *Table {
	t := &Table{
		rules:    make(map[string]Rule, len(rules)),
		holidays: make(map[string]map[string]struct{}, len(holidays)),
	}
	for _, r := range rules {
		r.Jurisdiction = market.NormalizeID(r.Jurisdiction)
		t.rules[r.Jurisdiction] = r
	}
	for j, days := range holidays {
		t.addHolidays(j, days)
	}
	return t
}

func (t *Table) addHolidays(jurisdiction string, days []time.Time) {
	j := market.NormalizeID(jurisdiction)
	set, ok := t.holidays[j]
	if !ok {
		set = make(map[string]struct{}, len(days))
		t.holidays[j] = set
	}
	for _, d := range days {
		set[d.Format(dateKey)] = struct{}{}
	}
}

// With returns a new table with rules replaced by jurisdiction and holidays
// merged in. The receiver is not modified.
func (t *Table) With(rules []Rule, holidays map[string][]time.Time) *Table {
	out := &Table{
		rules:    make(map[string]Rule, len(t.rules)+len(rules)),
		holidays: make(map[string]map[string]struct{}, len(t.holidays)+len(holidays)),
	}
	for j, r := range t.rules {
		out.rules[j] = r
	}
	for j, set := range t.holidays {
		cp := make(map[string]struct{}, len(set))
		for d := range set {
			cp[d] = struct{}{}
		}
		out.holidays[j] = cp
	}
	for _, r := range rules {
		r.Jurisdiction = market.NormalizeID(r.Jurisdiction)
		out.rules[r.Jurisdiction] = r
	}
	for j, days := range holidays {
		out.addHolidays(j, days)
	}
	return out
}

// Rule looks up a jurisdiction case-insensitively.
func (t *Table) Rule(jurisdiction string) (Rule, bool) {
	r, ok := t.rules[market.NormalizeID(jurisdiction)]
	return r, ok
}

func (t *Table) Jurisdictions() []string {
	out := make([]string, 0, len(t.rules))
	for j := range t.rules {
		out = append(out, j)
	}
	sort.Strings(out)
	return out
}

func (t *Table) IsHoliday(jurisdiction string, d time.Time) bool {
	set, ok := t.holidays[market.NormalizeID(jurisdiction)]
	if !ok {
		return false
	}
	_, hit := set[d.Format(dateKey)]
	return hit
}

func isWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (t *Table) IsBusinessDay(jurisdiction string, d time.Time) bool {
	return !isWeekend(d) && !t.IsHoliday(jurisdiction, d)
}

// MaxDeadlineDays bounds the day counts accepted from callers. Real
// disclosure deadlines are days or weeks; ten years is far past any of them.
const MaxDeadlineDays = 3660

// Deadline is a filing due date.
type Deadline struct {
	Date               time.Time   `json:"date"`
	AdjustedForHoliday bool        `json:"adjusted_for_holiday"`
	Holidays           []time.Time `json:"holidays_skipped,omitempty"`
}

// BusinessDeadline counts days business days forward from start, skipping
// weekends and the jurisdiction's holidays. The start date itself is not
// counted. The returned date is always a business day.
func (t *Table) BusinessDeadline(start time.Time, days int, jurisdiction string) Deadline {
	d := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	var out Deadline

	skip := func(day time.Time) bool {
		if isWeekend(day) {
			return true
		}
		if t.IsHoliday(jurisdiction, day) {
			out.AdjustedForHoliday = true
			out.Holidays = append(out.Holidays, day)
			return true
		}
		return false
	}

	for counted := 0; counted < days; {
		d = d.AddDate(0, 0, 1)
		if !skip(d) {
			counted++
		}
	}
	for skip(d) {
		d = d.AddDate(0, 0, 1)
	}
	out.Date = d
	return out
}
