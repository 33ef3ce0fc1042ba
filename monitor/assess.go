package monitor

import (
	"math"
	"time"

	"github.com/rustyeddy/stakewatch/exposure"
	"github.com/rustyeddy/stakewatch/market"
	"github.com/rustyeddy/stakewatch/risk"
	"github.com/rustyeddy/stakewatch/velocity"
)

// related returns the rows that can contribute to sid: its own and those
// of every basket that contains it.
func (m *Monitor) related(sid string) []market.Holding {
	out := m.book.appendRows(nil, sid)
	return m.book.appendRows(out, m.agg.BasketsContaining(sid)...)
}

// assess computes the assessment of sid from the current book. last and
// breachAt come from the partition's state; the returned time is the new
// breach detection time, nil when the security is not in breach.
func (m *Monitor) assess(sid string, last risk.Status, breachAt *time.Time, now time.Time) (risk.Assessment, *time.Time) {
	holdings := m.related(sid)
	b := m.agg.TrueExposure(sid, holdings)

	jurisdiction := ""
	if sec, ok := m.securities.Lookup(sid); ok {
		jurisdiction = sec.Jurisdiction
	}
	var (
		vel         float64
		lastUpdated time.Time
	)
	lookThrough := !m.agg.IsBasket(sid)
	for _, h := range holdings {
		var weight float64
		switch {
		case h.SecurityID == sid:
			weight = 1
			if jurisdiction == "" {
				jurisdiction = h.Jurisdiction
			}
		case lookThrough && m.agg.IsBasket(h.SecurityID):
			w := basketWeight(m.agg.Constituents(h.SecurityID), sid)
			if w == 0 {
				continue
			}
			weight = w
		default:
			continue
		}
		vel += h.BuyingVelocity * weight
		if h.LastUpdated.After(lastUpdated) {
			lastUpdated = h.LastUpdated
		}
	}

	pt := market.PositionTypeOf(b.TotalShares)
	ev := m.eval.Evaluate(jurisdiction, math.Abs(b.TotalPercent), pt, b.DataQualityWarning)

	a := risk.Assessment{
		SecurityID:         sid,
		Jurisdiction:       ev.Jurisdiction,
		Status:             ev.Status,
		OwnershipPercent:   math.Abs(b.TotalPercent),
		DirectPercent:      b.DirectPercent,
		IndirectPercent:    b.IndirectPercent,
		TotalShares:        b.TotalShares,
		SharesOutstanding:  b.SharesOutstanding,
		ThresholdPercent:   ev.ThresholdPercent,
		WarningPercent:     ev.WarningPercent,
		RuleCode:           ev.RuleCode,
		RequiredForm:       ev.RequiredForm,
		DeadlineDays:       ev.DeadlineDays,
		Supported:          ev.Supported,
		BuyingVelocity:     vel,
		PositionType:       pt,
		DataQualityWarning: ev.DataQualityWarning,
		LastUpdated:        lastUpdated,
	}
	a.Freshness = m.freshness(lastUpdated, now)

	// a short grows toward its threshold by selling
	toward := vel
	if pt == market.Short {
		toward = -vel
	}
	if a.Status == risk.Warning && toward > 0 {
		current := b.TotalShares.Abs().InexactFloat64()
		threshold := a.ThresholdShares().InexactFloat64()
		if h, ok := velocity.Project(current, threshold, toward); ok {
			a.ProjectedBreachHours = &h
		}
	}

	if a.Status != risk.Breach {
		return a, nil
	}
	if last != risk.Breach || breachAt == nil {
		t := now
		breachAt = &t
	}
	a.BreachDetectedAt = breachAt
	if a.DeadlineDays != nil {
		d := m.eval.Table().BusinessDeadline(*breachAt, *a.DeadlineDays, a.Jurisdiction)
		a.Deadline = &d.Date
		a.AdjustedForHoliday = d.AdjustedForHoliday
	}
	return a, breachAt
}

func basketWeight(cs []exposure.Constituent, sid string) float64 {
	for _, c := range cs {
		if c.Ticker == sid {
			return c.Weight.InexactFloat64()
		}
	}
	return 0
}

func (m *Monitor) freshness(lastUpdated, now time.Time) risk.Freshness {
	connected := m.FeedStatus().Connected
	if lastUpdated.IsZero() {
		return risk.ClassifyFreshness(0, connected)
	}
	return risk.ClassifyFreshness(now.Sub(lastUpdated), connected)
}
