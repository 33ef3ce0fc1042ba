package monitor

import (
	"context"
	"sort"
	"time"

	"github.com/rustyeddy/stakewatch/exposure"
	"github.com/rustyeddy/stakewatch/market"
	"github.com/rustyeddy/stakewatch/risk"
	"github.com/rustyeddy/stakewatch/rules"
)

type FeedState string

const (
	FeedConnected    FeedState = "connected"
	FeedReconnecting FeedState = "reconnecting"
	FeedDisconnected FeedState = "disconnected"
)

// FeedStatus describes the upstream connection as last reported by the
// feed adapter.
type FeedStatus struct {
	State     FeedState `json:"state"`
	Connected bool      `json:"connected"`
	Since     time.Time `json:"since"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
}

func (m *Monitor) FeedStatus() FeedStatus {
	m.feedMu.RLock()
	defer m.feedMu.RUnlock()
	return m.feed
}

// SetFeedStatus records the upstream state. Coming back from an outage
// resets every velocity tracker.
func (m *Monitor) SetFeedStatus(s FeedStatus) {
	s.Connected = s.State == FeedConnected
	if s.Since.IsZero() {
		s.Since = m.now()
	}

	m.feedMu.Lock()
	prev := m.feed
	m.feed = s
	m.feedMu.Unlock()

	m.metrics.SetFeedConnected(s.Connected)
	if prev.State == s.State {
		return
	}
	m.log.Info().Str("from", string(prev.State)).Str("to", string(s.State)).Int("attempts", s.Attempts).Msg("Feed status changed")

	if s.Connected && !prev.Connected {
		if err := m.broadcast(context.Background(), taskResetVelocity); err != nil {
			m.log.Warn().Err(err).Msg("Could not reset velocity after reconnect")
		}
	}
}

func (m *Monitor) known(sid string) bool {
	if _, ok := m.securities.Lookup(sid); ok {
		return true
	}
	if _, ok := m.views.Load(sid); ok {
		return true
	}
	if m.agg.IsBasket(sid) {
		return true
	}
	return m.book.has(sid)
}

// RiskStatus returns the latest assessment of a security. Securities in the
// master that have not been evaluated yet are assessed on the spot.
func (m *Monitor) RiskStatus(securityID string) (risk.Assessment, error) {
	sid := market.NormalizeID(securityID)
	now := m.now()
	if v, ok := m.views.Load(sid); ok {
		a := v.(risk.Assessment)
		a.Freshness = m.freshness(a.LastUpdated, now)
		return a, nil
	}
	if !m.known(sid) {
		return risk.Assessment{}, ErrUnknownSecurity
	}
	a, _ := m.assess(sid, risk.Safe, nil, now)
	return a, nil
}

// TrueExposure returns the look-through breakdown of a security over the
// current book.
func (m *Monitor) TrueExposure(securityID string) (exposure.Breakdown, error) {
	sid := market.NormalizeID(securityID)
	if !m.known(sid) {
		return exposure.Breakdown{}, ErrUnknownSecurity
	}
	return m.agg.TrueExposure(sid, m.related(sid)), nil
}

func (m *Monitor) BusinessDeadline(start time.Time, days int, jurisdiction string) rules.Deadline {
	return m.eval.Table().BusinessDeadline(start, days, jurisdiction)
}

// Securities lists every security with an assessment.
func (m *Monitor) Securities() []string {
	var out []string
	m.views.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	sort.Strings(out)
	return out
}

func (m *Monitor) Alert(securityID string) (risk.Alert, error) {
	v, ok := m.alerts.Load(market.NormalizeID(securityID))
	if !ok {
		return risk.Alert{}, risk.ErrNoAlert
	}
	return v.(risk.Alert), nil
}

func (m *Monitor) Acknowledge(ctx context.Context, securityID, actor string) (risk.Alert, error) {
	return m.alertCommand(ctx, securityID, func(a *risk.Alert, at time.Time) (risk.WorkflowAction, error) {
		return a.Acknowledge(actor, at)
	})
}

func (m *Monitor) Dismiss(ctx context.Context, securityID, actor, justification string) (risk.Alert, error) {
	return m.alertCommand(ctx, securityID, func(a *risk.Alert, at time.Time) (risk.WorkflowAction, error) {
		return a.Dismiss(actor, justification, at)
	})
}

func (m *Monitor) Resolve(ctx context.Context, securityID, actor, note string) (risk.Alert, error) {
	return m.alertCommand(ctx, securityID, func(a *risk.Alert, at time.Time) (risk.WorkflowAction, error) {
		return a.Resolve(actor, note, at)
	})
}

// alertCommand runs op on the partition that owns the security so workflow
// changes serialize with the transitions that open alerts.
func (m *Monitor) alertCommand(ctx context.Context, securityID string, op func(*risk.Alert, time.Time) (risk.WorkflowAction, error)) (risk.Alert, error) {
	sid := market.NormalizeID(securityID)

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return risk.Alert{}, ErrClosed
	}
	reply := make(chan alertReply, 1)
	select {
	case m.partitionFor(sid).in <- task{kind: taskAlert, sec: sid, op: op, reply: reply}:
	case <-ctx.Done():
		m.mu.RUnlock()
		return risk.Alert{}, ctx.Err()
	}
	m.mu.RUnlock()

	select {
	case r := <-reply:
		return r.alert, r.err
	case <-ctx.Done():
		return risk.Alert{}, ctx.Err()
	}
}
