package monitor

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/stakewatch/journal"
	"github.com/rustyeddy/stakewatch/market"
	"github.com/rustyeddy/stakewatch/pkg/id"
	"github.com/rustyeddy/stakewatch/risk"
	"github.com/rustyeddy/stakewatch/velocity"
)

type taskKind int

const (
	taskEvent taskKind = iota
	taskSweep
	taskResetVelocity
	taskAlert
	taskSeed
)

type alertReply struct {
	alert risk.Alert
	err   error
}

type task struct {
	kind  taskKind
	item  item
	hold  market.Holding
	sec   string
	op    func(a *risk.Alert, at time.Time) (risk.WorkflowAction, error)
	reply chan alertReply
}

// secState is the per-security state a partition owns.
type secState struct {
	id       string
	last     risk.Status
	breachAt *time.Time
	alert    *risk.Alert
}

type orderKey struct {
	owner string
	order string
}

type partition struct {
	idx int
	m   *Monitor
	in  chan task

	wake    chan struct{}
	dirtyMu sync.Mutex
	dirty   map[string]struct{}

	states   map[string]*secState
	trackers map[market.HoldingKey]*velocity.Tracker
	cum      map[orderKey]int64
}

func newPartition(idx int, m *Monitor) *partition {
	return &partition{
		idx:      idx,
		m:        m,
		in:       make(chan task, 64),
		wake:     make(chan struct{}, 1),
		dirty:    make(map[string]struct{}),
		states:   make(map[string]*secState),
		trackers: make(map[market.HoldingKey]*velocity.Tracker),
		cum:      make(map[orderKey]int64),
	}
}

// markDirty queues a re-evaluation and reports whether the security was not
// already queued. It never blocks.
func (p *partition) markDirty(securityID string) bool {
	p.dirtyMu.Lock()
	_, queued := p.dirty[securityID]
	if !queued {
		p.dirty[securityID] = struct{}{}
	}
	p.dirtyMu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return !queued
}

func (p *partition) run() {
	p.drainDirty()
	for {
		select {
		case t, ok := <-p.in:
			if !ok {
				p.drainDirty()
				return
			}
			p.handle(t)
		case <-p.wake:
			p.drainDirty()
		}
	}
}

func (p *partition) handle(t task) {
	switch t.kind {
	case taskEvent:
		p.apply(t.item)
	case taskSeed:
		p.seed(t.hold)
	case taskSweep:
		p.decay()
		for sid := range p.states {
			p.evaluate(sid)
		}
		p.m.metrics.SetTracked(int(p.m.tracked.Load()))
	case taskResetVelocity:
		p.resetVelocity()
	case taskAlert:
		t.reply <- p.alertOp(t.sec, t.op)
		return
	}
	p.m.addPending(-1)
}

func (p *partition) seed(h market.Holding) {
	p.m.book.put(h)
	p.evaluate(h.SecurityID)
	p.m.propagate(h.SecurityID)
}

// decay ages every rate tracker to the current time so a position that
// stopped trading stops projecting. Baskets whose rate moved mark their
// constituents for re-evaluation.
func (p *partition) decay() {
	now := p.m.now()
	for k, tr := range p.trackers {
		v := tr.Decay(now)
		h, ok := p.m.holding(k)
		if !ok || h.BuyingVelocity == v {
			continue
		}
		h.BuyingVelocity = v
		p.m.book.put(h)
		p.m.propagate(k.SecurityID)
	}
}

// resetVelocity drops rate history gathered before a feed outage so stale
// rates are not projected forward.
func (p *partition) resetVelocity() {
	touched := make(map[string]struct{})
	for k, tr := range p.trackers {
		tr.Reset()
		if h, ok := p.m.holding(k); ok && h.BuyingVelocity != 0 {
			h.BuyingVelocity = 0
			p.m.book.put(h)
			touched[k.SecurityID] = struct{}{}
		}
	}
	for sid := range touched {
		p.evaluate(sid)
	}
}

func (p *partition) drainDirty() {
	p.dirtyMu.Lock()
	if len(p.dirty) == 0 {
		p.dirtyMu.Unlock()
		return
	}
	batch := p.dirty
	p.dirty = make(map[string]struct{})
	p.dirtyMu.Unlock()

	for sid := range batch {
		p.evaluate(sid)
		p.m.addPending(-1)
	}
}

func (p *partition) state(sid string) *secState {
	st, ok := p.states[sid]
	if !ok {
		st = &secState{id: sid, last: risk.Safe}
		p.states[sid] = st
		p.m.tracked.Add(1)
	}
	return st
}

func (p *partition) tracker(k market.HoldingKey) *velocity.Tracker {
	tr, ok := p.trackers[k]
	if !ok {
		tr = velocity.NewTracker(p.m.cfg.VelocityWindow, p.m.cfg.VelocityAlpha)
		p.trackers[k] = tr
	}
	return tr
}

// fillSize is the traded quantity of a fill: LastQty when present, else the
// growth of the order's cumulative quantity.
func (p *partition) fillSize(owner string, ev market.ExecutionEvent) int64 {
	order := ev.OrderID
	if order == "" {
		order = ev.ClientOrderID
	}
	k := orderKey{owner: owner, order: order}
	prev := p.cum[k]

	size := ev.LastQty
	if size <= 0 {
		size = ev.CumulativeQuantity - prev
	}
	if ev.CumulativeQuantity > prev {
		p.cum[k] = ev.CumulativeQuantity
	}
	if ev.OrdStatus == "2" || (ev.OrdStatus == "" && ev.ExecutionType == market.ExecTypeFill) {
		delete(p.cum, k)
	}
	return size
}

func (p *partition) apply(it item) {
	m := p.m
	ev := it.ev
	sid := ev.SecurityID()
	log := m.log.With().Str("security", sid).Str("order_id", ev.OrderID).Logger()

	if sid == "" {
		log.Debug().Msg("Execution report without symbol, skipping")
		return
	}
	if !ev.IsFill() || ev.Side.Sign() == 0 {
		log.Debug().Str("exec_type", ev.ExecutionType).Str("side", ev.Side.String()).Msg("Not a position-moving fill")
		return
	}

	owner := market.NormalizeID(ev.Account)
	if owner == "" {
		owner = market.NormalizeID(m.cfg.DefaultOwner)
	}
	size := p.fillSize(owner, ev)
	if size <= 0 {
		log.Debug().Int64("cum_qty", ev.CumulativeQuantity).Msg("Fill carries no new quantity")
		return
	}
	signed := size * ev.Side.Sign()

	key := market.HoldingKey{Owner: owner, SecurityID: sid}
	h, ok := m.holding(key)
	if !ok {
		h = m.newHolding(key)
	}
	at := ev.TransactTime
	if at.IsZero() {
		at = it.received
	}
	h.SharesOwned = h.SharesOwned.Add(decimal.NewFromInt(signed))
	h.BuyingVelocity = p.tracker(key).Observe(at, float64(signed))
	h.LastUpdated = it.received
	m.book.put(h)

	price := ev.LastPx
	if price.IsZero() {
		price = ev.Price
	}
	rec := journal.ExecutionRecord{
		ID:               id.At(it.received),
		Owner:            owner,
		SecurityID:       sid,
		Side:             ev.Side,
		Shares:           size,
		Price:            price,
		ExecType:         ev.ExecutionType,
		OrderID:          ev.OrderID,
		ExecID:           ev.ExecID,
		Position:         h.SharesOwned,
		ChecksumMismatch: it.checksumMismatch,
		TransactTime:     at,
		ReceivedAt:       it.received,
	}
	if err := m.journal.RecordExecution(rec); err != nil {
		m.metrics.SinkError("journal")
		log.Error().Err(err).Msg("Recording execution failed")
	}

	log.Debug().
		Str("owner", owner).
		Int64("shares", signed).
		Str("position", h.SharesOwned.String()).
		Float64("velocity", h.BuyingVelocity).
		Msg("Applied fill")

	p.evaluate(sid)
	m.propagate(sid)
}

// evaluate recomputes one security and emits a transition if its status
// changed since the last evaluation.
func (p *partition) evaluate(sid string) {
	m := p.m
	start := time.Now()
	defer func() { m.metrics.ObserveEvaluation(time.Since(start)) }()

	st := p.state(sid)
	now := m.now()
	a, breachAt := m.assess(sid, st.last, st.breachAt, now)
	st.breachAt = breachAt
	m.views.Store(sid, a)

	from := st.last
	tr, changed := risk.NewTransition(id.At(now), from, a, now)
	if !changed {
		return
	}
	st.last = a.Status

	m.metrics.Transition(string(tr.Type))
	m.log.Info().
		Str("security", sid).
		Str("jurisdiction", a.Jurisdiction).
		Str("type", string(tr.Type)).
		Str("from", from.String()).
		Str("to", a.Status.String()).
		Float64("ownership_percent", a.OwnershipPercent).
		Float64("threshold_percent", a.ThresholdPercent).
		Msg("Status transition")

	if err := m.journal.RecordTransition(tr); err != nil {
		m.metrics.SinkError("journal")
		m.log.Error().Err(err).Str("transition", tr.ID).Msg("Recording transition failed")
	}
	m.publish(tr)

	if a.Status == risk.Warning || a.Status == risk.Breach {
		alert, act := risk.OpenAlert(tr)
		st.alert = &alert
		m.alerts.Store(sid, alert)
		m.recordAction(act)
	}
}

func (p *partition) alertOp(sid string, op func(*risk.Alert, time.Time) (risk.WorkflowAction, error)) alertReply {
	st, ok := p.states[sid]
	if !ok || st.alert == nil {
		return alertReply{err: risk.ErrNoAlert}
	}

	act, err := op(st.alert, p.m.now())
	if err != nil {
		return alertReply{alert: *st.alert, err: err}
	}
	p.m.alerts.Store(sid, *st.alert)
	p.m.recordAction(act)
	return alertReply{alert: *st.alert}
}

func (m *Monitor) recordAction(act risk.WorkflowAction) {
	act.ID = id.At(act.Timestamp)
	m.metrics.WorkflowAction(string(act.Action))
	if err := m.journal.RecordWorkflow(act); err != nil {
		m.metrics.SinkError("journal")
		m.log.Error().Err(err).Str("security", act.SecurityID).Msg("Recording workflow action failed")
	}
}

func (m *Monitor) newHolding(k market.HoldingKey) market.Holding {
	h := market.Holding{
		Owner:                  k.Owner,
		SecurityID:             k.SecurityID,
		SharesOwned:            decimal.Zero,
		TotalSharesOutstanding: decimal.Zero,
	}
	if sec, ok := m.securities.Lookup(k.SecurityID); ok {
		h.Jurisdiction = sec.Jurisdiction
		h.TotalSharesOutstanding = sec.SharesOutstanding
	}
	if r, ok := m.eval.Table().Rule(h.Jurisdiction); ok {
		h.RegulatoryRule = r.Code
	}
	return h
}
