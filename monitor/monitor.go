// Package monitor is the breach-detection pipeline. It consumes execution
// events, keeps live holdings per owner and security, re-evaluates each
// affected security against the disclosure rules and emits a transition
// whenever a security's status changes.
//
// Events pass through a bounded ingress queue to a dispatcher that routes
// them by security to a fixed set of partition workers. Each worker is the
// only writer for its securities. Holdings are published as immutable
// snapshots to a shared book so look-through reads never take a lock.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/stakewatch/exposure"
	"github.com/rustyeddy/stakewatch/fix"
	"github.com/rustyeddy/stakewatch/journal"
	"github.com/rustyeddy/stakewatch/market"
	"github.com/rustyeddy/stakewatch/metrics"
	"github.com/rustyeddy/stakewatch/risk"
	"github.com/rustyeddy/stakewatch/rules"
)

var (
	ErrQueueFull       = errors.New("monitor: ingress queue full")
	ErrClosed          = errors.New("monitor: closed")
	ErrUnknownSecurity = errors.New("monitor: unknown security")
)

// Publisher receives every transition. Publish runs on the partition that
// owns the security and is bounded by Config.PublishTimeout.
type Publisher interface {
	Publish(ctx context.Context, t risk.Transition) error
}

type Option func(*Monitor)

func WithLogger(log zerolog.Logger) Option {
	return func(m *Monitor) { m.log = log.With().Str("component", "monitor").Logger() }
}

func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mx }
}

func WithPublisher(p ...Publisher) Option {
	return func(m *Monitor) { m.publishers = append(m.publishers, p...) }
}

func WithJournal(j journal.Journal) Option {
	return func(m *Monitor) { m.journal = j }
}

func WithParser(p *fix.Parser) Option {
	return func(m *Monitor) { m.parser = p }
}

func WithSecurities(s market.Securities) Option {
	return func(m *Monitor) { m.securities = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

type item struct {
	ev               market.ExecutionEvent
	checksumMismatch bool
	received         time.Time
}

type Monitor struct {
	cfg        Config
	parser     *fix.Parser
	agg        *exposure.Aggregator
	eval       *rules.Evaluator
	securities market.Securities
	log        zerolog.Logger
	metrics    *metrics.Metrics
	publishers []Publisher
	journal    journal.Journal
	now        func() time.Time

	ingress chan item
	parts   []*partition
	book    book
	views   sync.Map // security ID -> risk.Assessment
	alerts  sync.Map // security ID -> risk.Alert
	tracked atomic.Int64
	stopped atomic.Bool

	mu      sync.RWMutex
	seedMu  sync.Mutex // serializes Seed before Start
	closed  bool
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	pendingMu sync.Mutex
	pendingCv *sync.Cond
	pending   int

	feedMu sync.RWMutex
	feed   FeedStatus
}

// New builds a monitor over immutable reference data. Call Start before
// submitting events.
func New(cfg Config, agg *exposure.Aggregator, eval *rules.Evaluator, opts ...Option) *Monitor {
	cfg = cfg.withDefaults()
	if agg == nil {
		agg = exposure.NewAggregator(nil)
	}
	if eval == nil {
		eval = rules.NewEvaluator(nil)
	}

	m := &Monitor{
		cfg:     cfg,
		agg:     agg,
		eval:    eval,
		log:     zerolog.Nop(),
		journal: journal.Discard{},
		now:     time.Now,
		ingress: make(chan item, cfg.QueueSize),
		ctx:     context.Background(),
	}
	m.pendingCv = sync.NewCond(&m.pendingMu)
	for _, opt := range opts {
		opt(m)
	}
	if m.parser == nil {
		m.parser = fix.NewParser(fix.WithLogger(m.log))
	}
	if m.securities == nil {
		m.securities = market.Securities{}
	}
	m.feed = FeedStatus{State: FeedConnected, Connected: true, Since: m.now()}

	m.parts = make([]*partition, cfg.Partitions)
	for i := range m.parts {
		m.parts[i] = newPartition(i, m)
	}
	return m
}

// Start launches the dispatcher and partition workers. Publishers receive a
// context carrying ctx's values that stays live until Close has drained the
// queue, so transitions found during shutdown are still delivered.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.closed {
		return
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))

	for _, p := range m.parts {
		m.wg.Add(1)
		go func(p *partition) {
			defer m.wg.Done()
			p.run()
		}(p)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.dispatch()
	}()

	m.log.Info().
		Int("partitions", len(m.parts)).
		Int("queue_size", m.cfg.QueueSize).
		Str("overflow", string(m.cfg.Overflow)).
		Msg("Monitor started")
}

// Close stops accepting events, drains what is queued, waits for every
// partition to finish and then returns. It is safe to call more than once.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	started := m.started
	close(m.ingress)
	m.mu.Unlock()

	if !started {
		m.stopped.Store(true)
		m.clearPending()
		return nil
	}
	m.wg.Wait()
	m.stopped.Store(true)
	m.clearPending()
	m.cancel()
	m.log.Info().Msg("Monitor stopped")
	return nil
}

func (m *Monitor) dispatch() {
	for it := range m.ingress {
		m.metrics.SetQueueDepth(len(m.ingress))
		m.partitionFor(it.ev.SecurityID()).in <- task{kind: taskEvent, item: it}
	}
	// ingress is closed and drained; partitions see their inputs close next
	for _, p := range m.parts {
		close(p.in)
	}
}

func (m *Monitor) partitionFor(securityID string) *partition {
	h := fnv.New32a()
	_, _ = h.Write([]byte(securityID))
	return m.parts[h.Sum32()%uint32(len(m.parts))]
}

// Ingest parses one raw message and submits the event. Ignored messages
// return nil; parse errors are returned after being logged and counted.
func (m *Monitor) Ingest(raw []byte) error {
	res, err := m.parser.Parse(raw)
	if err != nil {
		m.metrics.Message("error")
		m.log.Warn().Err(err).Str("raw", fix.Printable(raw)).Msg("Discarding unparseable message")
		return err
	}
	if res.ChecksumMismatch {
		m.metrics.ChecksumMismatch()
	}
	if res.BodyLengthMismatch {
		m.metrics.BodyLengthMismatched()
	}
	if res.Status == fix.StatusIgnored {
		m.metrics.Message("ignored")
		m.log.Debug().Str("reason", res.Reason).Msg("Ignoring message")
		return nil
	}
	if res.Warning() {
		m.metrics.Message("warning")
	} else {
		m.metrics.Message("ok")
	}
	return m.submit(item{ev: res.Event, checksumMismatch: res.ChecksumMismatch, received: m.now()})
}

// Submit queues an already decoded event.
func (m *Monitor) Submit(ev market.ExecutionEvent) error {
	return m.submit(item{ev: ev, received: m.now()})
}

func (m *Monitor) submit(it item) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}

	m.addPending(1)
	var err error
	switch m.cfg.Overflow {
	case OverflowDropOldest:
		m.enqueueDropOldest(it)
	default:
		err = m.enqueueBlock(it)
	}
	if err != nil {
		m.addPending(-1)
		return err
	}
	m.metrics.SetQueueDepth(len(m.ingress))
	return nil
}

func (m *Monitor) enqueueBlock(it item) error {
	select {
	case m.ingress <- it:
		return nil
	default:
	}

	timer := time.NewTimer(m.cfg.EnqueueTimeout)
	defer timer.Stop()
	select {
	case m.ingress <- it:
		return nil
	case <-timer.C:
		m.log.Warn().Str("security", it.ev.SecurityID()).Msg("Ingress queue full, rejecting event")
		return ErrQueueFull
	}
}

func (m *Monitor) enqueueDropOldest(it item) {
	for {
		select {
		case m.ingress <- it:
			return
		default:
		}
		select {
		case old := <-m.ingress:
			m.addPending(-1)
			m.metrics.Dropped()
			m.log.Warn().
				Str("security", old.ev.SecurityID()).
				Str("order_id", old.ev.OrderID).
				Msg("Ingress queue full, dropped oldest event")
		default:
		}
	}
}

// clearPending releases Flush waiters once no partition is left to run.
func (m *Monitor) clearPending() {
	m.pendingMu.Lock()
	m.pending = 0
	m.pendingCv.Broadcast()
	m.pendingMu.Unlock()
}

func (m *Monitor) addPending(n int) {
	m.pendingMu.Lock()
	m.pending += n
	if m.pending <= 0 {
		m.pending = 0
		m.pendingCv.Broadcast()
	}
	m.pendingMu.Unlock()
}

// Flush blocks until every accepted event and every re-evaluation it
// triggered has been processed.
func (m *Monitor) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.pendingMu.Lock()
		for m.pending > 0 {
			m.pendingCv.Wait()
		}
		m.pendingMu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush: %w", ctx.Err())
	}
}

// Seed loads opening positions and re-evaluates each seeded security.
// Before Start the rows are stored directly; after Start each row goes to
// the partition that owns its security, like a fill. Seed returns ErrClosed
// once Close has been called.
func (m *Monitor) Seed(holdings ...market.Holding) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	for _, h := range holdings {
		h = m.normalizeSeed(h)
		if !m.started {
			m.seedMu.Lock()
			m.book.put(h)
			m.seedMu.Unlock()
			m.markDirty(h.SecurityID)
			m.propagate(h.SecurityID)
			continue
		}
		m.addPending(1)
		m.partitionFor(h.SecurityID).in <- task{kind: taskSeed, hold: h}
	}
	return nil
}

func (m *Monitor) normalizeSeed(h market.Holding) market.Holding {
	h.Owner = market.NormalizeID(h.Owner)
	if h.Owner == "" {
		h.Owner = market.NormalizeID(m.cfg.DefaultOwner)
	}
	h.SecurityID = market.NormalizeID(h.SecurityID)
	h.Jurisdiction = market.NormalizeID(h.Jurisdiction)
	if sec, ok := m.securities.Lookup(h.SecurityID); ok {
		if h.Jurisdiction == "" {
			h.Jurisdiction = sec.Jurisdiction
		}
		if !h.TotalSharesOutstanding.IsPositive() {
			h.TotalSharesOutstanding = sec.SharesOutstanding
		}
	}
	if h.LastUpdated.IsZero() {
		h.LastUpdated = m.now()
	}
	return h
}

// propagate marks every constituent of a basket dirty.
func (m *Monitor) propagate(securityID string) {
	for _, c := range m.agg.Constituents(securityID) {
		m.markDirty(c.Ticker)
	}
}

func (m *Monitor) markDirty(securityID string) {
	if m.stopped.Load() {
		return
	}
	p := m.partitionFor(securityID)
	if p.markDirty(securityID) {
		m.addPending(1)
	}
}

// Sweep re-evaluates every tracked security. Running it repeatedly without
// new events emits nothing new.
func (m *Monitor) Sweep(ctx context.Context) error {
	return m.broadcast(ctx, taskSweep)
}

func (m *Monitor) broadcast(ctx context.Context, kind taskKind) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	for _, p := range m.parts {
		m.addPending(1)
		select {
		case p.in <- task{kind: kind}:
		case <-ctx.Done():
			m.addPending(-1)
			return ctx.Err()
		}
	}
	return nil
}

// Holdings returns a snapshot of every holding row, ordered by security
// then owner.
func (m *Monitor) Holdings() []market.Holding {
	return m.book.all()
}

func (m *Monitor) holding(k market.HoldingKey) (market.Holding, bool) {
	return m.book.get(k)
}

func (m *Monitor) publish(t risk.Transition) {
	for _, p := range m.publishers {
		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.PublishTimeout)
		err := p.Publish(ctx, t)
		cancel()
		if err != nil {
			m.metrics.SinkError("publisher")
			m.log.Error().Err(err).Str("security", t.SecurityID).Str("transition", t.ID).Msg("Publishing transition failed")
		}
	}
}
