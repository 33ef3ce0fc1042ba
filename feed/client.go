// Package feed connects the monitor to its upstream FIX execution stream,
// either a live TCP session or a captured replay file.
package feed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/stakewatch/fix"
	"github.com/rustyeddy/stakewatch/metrics"
)

// ErrExhausted is returned by Run once every reconnect attempt has failed.
var ErrExhausted = errors.New("feed: reconnect attempts exhausted")

// maxMessage bounds one framed message; execution reports are far smaller.
const maxMessage = 1 << 20

// Sink consumes framed messages. The slice is only valid for the duration
// of the call.
type Sink interface {
	Ingest(raw []byte) error
}

type SinkFunc func(raw []byte) error

func (f SinkFunc) Ingest(raw []byte) error { return f(raw) }

type State string

const (
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateDisconnected State = "disconnected"
)

type Status struct {
	State    State
	Attempts int
	Since    time.Time
	Err      error
}

type Config struct {
	Addr           string
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	DialTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    10,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		DialTimeout:    5 * time.Second,
	}
}

type Option func(*Client)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log.With().Str("component", "feed").Logger() }
}

func WithMetrics(mx *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = mx }
}

// OnStatus registers a callback for every state change. It runs on the
// client's goroutine.
func OnStatus(fn func(Status)) Option {
	return func(c *Client) { c.onStatus = append(c.onStatus, fn) }
}

// Client reads a FIX byte stream from a TCP endpoint and hands every framed
// message to a Sink, reconnecting with capped exponential backoff.
type Client struct {
	cfg      Config
	sink     Sink
	log      zerolog.Logger
	metrics  *metrics.Metrics
	onStatus []func(Status)
	dial     func(ctx context.Context, addr string) (net.Conn, error)

	mu     sync.RWMutex
	status Status
}

func NewClient(cfg Config, sink Sink, opts ...Option) *Client {
	d := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = d.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = d.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = d.MaxBackoff
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = d.DialTimeout
	}

	c := &Client{
		cfg:    cfg,
		sink:   sink,
		log:    zerolog.Nop(),
		status: Status{State: StateDisconnected, Since: time.Now()},
	}
	dialer := &net.Dialer{Timeout: cfg.DialTimeout}
	c.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		return dialer.DialContext(ctx, "tcp", addr)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Client) setStatus(state State, attempts int, err error) {
	s := Status{State: state, Attempts: attempts, Since: time.Now(), Err: err}
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()

	c.metrics.SetFeedConnected(state == StateConnected)
	for _, fn := range c.onStatus {
		fn(s)
	}
}

// Backoff is the wait before reconnect attempt n (1-based).
func Backoff(n int, initial, max time.Duration) time.Duration {
	d := initial
	for i := 1; i < n; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Run connects and streams until ctx is cancelled or reconnects are
// exhausted. A session that delivered data resets the attempt counter.
func (c *Client) Run(ctx context.Context) error {
	if c.cfg.Addr == "" {
		return errors.New("feed: no address configured")
	}

	attempts := 0
	for {
		received, err := c.session(ctx)
		if ctx.Err() != nil {
			c.setStatus(StateDisconnected, attempts, nil)
			c.log.Info().Msg("Feed stopped")
			return ctx.Err()
		}
		if received > 0 {
			attempts = 0
		}

		attempts++
		if attempts > c.cfg.MaxAttempts {
			c.setStatus(StateDisconnected, attempts-1, err)
			c.log.Error().Err(err).Int("attempts", attempts-1).Msg("Feed reconnect attempts exhausted")
			return fmt.Errorf("%w: %v", ErrExhausted, err)
		}

		wait := Backoff(attempts, c.cfg.InitialBackoff, c.cfg.MaxBackoff)
		c.setStatus(StateReconnecting, attempts, err)
		c.metrics.Reconnect()
		c.log.Warn().Err(err).Int("attempt", attempts).Dur("backoff", wait).Msg("Feed disconnected, reconnecting")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.setStatus(StateDisconnected, attempts, nil)
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one connection and returns the number of messages read.
func (c *Client) session(ctx context.Context) (int, error) {
	conn, err := c.dial(ctx, c.cfg.Addr)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", c.cfg.Addr, err)
	}
	defer conn.Close()

	// unblock the read when ctx ends
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	c.setStatus(StateConnected, 0, nil)
	c.log.Info().Str("addr", c.cfg.Addr).Msg("Feed connected")

	n, err := Stream(conn, c.sink, c.log)
	if err == nil {
		err = errors.New("connection closed by peer")
	}
	return n, err
}

// Stream frames r into messages and feeds them to sink until r ends. Sink
// errors are logged and skipped; only read errors stop the stream.
func Stream(r io.Reader, sink Sink, log zerolog.Logger) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxMessage)
	sc.Split(fix.ScanMessages)

	n := 0
	for sc.Scan() {
		msg := sc.Bytes()
		if len(msg) == 0 {
			continue
		}
		n++
		if err := sink.Ingest(msg); err != nil {
			log.Warn().Err(err).Str("raw", trimForErr(fix.Printable(msg))).Msg("Message rejected")
		}
	}
	return n, sc.Err()
}

func trimForErr(s string) string {
	const n = 200
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
