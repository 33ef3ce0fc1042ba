// Package publish delivers status transitions to downstream consumers.
package publish

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/stakewatch/risk"
)

// Publisher matches monitor.Publisher.
type Publisher interface {
	Publish(ctx context.Context, t risk.Transition) error
}

// Multi fans a transition out to every publisher. All of them are tried;
// the errors are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, t risk.Transition) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes each transition as a structured log line. Breaches log at
// warn, everything else at info.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log.With().Str("component", "alerts").Logger()}
}

func (l *Log) Publish(_ context.Context, t risk.Transition) error {
	e := l.log.Info()
	if t.Type == risk.BreachDetected {
		e = l.log.Warn()
	}
	e = e.Str("id", t.ID).
		Str("security", t.SecurityID).
		Str("jurisdiction", t.Jurisdiction).
		Str("type", string(t.Type)).
		Str("from", t.From.String()).
		Str("to", t.To.String()).
		Float64("ownership_percent", t.OwnershipPercent).
		Float64("threshold_percent", t.ThresholdPercent).
		Float64("velocity", t.BuyingVelocity)
	if t.ProjectedBreachHours != nil {
		e = e.Float64("projected_breach_hours", *t.ProjectedBreachHours)
	}
	e.Time("at", t.Timestamp).Msg("Transition")
	return nil
}
