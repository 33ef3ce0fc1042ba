package scheduler

import (
	"context"
	"time"

	"github.com/rustyeddy/stakewatch/metrics"
)

type Sweeper interface {
	Sweep(ctx context.Context) error
}

// SweepJob re-evaluates every tracked security so freshness and deadlines
// stay current when no executions arrive.
type SweepJob struct {
	sweeper Sweeper
	metrics *metrics.Metrics
	timeout time.Duration
}

func NewSweepJob(s Sweeper, mx *metrics.Metrics) *SweepJob {
	return &SweepJob{sweeper: s, metrics: mx, timeout: 10 * time.Second}
}

func (j *SweepJob) Name() string { return "sweep" }

func (j *SweepJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if err := j.sweeper.Sweep(ctx); err != nil {
		return err
	}
	j.metrics.Sweep()
	return nil
}
