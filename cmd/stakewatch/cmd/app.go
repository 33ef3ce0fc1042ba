package cmd

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/stakewatch/config"
	"github.com/rustyeddy/stakewatch/feed"
	"github.com/rustyeddy/stakewatch/fix"
	"github.com/rustyeddy/stakewatch/journal"
	"github.com/rustyeddy/stakewatch/market"
	"github.com/rustyeddy/stakewatch/metrics"
	"github.com/rustyeddy/stakewatch/monitor"
	"github.com/rustyeddy/stakewatch/publish"
	"github.com/rustyeddy/stakewatch/refdata"
	"github.com/rustyeddy/stakewatch/rules"
)

// app is the wired pipeline shared by run and replay.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	journal journal.Journal
	kafka   *publish.Kafka
	mon     *monitor.Monitor
}

func buildApp(cfg *config.Config, log zerolog.Logger, extra ...monitor.Publisher) (*app, error) {
	a := &app{cfg: cfg, log: log, reg: prometheus.NewRegistry()}
	a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.reg)

	data := &refdata.Data{Securities: market.Securities{}}
	if cfg.RefData != "" {
		var err error
		if data, err = refdata.Load(cfg.RefData); err != nil {
			return nil, err
		}
		log.Info().
			Str("path", cfg.RefData).
			Int("securities", len(data.Securities)).
			Int("baskets", len(data.Baskets)).
			Int("holdings", len(data.Holdings)).
			Msg("Reference data loaded")
	}

	eval := rules.NewEvaluator(data.Table(rules.DefaultTable()),
		rules.WithLogger(log),
		rules.WithUnsupportedHook(a.metrics.UnsupportedJurisdiction),
	)
	agg := data.Aggregator()

	var err error
	if a.journal, err = journal.Open(cfg.Journal.Type, cfg.Journal.Path); err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	pubs := publish.Multi{publish.NewLog(log)}
	if len(cfg.Kafka.Brokers) > 0 {
		if a.kafka, err = publish.NewKafka(cfg.Kafka.ToPublish(), log); err != nil {
			_ = a.journal.Close()
			return nil, err
		}
		pubs = append(pubs, a.kafka)
	}
	for _, p := range extra {
		pubs = append(pubs, p)
	}

	mcfg, err := cfg.Monitor.ToMonitor()
	if err != nil {
		_ = a.close()
		return nil, err
	}
	beginString := cfg.FIX.BeginString
	if beginString == "" {
		beginString = fix.DefaultBeginString
	}

	a.mon = monitor.New(mcfg, agg, eval,
		monitor.WithLogger(log),
		monitor.WithMetrics(a.metrics),
		monitor.WithSecurities(data.Securities),
		monitor.WithJournal(a.journal),
		monitor.WithPublisher(pubs),
		monitor.WithParser(fix.NewParser(fix.WithBeginString(beginString), fix.WithLogger(log))),
	)
	if err := a.mon.Seed(data.Holdings...); err != nil {
		_ = a.close()
		return nil, fmt.Errorf("seed holdings: %w", err)
	}
	return a, nil
}

func (a *app) close() error {
	var errs []error
	if a.mon != nil {
		errs = append(errs, a.mon.Close())
	}
	if a.kafka != nil {
		errs = append(errs, a.kafka.Close())
	}
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	return errors.Join(errs...)
}

func feedStatus(s feed.Status) monitor.FeedStatus {
	out := monitor.FeedStatus{
		State:    monitor.FeedState(s.State),
		Since:    s.Since,
		Attempts: s.Attempts,
	}
	if s.Err != nil {
		out.LastError = s.Err.Error()
	}
	return out
}
