package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/stakewatch/feed"
	"github.com/rustyeddy/stakewatch/scheduler"
	"github.com/rustyeddy/stakewatch/server"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the live monitor",
	Long: `Connect to the FIX feed, monitor every holding and serve the HTTP and
WebSocket API until interrupted.

Example:
  stakewatch run -c stakewatch.yaml
  STAKEWATCH_FEED_ADDR=gateway:9878 stakewatch run`,
	RunE: runRun,
}

var runFeedAddr string

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runFeedAddr, "feed", "", "override feed address host:port")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFeedAddr != "" {
		cfg.Feed.Addr = runFeedAddr
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := server.NewHub(log)
	a, err := buildApp(cfg, log, hub)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			log.Error().Err(err).Msg("Shutdown error")
		}
	}()

	a.mon.Start(ctx)
	go hub.Run(ctx)

	sched := scheduler.New(log)
	if cfg.Scheduler.Sweep != "" {
		if err := sched.AddJob(cfg.Scheduler.Sweep, scheduler.NewSweepJob(a.mon, a.metrics)); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Addr:     cfg.HTTP.Addr,
		Log:      log,
		Monitor:  a.mon,
		Hub:      hub,
		Gatherer: a.reg,
	})
	errc := make(chan error, 2)
	go func() { errc <- srv.Start() }()

	if cfg.Feed.Addr != "" {
		fcfg, err := cfg.Feed.ToFeed()
		if err != nil {
			return err
		}
		client := feed.NewClient(fcfg, a.mon,
			feed.WithLogger(log),
			feed.WithMetrics(a.metrics),
			feed.OnStatus(func(s feed.Status) { a.mon.SetFeedStatus(feedStatus(s)) }),
		)
		go func() {
			// exhaustion leaves the feed disconnected; queries keep working
			if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Feed stopped")
			}
		}()
	} else {
		log.Warn().Msg("No feed address configured, serving seeded holdings only")
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	case err := <-errc:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
