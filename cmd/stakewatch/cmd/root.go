package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/stakewatch/config"
	"github.com/rustyeddy/stakewatch/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "stakewatch",
	Short: "Real-time regulatory ownership threshold monitor",
	Long: `Stakewatch watches FIX execution reports and tells compliance how close
every holding is to a regulatory disclosure threshold.

It provides tools for:
  - Running the live monitor against a FIX feed with an HTTP/WebSocket API
  - Replaying captured FIX sessions through the monitor
  - Decoding individual FIX execution reports
  - Computing jurisdiction-aware filing deadlines
  - Querying the transition and alert audit journal`,
	SilenceUsage: true,
}

var (
	cfgPath   string
	logLevel  string
	logPretty bool
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "pretty", false, "human-readable console logs")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logPretty {
		cfg.Log.Pretty = true
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
}
