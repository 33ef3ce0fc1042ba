package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/stakewatch/feed"
	"github.com/rustyeddy/stakewatch/monitor"
	"github.com/rustyeddy/stakewatch/publish"
	"github.com/rustyeddy/stakewatch/scheduler"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STAKEWATCH_"

// Config represents the complete service configuration
type Config struct {
	Feed      FeedConfig      `json:"feed" yaml:"feed"`
	HTTP      HTTPConfig      `json:"http" yaml:"http"`
	Monitor   MonitorConfig   `json:"monitor" yaml:"monitor"`
	Journal   JournalConfig   `json:"journal" yaml:"journal"`
	Kafka     KafkaConfig     `json:"kafka" yaml:"kafka"`
	Log       LogConfig       `json:"log" yaml:"log"`
	FIX       FIXConfig       `json:"fix" yaml:"fix"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	RefData   string          `json:"refdata" yaml:"refdata"` // path to the reference data YAML
}

type FeedConfig struct {
	Addr           string `json:"addr" yaml:"addr"`
	MaxAttempts    int    `json:"max_attempts" yaml:"max_attempts"`
	InitialBackoff string `json:"initial_backoff" yaml:"initial_backoff"` // e.g., "500ms"
	MaxBackoff     string `json:"max_backoff" yaml:"max_backoff"`
}

type HTTPConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type MonitorConfig struct {
	Partitions     int     `json:"partitions" yaml:"partitions"`
	QueueSize      int     `json:"queue_size" yaml:"queue_size"`
	Overflow       string  `json:"overflow" yaml:"overflow"` // "block" or "drop-oldest"
	EnqueueTimeout string  `json:"enqueue_timeout" yaml:"enqueue_timeout"`
	PublishTimeout string  `json:"publish_timeout" yaml:"publish_timeout"`
	VelocityWindow string  `json:"velocity_window" yaml:"velocity_window"`
	VelocityAlpha  float64 `json:"velocity_alpha" yaml:"velocity_alpha"`
	DefaultOwner   string  `json:"default_owner" yaml:"default_owner"`
}

// JournalConfig selects the audit sink
type JournalConfig struct {
	Type string `json:"type" yaml:"type"` // "sqlite", "csv" or "none"
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// KafkaConfig configures the transition publisher. Async is on by default
// so delivery never waits on the broker; failures are logged on completion.
type KafkaConfig struct {
	Brokers []string `json:"brokers,omitempty" yaml:"brokers,omitempty"`
	Topic   string   `json:"topic" yaml:"topic"`
	Async   bool     `json:"async" yaml:"async"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

type FIXConfig struct {
	BeginString string `json:"begin_string" yaml:"begin_string"`
}

type SchedulerConfig struct {
	Sweep string `json:"sweep" yaml:"sweep"` // cron spec, empty disables
}

// Load reads env files (".env" when none are given), then the config file
// when path is set, then applies STAKEWATCH_* overrides.
func Load(path string, envFiles ...string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load(envFiles...)

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file over the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str("FEED_ADDR", &c.Feed.Addr)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("JOURNAL_TYPE", &c.Journal.Type)
	str("JOURNAL_PATH", &c.Journal.Path)
	str("KAFKA_TOPIC", &c.Kafka.Topic)
	str("REFDATA", &c.RefData)
	str("OVERFLOW", &c.Monitor.Overflow)

	if v, ok := os.LookupEnv(EnvPrefix + "KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = nil
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.Kafka.Brokers = append(c.Kafka.Brokers, b)
			}
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "PARTITIONS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sPARTITIONS: %w", EnvPrefix, err)
		}
		c.Monitor.Partitions = n
	}
	if v, ok := os.LookupEnv(EnvPrefix + "LOG_PRETTY"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sLOG_PRETTY: %w", EnvPrefix, err)
		}
		c.Log.Pretty = b
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := c.Monitor.ToMonitor(); err != nil {
		return err
	}
	if _, err := c.Feed.ToFeed(); err != nil {
		return err
	}
	switch c.Journal.Type {
	case "", "none":
	case "sqlite", "csv":
		if c.Journal.Path == "" {
			return fmt.Errorf("journal.path required for %s journal", c.Journal.Type)
		}
	default:
		return fmt.Errorf("journal.type must be 'sqlite', 'csv' or 'none'")
	}
	if c.FIX.BeginString != "" && !strings.HasPrefix(c.FIX.BeginString, "FIX") {
		return fmt.Errorf("fix.begin_string %q is not a FIX version", c.FIX.BeginString)
	}
	return nil
}

// ToMonitor converts the monitor section, parsing its durations.
func (m MonitorConfig) ToMonitor() (monitor.Config, error) {
	out := monitor.Config{
		Partitions:    m.Partitions,
		QueueSize:     m.QueueSize,
		Overflow:      monitor.Overflow(m.Overflow),
		VelocityAlpha: m.VelocityAlpha,
		DefaultOwner:  m.DefaultOwner,
	}
	var err error
	if out.EnqueueTimeout, err = parseDuration("monitor.enqueue_timeout", m.EnqueueTimeout); err != nil {
		return out, err
	}
	if out.PublishTimeout, err = parseDuration("monitor.publish_timeout", m.PublishTimeout); err != nil {
		return out, err
	}
	if out.VelocityWindow, err = parseDuration("monitor.velocity_window", m.VelocityWindow); err != nil {
		return out, err
	}
	if err := out.Validate(); err != nil {
		return out, fmt.Errorf("monitor: %w", err)
	}
	return out, nil
}

func (f FeedConfig) ToFeed() (feed.Config, error) {
	out := feed.Config{Addr: f.Addr, MaxAttempts: f.MaxAttempts}
	var err error
	if out.InitialBackoff, err = parseDuration("feed.initial_backoff", f.InitialBackoff); err != nil {
		return out, err
	}
	if out.MaxBackoff, err = parseDuration("feed.max_backoff", f.MaxBackoff); err != nil {
		return out, err
	}
	if f.MaxAttempts < 0 {
		return out, fmt.Errorf("feed.max_attempts must not be negative")
	}
	return out, nil
}

func (k KafkaConfig) ToPublish() publish.KafkaConfig {
	return publish.KafkaConfig{Brokers: k.Brokers, Topic: k.Topic, Async: k.Async}
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Feed: FeedConfig{
			MaxAttempts:    10,
			InitialBackoff: "500ms",
			MaxBackoff:     "30s",
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Monitor: MonitorConfig{
			Partitions:     8,
			QueueSize:      4096,
			Overflow:       string(monitor.OverflowBlock),
			EnqueueTimeout: "2s",
			PublishTimeout: "5s",
			VelocityWindow: "1h",
			VelocityAlpha:  0.3,
			DefaultOwner:   "FIRM",
		},
		Journal:   JournalConfig{Type: "sqlite", Path: "./stakewatch.db"},
		Kafka:     KafkaConfig{Topic: publish.DefaultTopic, Async: true},
		Log:       LogConfig{Level: "info"},
		FIX:       FIXConfig{BeginString: "FIX.4.4"},
		Scheduler: SchedulerConfig{Sweep: scheduler.DefaultSweepSchedule},
	}
}
