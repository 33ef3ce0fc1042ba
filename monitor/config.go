package monitor

import (
	"fmt"
	"time"

	"github.com/rustyeddy/stakewatch/velocity"
)

// Overflow is what Submit does when the ingress queue is full.
type Overflow string

const (
	// OverflowBlock waits up to EnqueueTimeout, then fails with ErrQueueFull.
	OverflowBlock Overflow = "block"
	// OverflowDropOldest evicts the oldest queued event to make room.
	OverflowDropOldest Overflow = "drop-oldest"
)

type Config struct {
	Partitions     int
	QueueSize      int
	Overflow       Overflow
	EnqueueTimeout time.Duration
	// PublishTimeout bounds each Publish call so an unreachable downstream
	// cannot hold a partition.
	PublishTimeout time.Duration
	VelocityWindow time.Duration
	VelocityAlpha  float64
	// DefaultOwner is the entity fills are booked to when the report carries
	// no Account(1) tag.
	DefaultOwner string
}

func DefaultConfig() Config {
	return Config{
		Partitions:     8,
		QueueSize:      4096,
		Overflow:       OverflowBlock,
		EnqueueTimeout: 2 * time.Second,
		PublishTimeout: 5 * time.Second,
		VelocityWindow: velocity.DefaultWindow,
		VelocityAlpha:  velocity.DefaultAlpha,
		DefaultOwner:   "FIRM",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Partitions <= 0 {
		c.Partitions = d.Partitions
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.Overflow == "" {
		c.Overflow = d.Overflow
	}
	if c.EnqueueTimeout <= 0 {
		c.EnqueueTimeout = d.EnqueueTimeout
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = d.PublishTimeout
	}
	if c.VelocityWindow <= 0 {
		c.VelocityWindow = d.VelocityWindow
	}
	if c.VelocityAlpha <= 0 {
		c.VelocityAlpha = d.VelocityAlpha
	}
	if c.DefaultOwner == "" {
		c.DefaultOwner = d.DefaultOwner
	}
	return c
}

func (c Config) Validate() error {
	switch c.Overflow {
	case "", OverflowBlock, OverflowDropOldest:
	default:
		return fmt.Errorf("overflow must be %q or %q", OverflowBlock, OverflowDropOldest)
	}
	if c.VelocityAlpha < 0 || c.VelocityAlpha > 1 {
		return fmt.Errorf("velocity alpha must be in (0,1]")
	}
	if c.Partitions < 0 || c.QueueSize < 0 {
		return fmt.Errorf("partitions and queue size must not be negative")
	}
	return nil
}
