package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/rustyeddy/stakewatch/risk"
)

const DefaultTopic = "stakewatch.transitions"

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	Async        bool
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

// writer is the part of *kafka.Writer the publisher uses.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes transitions as JSON keyed by security, so every
// transition of one security lands on the same partition in order.
type Kafka struct {
	w     writer
	topic string
	log   zerolog.Logger
}

func NewKafka(cfg KafkaConfig, log zerolog.Logger) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	k := &Kafka{topic: cfg.Topic, log: log.With().Str("component", "kafka").Logger()}
	k.w = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		Async:        cfg.Async,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				k.log.Error().Err(err).Int("messages", len(msgs)).Msg("Async transition delivery failed")
			}
		},
	}
	k.log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Bool("async", cfg.Async).Msg("Kafka publisher ready")
	return k, nil
}

func (k *Kafka) Topic() string { return k.topic }

func (k *Kafka) Publish(ctx context.Context, t risk.Transition) error {
	msg, err := Message(t)
	if err != nil {
		return err
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: publish %s: %w", t.ID, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.w.Close()
}

// Message encodes a transition for the wire.
func Message(t risk.Transition) (kafka.Message, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: encode transition: %w", err)
	}
	return kafka.Message{
		Key:   []byte(t.SecurityID),
		Value: b,
		Time:  t.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(t.Type)},
			{Key: "jurisdiction", Value: []byte(t.Jurisdiction)},
		},
	}, nil
}
