package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/stakewatch/risk"
)

func transition() risk.Transition {
	hours := 3.5
	return risk.Transition{
		ID:                   "01J0000000000000000000000",
		SecurityID:           "ACME",
		Jurisdiction:         "US",
		Type:                 risk.WarningDetected,
		From:                 risk.Safe,
		To:                   risk.Warning,
		OwnershipPercent:     4.6,
		ThresholdPercent:     5,
		BuyingVelocity:       120_000,
		ProjectedBreachHours: &hours,
		Timestamp:            time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
	}
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestMessage(t *testing.T) {
	t.Parallel()

	msg, err := Message(transition())
	require.NoError(t, err)
	assert.Equal(t, "ACME", string(msg.Key))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "WarningDetected", string(msg.Headers[0].Value))

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "ACME", got["security_id"])
	assert.Equal(t, "Warning", got["to"])
	assert.Equal(t, 3.5, got["projected_breach_hours"])
}

func TestKafkaPublish(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	k := &Kafka{w: w, topic: DefaultTopic, log: zerolog.Nop()}
	require.NoError(t, k.Publish(context.Background(), transition()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "ACME", string(w.msgs[0].Key))

	w.err = errors.New("broker down")
	err := k.Publish(context.Background(), transition())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	require.NoError(t, k.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaRequiresBrokers(t *testing.T) {
	t.Parallel()

	_, err := NewKafka(KafkaConfig{}, zerolog.Nop())
	require.Error(t, err)

	k, err := NewKafka(KafkaConfig{Brokers: []string{"localhost:9092"}}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, DefaultTopic, k.Topic())
	require.NoError(t, k.Close())
}

type countingPublisher struct {
	n   int
	err error
}

func (c *countingPublisher) Publish(context.Context, risk.Transition) error {
	c.n++
	return c.err
}

func TestMultiTriesEveryPublisher(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	a := &countingPublisher{err: boom}
	b := &countingPublisher{}
	m := Multi{a, nil, b}

	err := m.Publish(context.Background(), transition())
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)

	assert.NoError(t, Multi{b}.Publish(context.Background(), transition()))
}

func TestLogPublisher(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewLog(zerolog.New(&buf))

	tr := transition()
	tr.Type, tr.To = risk.BreachDetected, risk.Breach
	tr.ProjectedBreachHours = nil
	require.NoError(t, l.Publish(context.Background(), tr))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "alerts", line["component"])
	assert.Equal(t, "ACME", line["security"])
	assert.Equal(t, "BreachDetected", line["type"])
	assert.NotContains(t, line, "projected_breach_hours")
}
