// Package events publishes usage and pipeline lifecycle events to Kafka.
// When disabled it degrades to log-only so the pipeline never depends on
// a broker being reachable.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/memovox/memovox/internal/billing"
	"github.com/memovox/memovox/internal/config"
	"github.com/memovox/memovox/internal/metrics"
)

// UsageEvent is the wire format for ledger mutations.
type UsageEvent struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	Action    string `json:"action"`
	Amount    int64  `json:"amount"`
	Note      string `json:"note"`
	Balance   int64  `json:"balance"`
	Timestamp string `json:"timestamp"`
}

// Publisher writes events to a single topic, or only logs them when
// Kafka is disabled.
type Publisher struct {
	writer  *kafka.Writer
	topic   string
	enabled bool
	metrics *metrics.Metrics
}

func New(cfg config.Kafka) *Publisher {
	m := metrics.Default

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("kafka disabled, usage events are log-only")
		return &Publisher{topic: cfg.Topic, metrics: m}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("kafka publisher initialized")

	return &Publisher{
		writer:  writer,
		topic:   cfg.Topic,
		enabled: true,
		metrics: m,
	}
}

// PublishUsage satisfies billing.UsagePublisher. Failures are logged and
// counted, never propagated: the ledger write already happened.
func (p *Publisher) PublishUsage(ctx context.Context, entry billing.UsageEntry, balance int64) {
	event := UsageEvent{
		EventID:   uuid.NewString(),
		Type:      "usage",
		Action:    entry.Action,
		Amount:    entry.Amount,
		Note:      entry.Note,
		Balance:   balance,
		Timestamp: entry.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	p.publish(ctx, event.EventID, event)
}

func (p *Publisher) publish(ctx context.Context, key string, event any) {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", p.topic).Msg("marshal event")
		return
	}

	log.Debug().Str("topic", p.topic).RawJSON("payload", payload).Msg("publishing event")

	if !p.enabled || p.writer == nil {
		p.metrics.KafkaPublishTotal.WithLabelValues("disabled").Inc()
		return
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Error().Err(err).Str("topic", p.topic).Msg("write to kafka")
		p.metrics.KafkaPublishTotal.WithLabelValues("error").Inc()
		return
	}

	p.metrics.KafkaPublishTotal.WithLabelValues("ok").Inc()
	p.metrics.KafkaPublishLatency.Observe(time.Since(start).Seconds())
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
