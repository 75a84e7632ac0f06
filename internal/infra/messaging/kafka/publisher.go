// Package kafka publishes applied persistence plans as ticker-change events.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/wonny/tickersync/internal/domain/ticker"
)

// Compile-time check
var _ ticker.PlanPublisher = (*Publisher)(nil)

// MessageWriter is the part of *kafka.Writer the publisher uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TickerEvent is one applied action
type TickerEvent struct {
	RunID   uuid.UUID            `json:"run_id"`
	RunTime time.Time            `json:"run_time"`
	Kind    ticker.ActionKind    `json:"kind"`
	Symbol  string               `json:"symbol"`
	Record  *ticker.TickerRecord `json:"record,omitempty"`
}

// Publisher writes one message per plan action, keyed by symbol
type Publisher struct {
	writer MessageWriter
}

// NewPublisher creates a publisher backed by a kafka-go Writer
func NewPublisher(brokers []string, topic string) *Publisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
	})
}

// NewPublisherWithWriter wraps an existing writer
func NewPublisherWithWriter(w MessageWriter) *Publisher {
	return &Publisher{writer: w}
}

// Publish sends the plan's actions in plan order. Rejections are not published.
func (p *Publisher) Publish(ctx context.Context, runID uuid.UUID, plan *ticker.PersistencePlan) error {
	if plan == nil || plan.IsEmpty() {
		return nil
	}

	msgs, err := buildMessages(runID, plan)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write ticker events: %w", err)
	}

	log.Info().
		Str("run_id", runID.String()).
		Int("events", len(msgs)).
		Msg("Published ticker events")
	return nil
}

// Close flushes and closes the writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func buildMessages(runID uuid.UUID, plan *ticker.PersistencePlan) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(plan.Actions))
	for _, a := range plan.Actions {
		payload, err := json.Marshal(TickerEvent{
			RunID:   runID,
			RunTime: plan.RunTime,
			Kind:    a.Kind,
			Symbol:  a.Symbol,
			Record:  a.Record,
		})
		if err != nil {
			return nil, fmt.Errorf("encode event %s: %w", a.Symbol, err)
		}

		msgs = append(msgs, kafka.Message{
			Key:   []byte(a.Symbol),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "run_id", Value: []byte(runID.String())},
				{Key: "kind", Value: []byte(a.Kind)},
			},
		})
	}
	return msgs, nil
}
