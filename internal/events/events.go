// Package events publishes pipeline run lifecycle events to Kafka so other
// services can follow runs without polling the HTTP API.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Event types published over the run lifecycle.
const (
	EventRunStarted      = "run.started"
	EventPhaseCompleted  = "run.phase_completed"
	EventProgressUpdated = "run.progress_updated"
	EventRunCompleted    = "run.completed"
	EventRunFailed       = "run.failed"
)

// Envelope is the wire format for every pipeline event.
type Envelope struct {
	EventID   string          `json:"event_id"`
	RunID     string          `json:"run_id"`
	EventType string          `json:"event_type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Publisher emits run lifecycle events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, eventType string, runID uuid.UUID, payload interface{}) error
	Close() error
}

// messageWriter is the subset of kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds Kafka publisher settings.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the topic pipeline events are written to.
	Topic string
	// ServiceName is stamped on every envelope as the source.
	ServiceName string
}

// KafkaPublisher writes run events to a Kafka topic, keyed by run ID so
// each run's events stay ordered within a partition.
type KafkaPublisher struct {
	writer      messageWriter
	serviceName string
	logger      zerolog.Logger
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher backed by a kafka.Writer.
func NewKafkaPublisher(cfg Config, logger zerolog.Logger) *KafkaPublisher {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "slr-pipeline-service"
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{
		writer:      writer,
		serviceName: cfg.ServiceName,
		logger:      logger.With().Str("component", "events").Logger(),
	}
}

// Publish serializes the payload into an envelope and writes it.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, runID uuid.UUID, payload interface{}) error {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("events: marshal payload: %w", err)
		}
		raw = b
	}

	envelope := Envelope{
		EventID:   uuid.New().String(),
		RunID:     runID.String(),
		EventType: eventType,
		Source:    p.serviceName,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}

	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(envelope.RunID),
		Value: value,
	}); err != nil {
		return fmt.Errorf("events: write %s: %w", eventType, err)
	}

	p.logger.Debug().
		Str("event_type", eventType).
		Str("run_id", envelope.RunID).
		Msg("event published")
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops all events. Used when eventing is disabled.
type NopPublisher struct{}

var _ Publisher = NopPublisher{}

// Publish discards the event.
func (NopPublisher) Publish(context.Context, string, uuid.UUID, interface{}) error { return nil }

// Close is a no-op.
func (NopPublisher) Close() error { return nil }
