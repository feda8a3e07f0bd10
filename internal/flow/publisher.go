// Package flow hands AI-mode messages to the external flow engine through a
// Kafka topic.
package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"whatsdesk/internal/config"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event one inbound message the flow engine should answer
type Event struct {
	WorkspaceID    uuid.UUID `json:"workspace_id"`
	InstanceID     uuid.UUID `json:"instance_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
	ContactPhone   string    `json:"contact_phone"`
	MessageType    string    `json:"message_type"`
	Content        string    `json:"content"`
	MediaURL       string    `json:"media_url,omitempty"`
	SentAt         time.Time `json:"sent_at"`
}

type Publisher interface {
	// Enabled false when no broker is configured
	Enabled() bool
	Publish(ctx context.Context, ev *Event) error
	Close() error
}

// New returns a Kafka publisher when brokers and topic are configured
func New(cfg config.KafkaConfig, logger *zap.Logger) Publisher {
	if !cfg.Enabled() {
		return NoopPublisher{}
	}
	return NewKafkaPublisher(cfg, logger)
}

// ===========================================================================
// Kafka
// ===========================================================================

type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	brokerList := strings.Split(cfg.Brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokerList...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
		logger: logger.Named("flow"),
	}
}

func (p *KafkaPublisher) Enabled() bool { return true }

// Publish keys by conversation so one conversation stays on one partition
func (p *KafkaPublisher) Publish(ctx context.Context, ev *Event) error {
	msg, err := encode(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish flow event: %w", err)
	}

	p.logger.Debug("flow event published",
		zap.String("conversation_id", ev.ConversationID.String()),
		zap.String("message_id", ev.MessageID.String()),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encode(ev *Event) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal flow event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.ConversationID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "workspace_id", Value: []byte(ev.WorkspaceID.String())},
			{Key: "instance_id", Value: []byte(ev.InstanceID.String())},
		},
		Time: ev.SentAt,
	}, nil
}

// ===========================================================================
// Noop
// ===========================================================================

type NoopPublisher struct{}

func (NoopPublisher) Enabled() bool { return false }

func (NoopPublisher) Publish(ctx context.Context, ev *Event) error { return nil }

func (NoopPublisher) Close() error { return nil }
