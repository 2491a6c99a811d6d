package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/relabs-tech/gait_computer/internal/session"
)

// SummarySchema tags every exported summary message.
const SummarySchema = "gait.session.v1"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher exports finished session summaries keyed by session id,
// so every record of one session lands on the same partition.
type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher writes to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("kafka: topic must not be empty")
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Balancer:               &kafka.Hash{},
	}}, nil
}

// Publish writes one summary and waits for the broker to acknowledge it.
func (k *KafkaPublisher) Publish(ctx context.Context, s session.Summary) error {
	value, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("kafka: encode session %s: %w", s.ID, err)
	}
	msg := kafka.Message{
		Key:     []byte(s.ID),
		Value:   value,
		Time:    s.EndedAt,
		Headers: []kafka.Header{{Key: "schema", Value: []byte(SummarySchema)}},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: publish session %s: %w", s.ID, err)
	}
	return nil
}

func (k *KafkaPublisher) Close() error { return k.w.Close() }
