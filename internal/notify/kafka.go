package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	HeaderEventID       = "event-id"
	HeaderEventType     = "event-type"
	HeaderSchemaVersion = "schema-version"
	HeaderSource        = "source"

	emailEventType = "notification.email"
	schemaVersion  = "1"
	source         = "interview-scheduler"
)

var ErrEmptyKey = errors.New("notification key is required")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes messages for the email worker, keyed by booking id
// so every email for one booking lands on the same partition.
type KafkaSender struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaSender(brokers []string, topic string, logger *zap.Logger) (*KafkaSender, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  5,
		BatchTimeout: 50 * time.Millisecond,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			logger.Sugar().Errorf(msg, args...)
		}),
	}
	return &KafkaSender{writer: writer, logger: logger}, nil
}

func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	if msg.Key == "" {
		return ErrEmptyKey
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Key),
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(uuid.NewString())},
			{Key: HeaderEventType, Value: []byte(emailEventType)},
			{Key: HeaderSchemaVersion, Value: []byte(schemaVersion)},
			{Key: HeaderSource, Value: []byte(source)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	s.logger.Debug("notification published", zap.String("key", msg.Key), zap.String("kind", string(msg.Kind)))
	return nil
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}
