// Package kafka publishes archive sync events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/eventstream"
)

// Config holds the configuration for the Kafka publisher.
type Config struct {
	// Brokers is a comma-separated list of broker addresses.
	Brokers string

	// Topic is the topic sync events are written to.
	Topic string

	// Logger for publish failures. Required.
	Logger *zap.Logger
}

// Publisher writes sync events to a Kafka topic, keyed by event ID.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewPublisher creates a Kafka-backed eventstream publisher.
func NewPublisher(config Config) (*Publisher, error) {
	if config.Brokers == "" {
		return nil, errors.New("brokers are required")
	}
	if config.Topic == "" {
		return nil, errors.New("topic is required")
	}
	if config.Logger == nil {
		return nil, errors.New("logger is required")
	}

	brokers := strings.Split(config.Brokers, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  config.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &Publisher{
		writer: writer,
		logger: config.Logger.Named("kafka-events"),
	}, nil
}

// PublishSync serializes the event and writes it to the configured topic.
func (p *Publisher) PublishSync(ctx context.Context, event *eventstream.SyncCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilSyncEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling sync event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.EventID),
		Value: payload,
		Time:  event.EmittedAt,
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		p.logger.Warn("failed to publish sync event",
			zap.String("event_id", event.EventID),
			zap.Error(err))
		return fmt.Errorf("writing sync event: %w", err)
	}

	p.logger.Debug("published sync event",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType))

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
