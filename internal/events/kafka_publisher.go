package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-bookstore-pos/pkg/config"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// KafkaPublisher writes events to one topic, keyed by entity
type KafkaPublisher struct {
	producer   sarama.SyncProducer
	topic      string
	logger     *zap.Logger
	maxRetries int
	baseDelay  time.Duration
}

// NewKafkaPublisher connects a sync producer to the configured brokers
func NewKafkaPublisher(cfg config.KafkaConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = cfg.Retries
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1

	switch cfg.Acks {
	case "0":
		sc.Producer.RequiredAcks = sarama.NoResponse
		sc.Producer.Idempotent = false
	case "1":
		sc.Producer.RequiredAcks = sarama.WaitForLocal
		sc.Producer.Idempotent = false
	default:
		sc.Producer.RequiredAcks = sarama.WaitForAll
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, cfg.Topic, logger), nil
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer:   producer,
		topic:      topic,
		logger:     logger,
		maxRetries: 3,
		baseDelay:  100 * time.Millisecond,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(event.Action)},
			{Key: []byte("event-id"), Value: []byte(event.ID)},
			{Key: []byte("timestamp"), Value: []byte(event.OccurredAt.UTC().Format(time.RFC3339))},
		},
	}
	if event.Key != "" {
		message.Key = sarama.StringEncoder(event.Key)
	}

	var lastErr error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled: %w", err)
		}

		partition, offset, err := p.producer.SendMessage(message)
		if err == nil {
			p.logger.Debug("Event published to Kafka",
				zap.String("topic", p.topic),
				zap.Int32("partition", partition),
				zap.Int64("offset", offset),
				zap.String("action", event.Action),
			)
			return nil
		}
		lastErr = err
		p.logger.Warn("Failed to publish event to Kafka, retrying",
			zap.String("topic", p.topic),
			zap.Error(err),
			zap.Int("attempt", attempt+1),
		)

		if attempt < p.maxRetries-1 {
			// 100ms, 200ms, 400ms
			delay := p.baseDelay * time.Duration(1<<uint(attempt))
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("failed to publish event to Kafka after %d attempts: %w", p.maxRetries, lastErr)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
