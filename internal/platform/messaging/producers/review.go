package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/datamart-payments-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

// ReviewProducer publishes amount-mismatch flags to the manual review topic.
// A flagged deposit is never credited automatically; an operator resolves it.
type ReviewProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewReviewProducer creates the producer and ensures the review topic exists
func NewReviewProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*ReviewProducer, error) {
	if cfg.ReviewTopic == "" {
		return nil, fmt.Errorf("kafka review topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for review producer: %w", err)
	}
	defer conn.Close()

	err = ensureTopic(conn, cfg.ReviewTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure review topic %s exists: %w", cfg.ReviewTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.ReviewTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll, // Review flags must not be lost
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &ReviewProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.ReviewTopic,
	}, nil
}

func (p *ReviewProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for review producer: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish review flag",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish review flag to %s: %w", p.topic, err)
	}

	p.logger.Info("Published review flag",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *ReviewProducer) Close() error {
	p.logger.Info("Closing review producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close review kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
