package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/datamart-payments-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

// WalletEventProducer publishes wallet events drained from the outbox to the
// wallet event topic. Events are keyed by user ID so one wallet's history is
// consumed in order.
type WalletEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewWalletEventProducer creates the producer and ensures the topic exists
func NewWalletEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*WalletEventProducer, error) {
	if cfg.WalletEventTopic == "" {
		return nil, fmt.Errorf("kafka wallet event topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for wallet event producer: %w", err)
	}
	defer conn.Close()

	err = ensureTopic(conn, cfg.WalletEventTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure wallet event topic %s exists: %w", cfg.WalletEventTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.WalletEventTopic,
		Balancer:     &kafka.Hash{}, // Same user always lands on the same partition
		RequiredAcks: kafka.RequireOne,
		Async:        false, // The outbox poller needs the write result before marking rows processed
		WriteTimeout: cfg.MaxWait,
	}

	return &WalletEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.WalletEventTopic,
	}, nil
}

func (p *WalletEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for wallet event producer: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish wallet event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish wallet event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published wallet event",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *WalletEventProducer) Close() error {
	p.logger.Info("Closing wallet event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close wallet event kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
