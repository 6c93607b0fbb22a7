package consumers

import (
	"context"
	"log/slog"
	"time"

	"github.com/datamart-payments-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one wallet event. Returning an error keeps the
// offset uncommitted so the event is fetched again.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer reads wallet events off the broker and feeds them to a handler.
type Consumer interface {
	Subscribe(ctx context.Context, handler MessageHandler) error
	Close() error
}

// fetchRetryDelay spaces out fetch attempts when the broker is unreachable.
const fetchRetryDelay = time.Second

// KafkaConsumer implements Consumer on a consumer-group reader over the
// wallet event topic. Offsets are committed only after the handler returns
// nil, which gives the history projector at-least-once delivery; the unique
// event_id index downstream absorbs the resulting redeliveries.
type KafkaConsumer struct {
	reader *kafka.Reader
	logger *slog.Logger
}

func NewKafkaConsumer(logger *slog.Logger, cfg *config.KafkaConfig) *KafkaConsumer {
	return &KafkaConsumer{
		logger: logger,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{cfg.Brokers},
			Topic:       cfg.WalletEventTopic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
			MaxWait:     cfg.MaxWait,
			StartOffset: kafka.FirstOffset,
		}),
	}
}

// Subscribe starts the fetch loop in a goroutine and returns. The loop ends
// when ctx is canceled.
func (c *KafkaConsumer) Subscribe(ctx context.Context, handler MessageHandler) error {
	topic := c.reader.Config().Topic
	groupID := c.reader.Config().GroupID

	c.logger.Info("Consuming wallet events",
		"topic", topic,
		"group_id", groupID,
	)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Stopping wallet event consumer",
					"topic", topic,
					"group_id", groupID,
				)
				return
			default:
				msg, err := c.reader.FetchMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					c.logger.Error("Failed to fetch wallet event",
						"topic", topic,
						"group_id", groupID,
						"error", err,
					)
					time.Sleep(fetchRetryDelay)
					continue
				}

				c.logger.Debug("Fetched wallet event",
					"partition", msg.Partition,
					"offset", msg.Offset,
					"key", string(msg.Key),
				)

				if err := handler(ctx, msg.Key, msg.Value); err != nil {
					// Leave the offset uncommitted; the event comes back on
					// the next fetch or lands in the DLQ via the handler.
					c.logger.Error("Failed to process wallet event, offset not committed",
						"partition", msg.Partition,
						"offset", msg.Offset,
						"key", string(msg.Key),
						"error", err,
					)
					continue
				}

				if err := c.reader.CommitMessages(ctx, msg); err != nil {
					c.logger.Error("Failed to commit offset after processing",
						"partition", msg.Partition,
						"offset", msg.Offset,
						"key", string(msg.Key),
						"error", err,
					)
				}
			}
		}
	}()

	return nil
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
