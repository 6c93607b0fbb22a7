package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	topicReadAttempts = 5
	topicReadBackoff  = 2 * time.Second
)

// ensureTopic makes sure a topic exists before a producer starts writing to
// it. Partition reads are retried because a broker that just came up in the
// compose environment answers transient errors for a few seconds. Creating a
// topic that appeared in the meantime is tolerated.
func ensureTopic(conn *kafka.Conn, topicName string, numPartitions int, replicationFactor int, log *slog.Logger) error {
	var partitions []kafka.Partition
	var err error

	for attempt := 1; attempt <= topicReadAttempts; attempt++ {
		partitions, err = conn.ReadPartitions(topicName)
		if err == nil {
			break
		}
		log.Warn("Failed to read topic partitions, retrying",
			"topic", topicName,
			"attempt", attempt,
			"error", err)
		time.Sleep(topicReadBackoff)
	}

	if len(partitions) > 0 {
		log.Info("Kafka topic exists", "topic", topicName, "partitions", len(partitions))
		return nil
	}

	if numPartitions <= 0 {
		numPartitions = 1
	}
	if replicationFactor <= 0 {
		replicationFactor = 1
	}

	log.Info("Creating Kafka topic",
		"topic", topicName,
		"partitions", numPartitions,
		"replication_factor", replicationFactor,
		"last_read_error", err)

	createErr := conn.CreateTopics(kafka.TopicConfig{
		Topic:             topicName,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	})
	if createErr != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topicName, createErr)
	}

	log.Info("Created Kafka topic", "topic", topicName)
	return nil
}
