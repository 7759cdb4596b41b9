// README: Kafka writer for the customer notification request topic.
package infra

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewKafkaWriter returns a writer that hashes on message key, so one order's requests keep
// their order within a partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}
