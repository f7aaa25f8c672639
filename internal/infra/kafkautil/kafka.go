package kafkautil

import (
	"github.com/segmentio/kafka-go"
)

// NewWriter returns a writer bound to topic. Messages with the same key
// land on the same partition.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
	}
}
