package kafka

import (
	"github.com/segmentio/kafka-go"
)

// NewWriter builds the producer used by the outbox relay. RequireAll keeps
// the published fulfillment notifications as durable as the rows they mirror.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
}
