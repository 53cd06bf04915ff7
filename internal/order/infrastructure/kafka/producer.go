package kafka

import (
	"github.com/segmentio/kafka-go"
)

// NewWriter builds the producer used by the outbox relay. RequireAll keeps
// the at-least-once guarantee: a write is acknowledged only once replicated.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
}
