package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	orderdom "github.com/storefront/orderflow/internal/order/domain"
	"github.com/storefront/orderflow/internal/shipment/application"
	"github.com/storefront/orderflow/pkg/idempotency"
	"github.com/storefront/orderflow/pkg/tracing"
)

// Consumer receives OrderConfirmed events. The event is a wake-up hint only:
// the handler re-derives order state through the read boundary, so both lost
// and duplicated deliveries are harmless. Duplicates are additionally
// filtered through the idempotency store to keep the logs quiet.
type Consumer struct {
	log    *slog.Logger
	reader *kafka.Reader
	svc    *application.Service
	idem   *idempotency.Store
	tracer trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, svc *application.Service, idem *idempotency.Store) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:    log,
		reader: r,
		svc:    svc,
		idem:   idem,
		tracer: otel.Tracer("shipment-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		key := c.idem.MessageKey(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.idem.Seen(ctx, key)
		if err != nil {
			c.log.Error("idempotency check failed", "err", err)
			continue
		}
		if seen {
			c.log.Info("duplicate message skipped", "key", key)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}
		if eventType(msg.Headers) != orderdom.EventOrderConfirmed {
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderConfirmed")

		var event orderdom.OrderConfirmed
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.log.Error("unmarshal failed", "err", err)
			span.End()
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		if err := c.svc.HandleOrderConfirmed(msgCtx, event.OrderID); err != nil {
			c.log.Error("order confirmed hint failed", "order_id", event.OrderID, "err", err)
		}
		span.End()
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

func eventType(headers []kafka.Header) string {
	for _, h := range headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
