package order

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/config"
	"github.com/Additional-Code/harvest/internal/messaging"
	"github.com/Additional-Code/harvest/internal/observability"
	ordersvc "github.com/Additional-Code/harvest/internal/service/order"
	"github.com/Additional-Code/harvest/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/harvest/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(func(svc *ordersvc.Service) Invalidator { return svc }),
	fx.Provide(
		fx.Annotate(
			NewRegistration,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// Invalidator drops cached order projections.
type Invalidator interface {
	Invalidate(ctx context.Context, id int64)
}

// Handler consumes order domain events.
type Handler struct {
	orders  Invalidator
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewHandler constructs an order event Handler.
func NewHandler(orders Invalidator, metrics *observability.Metrics, logger *zap.Logger) *Handler {
	return &Handler{orders: orders, metrics: metrics, logger: logger}
}

// NewRegistration binds the handler to the orders topic.
func NewRegistration(orders Invalidator, metrics *observability.Metrics, logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: NewHandler(orders, metrics, logger).Handle,
	}
}

// Handle decodes one order event, drops the stale cache entry and records it.
// Undecodable payloads are logged and acknowledged so they do not block the
// partition.
func (h *Handler) Handle(ctx context.Context, msg messaging.Message) error {
	ctx, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
		attribute.String("messaging.topic", msg.Topic),
		attribute.Int64("messaging.offset", msg.Offset),
	))
	defer span.End()

	eventType, event, err := ordersvc.DecodeEvent(msg)
	if err != nil {
		h.logger.Error("failed to decode order event", zap.Int64("offset", msg.Offset), zap.Error(err))

		span.RecordError(err)
		span.SetStatus(codes.Error, "decode error")
		return nil
	}
	span.SetAttributes(attribute.String("event.type", eventType), attribute.Int64("order.id", event.ID))

	switch eventType {
	case ordersvc.EventOrderCreated, ordersvc.EventOrderStatusChanged:
	default:
		h.logger.Warn("unknown order event type", zap.String("type", eventType), zap.Int64("order_id", event.ID))
		return nil
	}

	h.orders.Invalidate(ctx, event.ID)
	h.metrics.EventConsumed(ctx, eventType)

	fields := []zap.Field{
		zap.String("type", eventType),
		zap.Int64("id", event.ID),
		zap.String("number", event.Number),
		zap.String("status", event.Status),
	}
	if event.PreviousStatus != "" {
		fields = append(fields, zap.String("previous_status", event.PreviousStatus))
	}
	h.logger.Info("order event processed", fields...)

	return nil
}
