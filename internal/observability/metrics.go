package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/Additional-Code/harvest"

// Metrics holds the counters of the order workflow.
type Metrics struct {
	ordersPlaced         metric.Int64Counter
	ordersCancelled      metric.Int64Counter
	statusTransitions    metric.Int64Counter
	couponRedemptions    metric.Int64Counter
	notificationsDropped metric.Int64Counter
	eventsConsumed       metric.Int64Counter
}

// NewMetrics registers the workflow counters. A nil manager yields no-op counters.
func NewMetrics(mgr *Manager) (*Metrics, error) {
	meter := mgr.Meter(meterName)

	var (
		m   Metrics
		err error
	)
	if m.ordersPlaced, err = meter.Int64Counter("orders_placed_total",
		metric.WithDescription("Orders committed")); err != nil {
		return nil, err
	}
	if m.ordersCancelled, err = meter.Int64Counter("orders_cancelled_total",
		metric.WithDescription("Orders moved to cancelled")); err != nil {
		return nil, err
	}
	if m.statusTransitions, err = meter.Int64Counter("order_status_transitions_total",
		metric.WithDescription("Committed order status transitions by target status")); err != nil {
		return nil, err
	}
	if m.couponRedemptions, err = meter.Int64Counter("coupon_redemptions_total",
		metric.WithDescription("Coupons consumed by committed orders")); err != nil {
		return nil, err
	}
	if m.notificationsDropped, err = meter.Int64Counter("notifications_dropped_total",
		metric.WithDescription("Notifications abandoned after retry")); err != nil {
		return nil, err
	}
	if m.eventsConsumed, err = meter.Int64Counter("order_events_consumed_total",
		metric.WithDescription("Order domain events processed by workers")); err != nil {
		return nil, err
	}
	return &m, nil
}

// OrderPlaced counts a committed order.
func (m *Metrics) OrderPlaced(ctx context.Context, paymentMethod string) {
	m.ordersPlaced.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", paymentMethod)))
}

// OrderCancelled counts a cancellation.
func (m *Metrics) OrderCancelled(ctx context.Context) {
	m.ordersCancelled.Add(ctx, 1)
}

// StatusTransition counts a committed transition into status.
func (m *Metrics) StatusTransition(ctx context.Context, status string) {
	m.statusTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// CouponRedeemed counts a coupon consumed by an order.
func (m *Metrics) CouponRedeemed(ctx context.Context) {
	m.couponRedemptions.Add(ctx, 1)
}

// NotificationDropped counts a notification that could not be stored.
func (m *Metrics) NotificationDropped(ctx context.Context) {
	m.notificationsDropped.Add(ctx, 1)
}

// EventConsumed counts a processed domain event.
func (m *Metrics) EventConsumed(ctx context.Context, eventType string) {
	m.eventsConsumed.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}
