package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/entity"
	"github.com/Additional-Code/harvest/internal/logger"
	"github.com/Additional-Code/harvest/internal/realtime"
	repo "github.com/Additional-Code/harvest/internal/repository/order"
	"github.com/Additional-Code/harvest/internal/service/notification"
	"github.com/Additional-Code/harvest/pkg/errorbank"
)

// TransitionInput describes a requested status change.
type TransitionInput struct {
	Status      string
	Location    string
	Description string
}

type authorizer func(actor auth.Actor, order *entity.Order, target entity.OrderStatus) error

type transition struct {
	order *entity.Order
	from  entity.OrderStatus
	event *entity.TrackingEvent
}

// CanTransition reports whether an order in from may move to to. Orders only
// move forward along the fulfilment path, possibly skipping steps, and any
// non-terminal order may be cancelled.
func CanTransition(from, to entity.OrderStatus) bool {
	if from.Terminal() || !to.Valid() || from == to {
		return false
	}
	if to == entity.StatusCancelled {
		return true
	}
	return to.Rank() > from.Rank()
}

func cancellableByBuyer(status entity.OrderStatus) bool {
	return status == entity.StatusPending || status == entity.StatusConfirmed
}

// UpdateStatus applies an operator's status change to an order.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Actor, id int64, in TransitionInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status", in.Status),
	))
	defer span.End()

	target := entity.OrderStatus(strings.ToLower(strings.TrimSpace(in.Status)))
	if !target.Valid() {
		return nil, errorbank.BadRequest("invalid status", errorbank.WithDetail("status", in.Status))
	}
	in.Location = strings.TrimSpace(in.Location)
	in.Description = strings.TrimSpace(in.Description)

	return s.transition(ctx, span, actor, id, target, in, authorizeTransition)
}

// Cancel cancels an order on behalf of its buyer. Operators cancel through
// UpdateStatus.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Cancel", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	return s.transition(ctx, span, actor, id, entity.StatusCancelled, TransitionInput{
		Description: "Order cancelled by customer",
	}, authorizeBuyerCancel)
}

func (s *Service) transition(ctx context.Context, span trace.Span, actor auth.Actor, id int64, target entity.OrderStatus, in TransitionInput, authorize authorizer) (*entity.Order, error) {
	var result transition
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		order, err := s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errorbank.NotFound("order not found", errorbank.WithCause(err))
			}
			return err
		}
		if err := authorize(actor, order, target); err != nil {
			return err
		}
		if !CanTransition(order.Status, target) {
			return errorbank.BadRequest(
				fmt.Sprintf("cannot change order status from %s to %s", order.Status, target),
				errorbank.WithCause(ErrInvalidTransition),
				errorbank.WithDetails(map[string]any{"from": order.Status, "to": target}),
			)
		}

		now := s.now()
		from := order.Status
		if err := s.repo.UpdateStatus(ctx, tx, order.ID, from, target, now); err != nil {
			if errors.Is(err, repo.ErrStaleStatus) {
				return errorbank.Conflict("order was updated concurrently, retry", errorbank.WithCause(err))
			}
			return err
		}

		event := &entity.TrackingEvent{
			OrderID:     order.ID,
			Status:      string(target),
			Location:    defaultString(in.Location, s.orders.TransitLocation),
			Description: defaultString(in.Description, fmt.Sprintf("Order status updated to %s", target)),
			CreatedAt:   now,
		}
		if err := s.repo.AppendTracking(ctx, tx, event); err != nil {
			return err
		}

		if target == entity.StatusCancelled {
			for _, item := range order.Items {
				if err := s.products.RestoreStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
		}

		order.Status = target
		order.UpdatedAt = now
		order.Version++
		result = transition{order: order, from: from, event: event}
		return nil
	})
	if err != nil {
		var appErr *errorbank.AppError
		if errors.As(err, &appErr) {
			span.SetStatus(codes.Error, string(appErr.Kind()))
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction failed")
		return nil, errorbank.Internal("failed to update order status", errorbank.WithCause(err))
	}

	s.logger.Info("order status changed", append(logger.OrderFields(result.order.ID, result.order.Number),
		zap.String("from", string(result.from)),
		zap.String("to", string(target)),
		zap.Int64("actor_id", actor.UserID),
	)...)

	s.afterTransition(ctx, result)
	return result.order, nil
}

func authorizeTransition(actor auth.Actor, order *entity.Order, target entity.OrderStatus) error {
	switch {
	case actor.IsAdmin():
		return nil
	case actor.IsFarmer() && order.HasFarmer(actor.UserID):
		return nil
	case actor.Is(order.BuyerID):
		if target != entity.StatusCancelled {
			return errorbank.Forbidden("buyers may only cancel their orders")
		}
		return authorizeBuyerCancel(actor, order, target)
	default:
		return errorbank.Forbidden("not allowed to update this order")
	}
}

func authorizeBuyerCancel(actor auth.Actor, order *entity.Order, _ entity.OrderStatus) error {
	if !actor.Is(order.BuyerID) {
		return errorbank.Forbidden("only the buyer can cancel this order")
	}
	if !cancellableByBuyer(order.Status) {
		return errorbank.BadRequest("order cannot be cancelled at this stage",
			errorbank.WithCause(ErrInvalidTransition),
			errorbank.WithDetail("status", order.Status))
	}
	return nil
}

func (s *Service) afterTransition(ctx context.Context, t transition) {
	ctx, cancel := s.sideEffectContext(ctx)
	defer cancel()

	order := t.order
	s.evict(ctx, order.ID)

	s.metrics.StatusTransition(ctx, string(order.Status))
	if order.Status == entity.StatusCancelled {
		s.metrics.OrderCancelled(ctx)
	}

	s.notifier.Notify(ctx, notification.Notice{
		UserID:   order.BuyerID,
		Title:    "Order Status Updated",
		Message:  fmt.Sprintf("Your order #%s is now %s", order.Number, order.Status),
		Category: notification.CategoryOrder,
		Link:     trackingLink(order.ID),
	})

	s.pushStatusChange(ctx, realtime.StatusChange{
		OrderID:     order.ID,
		Status:      string(order.Status),
		Location:    t.event.Location,
		Description: t.event.Description,
		Timestamp:   t.event.CreatedAt,
	})

	s.publishEvent(ctx, EventOrderStatusChanged, OrderEvent{
		ID:             order.ID,
		Number:         order.Number,
		BuyerID:        order.BuyerID,
		Status:         string(order.Status),
		PreviousStatus: string(t.from),
		FinalAmount:    order.FinalAmount,
		FarmerIDs:      farmerIDs(order.Items),
		OccurredAt:     order.UpdatedAt,
	})
}

func (s *Service) pushStatusChange(ctx context.Context, change realtime.StatusChange) {
	if s.broker == nil {
		return
	}
	room := realtime.OrderRoom(change.OrderID)
	pubCtx, cancel := context.WithTimeout(ctx, s.publishTimeout())
	defer cancel()
	if err := s.broker.Publish(pubCtx, room, realtime.Event{Name: realtime.EventOrderStatusChanged, Data: change}); err != nil {
		s.logger.Warn("realtime publish failed", zap.String("room", room), zap.Error(err))
	}
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
