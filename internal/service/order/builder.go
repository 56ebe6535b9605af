package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/entity"
	"github.com/Additional-Code/harvest/internal/logger"
	productrepo "github.com/Additional-Code/harvest/internal/repository/product"
	"github.com/Additional-Code/harvest/internal/service/coupon"
	"github.com/Additional-Code/harvest/internal/service/notification"
	"github.com/Additional-Code/harvest/pkg/errorbank"
)

const (
	maxOrderLines   = 100
	maxLineQuantity = 10000
)

// LineRequest is one requested product and quantity.
type LineRequest struct {
	ProductID int64
	Quantity  int
}

// PlaceInput is a buyer's checkout request.
type PlaceInput struct {
	Items                []LineRequest
	DeliveryAddress      string
	DeliveryInstructions string
	PaymentMethod        string
	CouponCode           string
}

type placement struct {
	lines        []LineRequest
	address      string
	instructions string
	method       entity.PaymentMethod
	couponCode   string
}

// Place prices the cart against current catalogue prices, applies delivery
// and coupon rules, and persists the order with its line items, stock
// decrements and initial tracking event in one transaction. Nothing is
// written unless every line can be fulfilled.
func (s *Service) Place(ctx context.Context, actor auth.Actor, in PlaceInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Place", trace.WithAttributes(attribute.Int64("buyer.id", actor.UserID)))
	defer span.End()

	req, err := normalisePlacement(in)
	if err != nil {
		return nil, err
	}

	var (
		placed     *entity.Order
		redemption coupon.Redemption
	)
	err = s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		order, red, err := s.build(ctx, tx, actor.UserID, req)
		if err != nil {
			return err
		}
		placed, redemption = order, red
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
		return nil, errorbank.Internal("failed to place order", errorbank.WithCause(err))
	}

	span.SetAttributes(attribute.Int64("order.id", placed.ID), attribute.String("order.number", placed.Number))
	s.logger.Info("order placed", append(logger.OrderFields(placed.ID, placed.Number),
		zap.Int64("buyer_id", placed.BuyerID),
		zap.String("final_amount", placed.FinalAmount.StringFixed(2)),
	)...)

	s.afterPlace(ctx, placed, redemption)
	return placed, nil
}

func (s *Service) build(ctx context.Context, tx bun.Tx, buyerID int64, req placement) (*entity.Order, coupon.Redemption, error) {
	now := s.now()

	ids := make([]int64, 0, len(req.lines))
	for _, line := range req.lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.products.GetMany(ctx, tx, ids)
	if err != nil {
		return nil, coupon.Redemption{}, err
	}

	subtotal := decimal.Zero
	items := make([]*entity.OrderItem, 0, len(req.lines))
	for _, line := range req.lines {
		p, ok := products[line.ProductID]
		if !ok || !p.IsActive {
			return nil, coupon.Redemption{}, errorbank.BadRequest(
				fmt.Sprintf("product %d is not available", line.ProductID),
				errorbank.WithCause(productrepo.ErrUnavailable),
				errorbank.WithDetail("product_id", line.ProductID),
			)
		}
		if p.Quantity < line.Quantity {
			return nil, coupon.Redemption{}, insufficientStock(p, line.Quantity, p.Quantity)
		}

		total := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(total)
		items = append(items, &entity.OrderItem{
			ProductID:  p.ID,
			FarmerID:   p.FarmerID,
			Quantity:   line.Quantity,
			UnitPrice:  p.Price,
			TotalPrice: total,
			CreatedAt:  now,
			Product:    p,
		})
	}

	delivery := s.pricing.DeliveryCharge(subtotal)
	red, err := s.coupons.Redeem(ctx, tx, req.couponCode, subtotal, now)
	if err != nil {
		return nil, coupon.Redemption{}, err
	}

	order := &entity.Order{
		Number:               newOrderNumber(now),
		BuyerID:              buyerID,
		Subtotal:             subtotal,
		DeliveryCharge:       delivery,
		Discount:             red.Discount,
		FinalAmount:          FinalAmount(subtotal, delivery, red.Discount),
		CouponCode:           red.Code,
		Status:               entity.StatusPending,
		PaymentMethod:        req.method,
		DeliveryAddress:      req.address,
		DeliveryInstructions: req.instructions,
		TrackingID:           newTrackingID(now),
		ExpectedDeliveryDate: now.AddDate(0, 0, s.orders.DeliveryDays),
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
		Items:                items,
	}
	if err := s.repo.Create(ctx, tx, order); err != nil {
		return nil, coupon.Redemption{}, err
	}

	for _, item := range items {
		if err := s.products.DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			if errors.Is(err, productrepo.ErrInsufficientStock) {
				// Validation passed but a concurrent checkout took the stock first.
				return nil, coupon.Redemption{}, errorbank.Conflict(
					fmt.Sprintf("insufficient stock for %s", item.Product.Name),
					errorbank.WithCause(err),
					errorbank.WithDetail("product_id", item.ProductID),
				)
			}
			return nil, coupon.Redemption{}, err
		}
	}

	placedEvent := &entity.TrackingEvent{
		OrderID:     order.ID,
		Status:      "Order Placed",
		Location:    s.orders.DefaultLocation,
		Description: "Your order has been received and is being processed",
		CreatedAt:   now,
	}
	if err := s.repo.AppendTracking(ctx, tx, placedEvent); err != nil {
		return nil, coupon.Redemption{}, err
	}
	order.Tracking = []*entity.TrackingEvent{placedEvent}

	return order, red, nil
}

func (s *Service) afterPlace(ctx context.Context, order *entity.Order, red coupon.Redemption) {
	ctx, cancel := s.sideEffectContext(ctx)
	defer cancel()

	s.metrics.OrderPlaced(ctx, string(order.PaymentMethod))
	if red.Applied() {
		s.metrics.CouponRedeemed(ctx)
	}

	s.notifier.Notify(ctx, notification.Notice{
		UserID:   order.BuyerID,
		Title:    "Order Placed",
		Message:  fmt.Sprintf("Your order #%s has been placed successfully", order.Number),
		Category: notification.CategoryOrder,
		Link:     trackingLink(order.ID),
	})

	s.publishEvent(ctx, EventOrderCreated, OrderEvent{
		ID:          order.ID,
		Number:      order.Number,
		BuyerID:     order.BuyerID,
		Status:      string(order.Status),
		FinalAmount: order.FinalAmount,
		FarmerIDs:   farmerIDs(order.Items),
		OccurredAt:  order.CreatedAt,
	})
}

func insufficientStock(p *entity.Product, requested, available int) error {
	return errorbank.BadRequest(
		fmt.Sprintf("insufficient stock for %s", p.Name),
		errorbank.WithCause(productrepo.ErrInsufficientStock),
		errorbank.WithDetails(map[string]any{
			"product_id": p.ID,
			"requested":  requested,
			"available":  available,
		}),
	)
}

func normalisePlacement(in PlaceInput) (placement, error) {
	if len(in.Items) == 0 {
		return placement{}, errorbank.BadRequest("order must contain at least one item")
	}
	if len(in.Items) > maxOrderLines {
		return placement{}, errorbank.BadRequest(fmt.Sprintf("order cannot contain more than %d items", maxOrderLines))
	}

	merged := make(map[int64]int, len(in.Items))
	lines := make([]LineRequest, 0, len(in.Items))
	for _, item := range in.Items {
		if item.ProductID <= 0 {
			return placement{}, errorbank.BadRequest("productId is required for every item")
		}
		if item.Quantity <= 0 {
			return placement{}, errorbank.BadRequest("quantity must be positive",
				errorbank.WithDetail("product_id", item.ProductID))
		}
		if item.Quantity > maxLineQuantity {
			return placement{}, quantityTooLarge(item.ProductID)
		}
		if idx, seen := merged[item.ProductID]; seen {
			// Both operands are bounded, so the sum cannot wrap.
			if lines[idx].Quantity+item.Quantity > maxLineQuantity {
				return placement{}, quantityTooLarge(item.ProductID)
			}
			lines[idx].Quantity += item.Quantity
			continue
		}
		merged[item.ProductID] = len(lines)
		lines = append(lines, item)
	}

	address := strings.TrimSpace(in.DeliveryAddress)
	if address == "" {
		return placement{}, errorbank.BadRequest("deliveryAddress is required")
	}

	method, err := parsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return placement{}, err
	}

	return placement{
		lines:        lines,
		address:      address,
		instructions: strings.TrimSpace(in.DeliveryInstructions),
		method:       method,
		couponCode:   coupon.NormaliseCode(in.CouponCode),
	}, nil
}

func quantityTooLarge(productID int64) error {
	return errorbank.BadRequest(fmt.Sprintf("quantity cannot exceed %d per product", maxLineQuantity),
		errorbank.WithDetail("product_id", productID))
}

func parsePaymentMethod(raw string) (entity.PaymentMethod, error) {
	switch m := entity.PaymentMethod(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return entity.PaymentCOD, nil
	case entity.PaymentCOD, entity.PaymentOnline, entity.PaymentUPI:
		return m, nil
	default:
		return "", errorbank.BadRequest("paymentMethod must be one of cod, online, upi",
			errorbank.WithDetail("payment_method", raw))
	}
}

func trackingLink(orderID int64) string {
	return fmt.Sprintf("/order-tracking/%d", orderID)
}

func farmerIDs(items []*entity.OrderItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	out := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.FarmerID]; ok {
			continue
		}
		seen[item.FarmerID] = struct{}{}
		out = append(out, item.FarmerID)
	}
	return out
}
