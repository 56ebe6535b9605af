package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/cache"
	"github.com/Additional-Code/harvest/internal/entity"
	repo "github.com/Additional-Code/harvest/internal/repository/order"
	"github.com/Additional-Code/harvest/pkg/errorbank"
)

// PageRequest asks for one page of an order listing.
type PageRequest struct {
	Cursor string
	Limit  int
}

// OrderPage is one page of orders, newest first. NextCursor is empty on the
// last page.
type OrderPage struct {
	Orders     []*entity.Order
	NextCursor string
}

// AdminFilter narrows the administrative listing.
type AdminFilter struct {
	Status string
	From   time.Time
	To     time.Time
}

// Dashboard summarises a farmer's shop.
type Dashboard struct {
	TotalProducts int
	TotalOrders   int
	ActiveOrders  int
	TotalSales    decimal.Decimal
}

// Get returns one order if the actor may see it. Farmers only see their own
// line items.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}

	switch {
	case actor.IsAdmin(), actor.Is(order.BuyerID):
		return order, nil
	case actor.IsFarmer() && order.HasFarmer(actor.UserID):
		return scopeToFarmer(order, actor.UserID), nil
	default:
		return nil, errorbank.Forbidden("not allowed to view this order")
	}
}

func (s *Service) load(ctx context.Context, span trace.Span, id int64) (*entity.Order, error) {
	if order, err := s.getFromCache(ctx, id); err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.repo.GetByID(ctx, id, 0)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found", errorbank.WithCause(err))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	s.storeInCache(ctx, order)
	return order, nil
}

// ListForBuyer pages through the orders placed by buyerID.
func (s *Service) ListForBuyer(ctx context.Context, actor auth.Actor, buyerID int64, req PageRequest) (OrderPage, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListForBuyer", trace.WithAttributes(attribute.Int64("buyer.id", buyerID)))
	defer span.End()

	if !actor.SelfOrAdmin(buyerID) {
		return OrderPage{}, errorbank.Forbidden("cannot list another user's orders")
	}
	return s.list(span, req, func(page repo.Page) ([]*entity.Order, error) {
		return s.repo.ListByBuyer(ctx, buyerID, page)
	})
}

// ListForFarmer pages through orders containing farmerID's products, with
// only that farmer's line items loaded.
func (s *Service) ListForFarmer(ctx context.Context, actor auth.Actor, farmerID int64, req PageRequest) (OrderPage, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListForFarmer", trace.WithAttributes(attribute.Int64("farmer.id", farmerID)))
	defer span.End()

	if !actor.IsAdmin() && !(actor.IsFarmer() && actor.Is(farmerID)) {
		return OrderPage{}, errorbank.Forbidden("cannot list another farmer's orders")
	}
	return s.list(span, req, func(page repo.Page) ([]*entity.Order, error) {
		return s.repo.ListByFarmer(ctx, farmerID, page)
	})
}

// ListAll pages through every order. Admin only.
func (s *Service) ListAll(ctx context.Context, actor auth.Actor, filter AdminFilter, req PageRequest) (OrderPage, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListAll", trace.WithAttributes(attribute.String("order.status", filter.Status)))
	defer span.End()

	if !actor.IsAdmin() {
		return OrderPage{}, errorbank.Forbidden("admin access required")
	}

	var f repo.Filter
	if status := strings.ToLower(strings.TrimSpace(filter.Status)); status != "" {
		f.Status = entity.OrderStatus(status)
		if !f.Status.Valid() {
			return OrderPage{}, errorbank.BadRequest("invalid status", errorbank.WithDetail("status", filter.Status))
		}
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return OrderPage{}, errorbank.BadRequest("from must be before to")
	}
	f.From, f.To = filter.From, filter.To

	return s.list(span, req, func(page repo.Page) ([]*entity.Order, error) {
		return s.repo.ListAll(ctx, f, page)
	})
}

func (s *Service) list(span trace.Span, req PageRequest, fetch func(repo.Page) ([]*entity.Order, error)) (OrderPage, error) {
	beforeID, err := decodeCursor(req.Cursor)
	if err != nil {
		return OrderPage{}, errorbank.BadRequest("invalid cursor", errorbank.WithCause(err))
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.orders.PageSize
	}
	if limit > s.orders.MaxPageSize {
		limit = s.orders.MaxPageSize
	}

	// One extra row tells whether another page exists.
	orders, err := fetch(repo.Page{BeforeID: beforeID, Limit: limit + 1})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return OrderPage{}, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}

	page := OrderPage{Orders: orders}
	if len(orders) > limit {
		page.Orders = orders[:limit]
		page.NextCursor = encodeCursor(page.Orders[limit-1].ID)
	}
	return page, nil
}

// Dashboard reports a farmer's product count and sales figures.
func (s *Service) Dashboard(ctx context.Context, actor auth.Actor, farmerID int64) (Dashboard, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Dashboard", trace.WithAttributes(attribute.Int64("farmer.id", farmerID)))
	defer span.End()

	if !actor.IsAdmin() && !(actor.IsFarmer() && actor.Is(farmerID)) {
		return Dashboard{}, errorbank.Forbidden("cannot view another farmer's dashboard")
	}

	products, err := s.products.CountByFarmer(ctx, farmerID)
	if err != nil {
		span.RecordError(err)
		return Dashboard{}, errorbank.Internal("failed to count products", errorbank.WithCause(err))
	}
	stats, err := s.repo.StatsForFarmer(ctx, farmerID)
	if err != nil {
		span.RecordError(err)
		return Dashboard{}, errorbank.Internal("failed to load sales", errorbank.WithCause(err))
	}

	return Dashboard{
		TotalProducts: products,
		TotalOrders:   stats.TotalOrders,
		ActiveOrders:  stats.ActiveOrders,
		TotalSales:    stats.TotalSales,
	}, nil
}

// scopeToFarmer returns a copy of order holding only farmerID's line items.
func scopeToFarmer(order *entity.Order, farmerID int64) *entity.Order {
	scoped := *order
	scoped.Items = make([]*entity.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		if item.FarmerID == farmerID {
			scoped.Items = append(scoped.Items, item)
		}
	}
	return &scoped
}
