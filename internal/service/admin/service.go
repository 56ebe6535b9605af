package admin

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/entity"
	orderrepo "github.com/Additional-Code/harvest/internal/repository/order"
	productrepo "github.com/Additional-Code/harvest/internal/repository/product"
	userrepo "github.com/Additional-Code/harvest/internal/repository/user"
	"github.com/Additional-Code/harvest/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/harvest/service/admin")

const (
	highlightLimit  = 10
	revenueMonths   = 12
	defaultPageSize = 50
	maxPageSize     = 200
)

// MonthRevenue is the revenue of one calendar month (UTC).
type MonthRevenue struct {
	Month   string
	Revenue decimal.Decimal
	Orders  int
}

// Stats is the marketplace overview shown to administrators.
type Stats struct {
	TotalUsers     int
	TotalProducts  int
	TotalOrders    int
	TotalRevenue   decimal.Decimal
	OrdersByStatus map[entity.OrderStatus]int
	RecentOrders   []*entity.Order
	TopProducts    []*entity.Product
	MonthlyRevenue []MonthRevenue
}

// UserQuery narrows the user listing.
type UserQuery struct {
	Role   string
	Limit  int
	Offset int
}

// Service reports on and moderates the marketplace.
type Service struct {
	users    *userrepo.Repository
	products *productrepo.Repository
	orders   *orderrepo.Repository
	logger   *zap.Logger
	now      func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Users    *userrepo.Repository
	Products *productrepo.Repository
	Orders   *orderrepo.Repository
	Logger   *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		users:    p.Users,
		products: p.Products,
		orders:   p.Orders,
		logger:   p.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Stats gathers user, product and order figures. Revenue excludes
// cancelled orders.
func (s *Service) Stats(ctx context.Context, actor auth.Actor) (Stats, error) {
	ctx, span := serviceTracer.Start(ctx, "AdminService.Stats")
	defer span.End()

	if !actor.IsAdmin() {
		return Stats{}, errorbank.Forbidden("admin access required")
	}

	fail := func(what string, err error) (Stats, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return Stats{}, errorbank.Internal("failed to load "+what, errorbank.WithCause(err))
	}

	users, err := s.users.CountActive(ctx)
	if err != nil {
		return fail("users", err)
	}
	products, err := s.products.CountActive(ctx)
	if err != nil {
		return fail("products", err)
	}
	overview, err := s.orders.Overview(ctx)
	if err != nil {
		return fail("orders", err)
	}
	recent, err := s.orders.ListAll(ctx, orderrepo.Filter{}, orderrepo.Page{Limit: highlightLimit})
	if err != nil {
		return fail("recent orders", err)
	}
	top, err := s.products.TopSelling(ctx, highlightLimit)
	if err != nil {
		return fail("top products", err)
	}

	now := s.now()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(revenueMonths - 1), 0)
	sales, err := s.orders.SalesSince(ctx, since)
	if err != nil {
		return fail("revenue", err)
	}

	return Stats{
		TotalUsers:     users,
		TotalProducts:  products,
		TotalOrders:    overview.TotalOrders,
		TotalRevenue:   overview.Revenue,
		OrdersByStatus: overview.ByStatus,
		RecentOrders:   recent,
		TopProducts:    top,
		MonthlyRevenue: monthly(sales),
	}, nil
}

// monthly buckets sales by UTC month, newest month first.
func monthly(sales []orderrepo.Sale) []MonthRevenue {
	var out []MonthRevenue
	for i := len(sales) - 1; i >= 0; i-- {
		month := sales[i].CreatedAt.UTC().Format("2006-01")
		if n := len(out); n > 0 && out[n-1].Month == month {
			out[n-1].Revenue = out[n-1].Revenue.Add(sales[i].FinalAmount)
			out[n-1].Orders++
			continue
		}
		out = append(out, MonthRevenue{Month: month, Revenue: sales[i].FinalAmount, Orders: 1})
	}
	return out
}

// Users pages through accounts, newest first.
func (s *Service) Users(ctx context.Context, actor auth.Actor, q UserQuery) ([]*entity.User, int, error) {
	ctx, span := serviceTracer.Start(ctx, "AdminService.Users")
	defer span.End()

	if !actor.IsAdmin() {
		return nil, 0, errorbank.Forbidden("admin access required")
	}

	filter := userrepo.Filter{Limit: q.Limit, Offset: q.Offset}
	if role := strings.ToLower(strings.TrimSpace(q.Role)); role != "" {
		filter.Role = entity.Role(role)
		if !filter.Role.Valid() {
			return nil, 0, errorbank.BadRequest("invalid role", errorbank.WithDetail("role", q.Role))
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, 0, errorbank.Internal("failed to list users", errorbank.WithCause(err))
	}
	return users, total, nil
}

// SetUserActive enables or disables an account. Admins cannot disable
// themselves.
func (s *Service) SetUserActive(ctx context.Context, actor auth.Actor, id int64, active bool) (*entity.User, error) {
	ctx, span := serviceTracer.Start(ctx, "AdminService.SetUserActive", trace.WithAttributes(
		attribute.Int64("user.id", id),
		attribute.Bool("user.active", active),
	))
	defer span.End()

	if !actor.IsAdmin() {
		return nil, errorbank.Forbidden("admin access required")
	}
	if actor.Is(id) && !active {
		return nil, errorbank.BadRequest("admins cannot disable their own account")
	}

	if err := s.users.SetActive(ctx, id, active, s.now()); err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, errorbank.NotFound("user not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to update user", errorbank.WithCause(err))
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, errorbank.Internal("failed to reload user", errorbank.WithCause(err))
	}

	s.logger.Info("user status changed",
		zap.Int64("user_id", id),
		zap.Bool("active", active),
		zap.Int64("actor_id", actor.UserID),
	)
	return u, nil
}
