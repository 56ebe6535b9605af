package coupon

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/database"
	"github.com/Additional-Code/harvest/internal/entity"
	repo "github.com/Additional-Code/harvest/internal/repository/coupon"
	"github.com/Additional-Code/harvest/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/harvest/service/coupon")

// Redemption is the outcome of applying a coupon to one order.
type Redemption struct {
	Code     string
	CouponID int64
	Discount decimal.Decimal
}

// Applied reports whether a coupon was consumed.
func (r Redemption) Applied() bool {
	return r.CouponID != 0
}

// CreateInput describes a new coupon.
type CreateInput struct {
	Code           string
	Description    string
	DiscountType   entity.DiscountType
	DiscountValue  decimal.Decimal
	MinOrderAmount decimal.Decimal
	MaxDiscount    decimal.NullDecimal
	ValidFrom      time.Time
	ValidTo        time.Time
	UsageLimit     *int
}

// Service evaluates and administers coupons.
type Service struct {
	repo   *repo.Repository
	logger *zap.Logger
	now    func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:   p.Repository,
		logger: p.Logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Redeem applies code to subtotal inside db. Unknown, expired, exhausted or
// inapplicable coupons yield a zero Redemption and no error. When a discount
// applies, one use is consumed atomically; losing that race to another
// checkout returns a conflict so the caller rolls back.
func (s *Service) Redeem(ctx context.Context, db bun.IDB, code string, subtotal decimal.Decimal, now time.Time) (Redemption, error) {
	code = NormaliseCode(code)
	if code == "" {
		return Redemption{Discount: decimal.Zero}, nil
	}

	ctx, span := serviceTracer.Start(ctx, "CouponService.Redeem", trace.WithAttributes(attribute.String("coupon.code", code)))
	defer span.End()

	c, err := s.repo.FindRedeemable(ctx, db, code, now)
	if errors.Is(err, repo.ErrNotFound) {
		s.logger.Debug("coupon not applicable", zap.String("code", code))
		return Redemption{Discount: decimal.Zero}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return Redemption{}, err
	}

	discount := Quote(c, subtotal)
	if !discount.IsPositive() {
		return Redemption{Discount: decimal.Zero}, nil
	}

	if err := s.repo.IncrementUsage(ctx, db, c.ID); err != nil {
		if errors.Is(err, repo.ErrExhausted) {
			span.SetStatus(codes.Error, "exhausted")
			return Redemption{}, errorbank.Conflict("coupon is no longer available",
				errorbank.WithCause(err), errorbank.WithDetail("coupon_code", code))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "increment failed")
		return Redemption{}, err
	}

	return Redemption{Code: c.Code, CouponID: c.ID, Discount: discount}, nil
}

// List returns every coupon.
func (s *Service) List(ctx context.Context) ([]*entity.Coupon, error) {
	ctx, span := serviceTracer.Start(ctx, "CouponService.List")
	defer span.End()

	coupons, err := s.repo.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load coupons", errorbank.WithCause(err))
	}
	return coupons, nil
}

// Create validates and stores a new coupon.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Coupon, error) {
	ctx, span := serviceTracer.Start(ctx, "CouponService.Create")
	defer span.End()

	c, err := s.build(in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errorbank.Conflict("coupon code already exists", errorbank.WithDetail("code", c.Code))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create coupon", errorbank.WithCause(err))
	}
	return c, nil
}

// SetActive enables or disables a coupon and returns its new state.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) (*entity.Coupon, error) {
	ctx, span := serviceTracer.Start(ctx, "CouponService.SetActive", trace.WithAttributes(attribute.Int64("coupon.id", id)))
	defer span.End()

	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("coupon not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to update coupon", errorbank.WithCause(err))
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errorbank.Internal("failed to reload coupon", errorbank.WithCause(err))
	}
	return c, nil
}

func (s *Service) build(in CreateInput) (*entity.Coupon, error) {
	code := NormaliseCode(in.Code)
	if code == "" {
		return nil, errorbank.BadRequest("code is required")
	}
	if in.DiscountType != entity.DiscountPercentage && in.DiscountType != entity.DiscountFixed {
		return nil, errorbank.BadRequest("discount type must be percentage or fixed")
	}
	if !in.DiscountValue.IsPositive() {
		return nil, errorbank.BadRequest("discount value must be positive")
	}
	if in.DiscountType == entity.DiscountPercentage && in.DiscountValue.GreaterThan(hundred) {
		return nil, errorbank.BadRequest("percentage discount cannot exceed 100")
	}
	if in.MinOrderAmount.IsNegative() {
		return nil, errorbank.BadRequest("minimum order amount cannot be negative")
	}
	if in.UsageLimit != nil && *in.UsageLimit < 1 {
		return nil, errorbank.BadRequest("usage limit must be at least 1")
	}

	now := s.now()
	from, to := in.ValidFrom.UTC(), in.ValidTo.UTC()
	if from.IsZero() {
		from = now
	}
	if to.IsZero() || !to.After(from) {
		return nil, errorbank.BadRequest("validity window must end after it starts")
	}

	maxDiscount := in.MaxDiscount
	if in.DiscountType == entity.DiscountFixed {
		maxDiscount = decimal.NullDecimal{}
	}

	return &entity.Coupon{
		Code:           code,
		Description:    in.Description,
		DiscountType:   in.DiscountType,
		DiscountValue:  in.DiscountValue,
		MinOrderAmount: in.MinOrderAmount,
		MaxDiscount:    maxDiscount,
		ValidFrom:      from,
		ValidTo:        to,
		UsageLimit:     in.UsageLimit,
		IsActive:       true,
		CreatedAt:      now,
	}, nil
}
