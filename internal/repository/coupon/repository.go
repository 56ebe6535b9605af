package coupon

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/harvest/internal/database"
	"github.com/Additional-Code/harvest/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/harvest/repository/coupon")

var (
	// ErrNotFound is returned when no redeemable coupon matches.
	ErrNotFound = errors.New("coupon not found")
	// ErrExhausted is returned when the guarded usage increment matched no row.
	ErrExhausted = errors.New("coupon usage limit reached")
)

// Repository encapsulates coupon persistence.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// FindRedeemable returns the active coupon for code whose validity window
// contains now and whose usage limit has not been reached.
func (r *Repository) FindRedeemable(ctx context.Context, db bun.IDB, code string, now time.Time) (*entity.Coupon, error) {
	ctx, span := repoTracer.Start(ctx, "CouponRepository.FindRedeemable", trace.WithAttributes(attribute.String("coupon.code", code)))
	defer span.End()

	if db == nil {
		db = r.reader
	}

	coupon := new(entity.Coupon)
	err := db.NewSelect().
		Model(coupon).
		Where("code = ?", code).
		Where("is_active = ?", true).
		Where("valid_from <= ?", now).
		Where("valid_to >= ?", now).
		Where("(usage_limit IS NULL OR used_count < usage_limit)").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return coupon, nil
}

// IncrementUsage consumes one redemption, guarded by the usage limit.
func (r *Repository) IncrementUsage(ctx context.Context, db bun.IDB, id int64) error {
	ctx, span := repoTracer.Start(ctx, "CouponRepository.IncrementUsage", trace.WithAttributes(attribute.Int64("coupon.id", id)))
	defer span.End()

	res, err := db.NewUpdate().
		Model((*entity.Coupon)(nil)).
		Set("used_count = used_count + 1").
		Where("id = ?", id).
		Where("(usage_limit IS NULL OR used_count < usage_limit)").
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		span.SetStatus(codes.Error, "exhausted")
		return ErrExhausted
	}
	return nil
}

// GetByID loads a coupon regardless of its state.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Coupon, error) {
	ctx, span := repoTracer.Start(ctx, "CouponRepository.GetByID", trace.WithAttributes(attribute.Int64("coupon.id", id)))
	defer span.End()

	coupon := new(entity.Coupon)
	err := r.reader.NewSelect().Model(coupon).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return coupon, nil
}

// List returns every coupon, newest first.
func (r *Repository) List(ctx context.Context) ([]*entity.Coupon, error) {
	ctx, span := repoTracer.Start(ctx, "CouponRepository.List")
	defer span.End()

	var coupons []*entity.Coupon
	if err := r.reader.NewSelect().Model(&coupons).Order("created_at DESC", "id DESC").Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return coupons, nil
}

// Create inserts a coupon.
func (r *Repository) Create(ctx context.Context, coupon *entity.Coupon) error {
	ctx, span := repoTracer.Start(ctx, "CouponRepository.Create", trace.WithAttributes(attribute.String("coupon.code", coupon.Code)))
	defer span.End()

	if _, err := r.writer.NewInsert().Model(coupon).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// SetActive toggles whether a coupon may be redeemed.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	ctx, span := repoTracer.Start(ctx, "CouponRepository.SetActive", trace.WithAttributes(
		attribute.Int64("coupon.id", id),
		attribute.Bool("coupon.active", active),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Coupon)(nil)).
		Set("is_active = ?", active).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
