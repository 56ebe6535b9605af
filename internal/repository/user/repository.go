package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/harvest/internal/database"
	"github.com/Additional-Code/harvest/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/harvest/repository/user")

var (
	// ErrNotFound is returned when a user is missing.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
)

// Filter narrows the administrative user listing.
type Filter struct {
	Role   entity.Role
	Limit  int
	Offset int
}

// Repository encapsulates user persistence.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Create inserts a user; emails are stored lower-cased.
func (r *Repository) Create(ctx context.Context, u *entity.User) error {
	ctx, span := repoTracer.Start(ctx, "UserRepository.Create")
	defer span.End()

	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if _, err := r.writer.NewInsert().Model(u).Exec(ctx); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// GetByEmail loads a user by login email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.GetByEmail")
	defer span.End()

	u := new(entity.User)
	err := r.reader.NewSelect().Model(u).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return u, nil
}

// GetByID loads a user by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.GetByID", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	u := new(entity.User)
	err := r.reader.NewSelect().Model(u).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return u, nil
}

// List returns one page of users, newest first, and the total match count.
func (r *Repository) List(ctx context.Context, filter Filter) ([]*entity.User, int, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.List")
	defer span.End()

	var users []*entity.User
	q := r.reader.NewSelect().Model(&users)
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	total, err := q.OrderExpr("created_at DESC, id DESC").ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return users, total, nil
}

// SetActive enables or disables an account.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool, at time.Time) error {
	ctx, span := repoTracer.Start(ctx, "UserRepository.SetActive", trace.WithAttributes(
		attribute.Int64("user.id", id),
		attribute.Bool("user.active", active),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.User)(nil)).
		Set("is_active = ?", active).
		Set("updated_at = ?", at).
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

// CountActive returns how many accounts are enabled.
func (r *Repository) CountActive(ctx context.Context) (int, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.CountActive")
	defer span.End()

	n, err := r.reader.NewSelect().Model((*entity.User)(nil)).Where("is_active = ?", true).Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
	}
	return n, err
}
