package notification

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/harvest/internal/database"
	"github.com/Additional-Code/harvest/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/harvest/repository/notification")

// ErrNotFound is returned when no notification owned by the caller matches.
var ErrNotFound = errors.New("notification not found")

// Repository encapsulates notification persistence.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Create inserts a notification row.
func (r *Repository) Create(ctx context.Context, n *entity.Notification) error {
	ctx, span := repoTracer.Start(ctx, "NotificationRepository.Create", trace.WithAttributes(attribute.Int64("user.id", n.UserID)))
	defer span.End()

	if _, err := r.writer.NewInsert().Model(n).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// ListByUser returns a user's notifications, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*entity.Notification, error) {
	ctx, span := repoTracer.Start(ctx, "NotificationRepository.ListByUser", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	var out []*entity.Notification
	err := r.reader.NewSelect().
		Model(&out).
		Where("user_id = ?", userID).
		Order("created_at DESC", "id DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return out, nil
}

// CountUnread returns how many unread notifications a user has.
func (r *Repository) CountUnread(ctx context.Context, userID int64) (int, error) {
	ctx, span := repoTracer.Start(ctx, "NotificationRepository.CountUnread", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	n, err := r.reader.NewSelect().
		Model((*entity.Notification)(nil)).
		Where("user_id = ?", userID).
		Where("is_read = ?", false).
		Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
	}
	return n, err
}

// MarkRead flags one notification as read when it belongs to userID.
func (r *Repository) MarkRead(ctx context.Context, id, userID int64) error {
	ctx, span := repoTracer.Start(ctx, "NotificationRepository.MarkRead", trace.WithAttributes(attribute.Int64("notification.id", id)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Notification)(nil)).
		Set("is_read = ?", true).
		Where("id = ?", id).
		Where("user_id = ?", userID).
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

// MarkAllRead flags every unread notification of userID and returns the count changed.
func (r *Repository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "NotificationRepository.MarkAllRead", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Notification)(nil)).
		Set("is_read = ?", true).
		Where("user_id = ?", userID).
		Where("is_read = ?", false).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes one notification when it belongs to userID.
func (r *Repository) Delete(ctx context.Context, id, userID int64) error {
	ctx, span := repoTracer.Start(ctx, "NotificationRepository.Delete", trace.WithAttributes(attribute.Int64("notification.id", id)))
	defer span.End()

	res, err := r.writer.NewDelete().
		Model((*entity.Notification)(nil)).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
