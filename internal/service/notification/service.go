package notification

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/config"
	"github.com/Additional-Code/harvest/internal/dto"
	"github.com/Additional-Code/harvest/internal/entity"
	"github.com/Additional-Code/harvest/internal/observability"
	"github.com/Additional-Code/harvest/internal/realtime"
	repo "github.com/Additional-Code/harvest/internal/repository/notification"
	"github.com/Additional-Code/harvest/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/harvest/service/notification")

const (
	defaultListLimit = 50
	maxListLimit     = 200
	storeAttempts    = 2
	retryDelay       = 100 * time.Millisecond
)

// CategoryOrder tags notifications about an order.
const CategoryOrder = "order"

// Notice describes a notification to deliver.
type Notice struct {
	UserID   int64
	Title    string
	Message  string
	Category string
	Link     string
}

// Service stores notifications and pushes them to connected clients.
type Service struct {
	repo           *repo.Repository
	broker         realtime.Broker
	metrics        *observability.Metrics
	logger         *zap.Logger
	publishTimeout time.Duration
	now            func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Broker     realtime.Broker
	Metrics    *observability.Metrics
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:           p.Repository,
		broker:         p.Broker,
		metrics:        p.Metrics,
		logger:         p.Logger,
		publishTimeout: p.Config.Realtime.PublishTimeout,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Notify persists n, retrying once, then pushes it to the user's private room.
// Failures are logged and counted but never returned: the stored row is the
// durable record and realtime delivery is best effort.
func (s *Service) Notify(ctx context.Context, n Notice) *entity.Notification {
	ctx, span := serviceTracer.Start(ctx, "NotificationService.Notify", trace.WithAttributes(attribute.Int64("user.id", n.UserID)))
	defer span.End()

	if n.Category == "" {
		n.Category = CategoryOrder
	}
	row := &entity.Notification{
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Category:  n.Category,
		Link:      n.Link,
		CreatedAt: s.now(),
	}

	var err error
	for attempt := 1; attempt <= storeAttempts; attempt++ {
		row.ID = 0
		if err = s.repo.Create(ctx, row); err == nil {
			break
		}
		s.logger.Warn("notification insert failed",
			zap.Int64("user_id", n.UserID), zap.Int("attempt", attempt), zap.Error(err))
		if attempt < storeAttempts {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
			}
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dropped")
		s.logger.Error("notification dropped", zap.Int64("user_id", n.UserID), zap.String("title", n.Title), zap.Error(err))
		s.metrics.NotificationDropped(ctx)
		return nil
	}

	s.push(ctx, realtime.UserRoom(n.UserID), realtime.Event{Name: realtime.EventNotification, Data: dto.FromNotification(row)})
	return row
}

func (s *Service) push(ctx context.Context, room string, event realtime.Event) {
	if s.broker == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.broker.Publish(pubCtx, room, event); err != nil {
		s.logger.Warn("realtime publish failed", zap.String("room", room), zap.String("event", event.Name), zap.Error(err))
	}
}

// List returns a page of userID's notifications, newest first.
func (s *Service) List(ctx context.Context, actor auth.Actor, userID int64, limit, offset int) ([]*entity.Notification, error) {
	ctx, span := serviceTracer.Start(ctx, "NotificationService.List", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	if !actor.SelfOrAdmin(userID) {
		return nil, errorbank.Forbidden("cannot read another user's notifications")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load notifications", errorbank.WithCause(err))
	}
	return items, nil
}

// UnreadCount returns how many of userID's notifications are unread.
func (s *Service) UnreadCount(ctx context.Context, actor auth.Actor, userID int64) (int, error) {
	ctx, span := serviceTracer.Start(ctx, "NotificationService.UnreadCount", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	if !actor.SelfOrAdmin(userID) {
		return 0, errorbank.Forbidden("cannot read another user's notifications")
	}
	n, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return 0, errorbank.Internal("failed to count notifications", errorbank.WithCause(err))
	}
	return n, nil
}

// MarkRead marks one of the actor's notifications as read.
func (s *Service) MarkRead(ctx context.Context, actor auth.Actor, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "NotificationService.MarkRead", trace.WithAttributes(attribute.Int64("notification.id", id)))
	defer span.End()

	if err := s.repo.MarkRead(ctx, id, actor.UserID); err != nil {
		return s.translate(span, err)
	}
	return nil
}

// MarkAllRead marks every notification of userID as read. Only the owner may do this.
func (s *Service) MarkAllRead(ctx context.Context, actor auth.Actor, userID int64) (int64, error) {
	ctx, span := serviceTracer.Start(ctx, "NotificationService.MarkAllRead", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	if !actor.Is(userID) {
		return 0, errorbank.Forbidden("cannot modify another user's notifications")
	}
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, s.translate(span, err)
	}
	return n, nil
}

// Delete removes one of the actor's notifications.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "NotificationService.Delete", trace.WithAttributes(attribute.Int64("notification.id", id)))
	defer span.End()

	if err := s.repo.Delete(ctx, id, actor.UserID); err != nil {
		return s.translate(span, err)
	}
	return nil
}

func (s *Service) translate(span trace.Span, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return errorbank.NotFound("notification not found", errorbank.WithCause(err))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "repository error")
	return errorbank.Internal("notification update failed", errorbank.WithCause(err))
}
