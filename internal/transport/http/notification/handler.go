package notification

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/dto"
	"github.com/Additional-Code/harvest/internal/presentation/http/request"
	"github.com/Additional-Code/harvest/internal/presentation/http/response"
	service "github.com/Additional-Code/harvest/internal/service/notification"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/harvest/transport/http/notification")

// Handler exposes a user's notifications over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a notification Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler, issuer *auth.Issuer) {
	g := e.Group("/notifications", auth.Middleware(issuer))
	g.GET("/user/:userId", h.list)
	g.GET("/user/:userId/unread-count", h.unreadCount)
	g.PUT("/user/:userId/read-all", h.markAllRead)
	g.PUT("/:id/read", h.markRead)
	g.DELETE("/:id", h.delete)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	userID, err := request.ID(c, "userId")
	if err != nil {
		return b.WithError(err).Build()
	}
	limit, err := request.Int(c, "limit")
	if err != nil {
		return b.WithError(err).Build()
	}
	offset, err := request.Int(c, "offset")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "notifications.list", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	items, err := h.svc.List(ctx, actor, userID, limit, offset)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromNotifications(items)).Build()
}

func (h *Handler) unreadCount(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	userID, err := request.ID(c, "userId")
	if err != nil {
		return b.WithError(err).Build()
	}

	n, err := h.svc.UnreadCount(c.Request().Context(), actor, userID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.UnreadCountResponse{Count: n}).Build()
}

func (h *Handler) markRead(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	if err := h.svc.MarkRead(c.Request().Context(), actor, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.MessageResponse{Message: "Notification marked as read"}).Build()
}

func (h *Handler) markAllRead(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	userID, err := request.ID(c, "userId")
	if err != nil {
		return b.WithError(err).Build()
	}

	n, err := h.svc.MarkAllRead(c.Request().Context(), actor, userID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMeta("updated", n).WithData(dto.MessageResponse{Message: "All notifications marked as read"}).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	if err := h.svc.Delete(c.Request().Context(), actor, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusOK).WithData(dto.MessageResponse{Message: "Notification deleted"}).Build()
}
