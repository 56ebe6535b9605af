package order

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/dto"
	"github.com/Additional-Code/harvest/internal/entity"
	"github.com/Additional-Code/harvest/internal/presentation/http/request"
	"github.com/Additional-Code/harvest/internal/presentation/http/response"
	service "github.com/Additional-Code/harvest/internal/service/order"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/harvest/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler, issuer *auth.Issuer) {
	authn := auth.Middleware(issuer)
	operators := auth.RequireRole(entity.RoleFarmer, entity.RoleAdmin)

	g := e.Group("/orders", authn)
	g.POST("", h.place)
	g.GET("", h.listAll, auth.RequireRole(entity.RoleAdmin))
	g.GET("/:id", h.getByID)
	g.PUT("/:id/status", h.updateStatus, operators)
	g.PUT("/:id/cancel", h.cancel)
	g.GET("/user/:userId", h.listForBuyer)
	g.GET("/farmer/:farmerId", h.listForFarmer)

	farmer := e.Group("/farmer", authn, auth.RequireRole(entity.RoleFarmer))
	farmer.GET("/orders", h.listMine)
	farmer.PUT("/orders/:id/status", h.updateStatus)
	farmer.GET("/dashboard", h.dashboard)

	admin := e.Group("/admin", authn, auth.RequireRole(entity.RoleAdmin))
	admin.GET("/orders", h.listAll)
}

func (h *Handler) place(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.PlaceOrderRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.place", trace.WithAttributes(
		attribute.Int("order.lines", len(payload.Items)),
	))
	defer span.End()

	in := service.PlaceInput{
		DeliveryAddress:      payload.DeliveryAddress,
		DeliveryInstructions: payload.DeliveryInstructions,
		PaymentMethod:        payload.PaymentMethod,
		CouponCode:           payload.CouponCode,
	}
	for _, line := range payload.Items {
		in.Items = append(in.Items, service.LineRequest{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	order, err := h.svc.Place(ctx, actor, in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.FromPlacedOrder(order)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, actor, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.UpdateStatusRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status", payload.Status),
	))
	defer span.End()

	_, err = h.svc.UpdateStatus(ctx, actor, id, service.TransitionInput{
		Status:      payload.Status,
		Location:    payload.Location,
		Description: payload.Description,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.MessageResponse{Message: "Order status updated successfully"}).Build()
}

func (h *Handler) cancel(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.cancel", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if _, err := h.svc.Cancel(ctx, actor, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.MessageResponse{Message: "Order cancelled successfully"}).Build()
}

func (h *Handler) listForBuyer(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	buyerID, err := request.ID(c, "userId")
	if err != nil {
		return b.WithError(err).Build()
	}
	page, err := pageRequest(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listForBuyer", trace.WithAttributes(attribute.Int64("buyer.id", buyerID)))
	defer span.End()

	result, err := h.svc.ListForBuyer(ctx, actor, buyerID, page)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrders(result.Orders, result.NextCursor)).Build()
}

func (h *Handler) listForFarmer(c echo.Context) error {
	b := response.New(c)

	farmerID, err := request.ID(c, "farmerId")
	if err != nil {
		return b.WithError(err).Build()
	}
	return h.farmerOrders(c, b, farmerID)
}

func (h *Handler) listMine(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	return h.farmerOrders(c, b, actor.UserID)
}

func (h *Handler) farmerOrders(c echo.Context, b *response.Builder, farmerID int64) error {
	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	page, err := pageRequest(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listForFarmer", trace.WithAttributes(attribute.Int64("farmer.id", farmerID)))
	defer span.End()

	result, err := h.svc.ListForFarmer(ctx, actor, farmerID, page)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrders(result.Orders, result.NextCursor)).Build()
}

func (h *Handler) listAll(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	page, err := pageRequest(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	filter := service.AdminFilter{Status: c.QueryParam("status")}
	if filter.From, err = request.Time(c, "from"); err != nil {
		return b.WithError(err).Build()
	}
	if filter.To, err = request.Time(c, "to"); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listAll", trace.WithAttributes(attribute.String("order.status", filter.Status)))
	defer span.End()

	result, err := h.svc.ListAll(ctx, actor, filter, page)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrders(result.Orders, result.NextCursor)).Build()
}

func (h *Handler) dashboard(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.dashboard", trace.WithAttributes(attribute.Int64("farmer.id", actor.UserID)))
	defer span.End()

	stats, err := h.svc.Dashboard(ctx, actor, actor.UserID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FarmerDashboardResponse{
		TotalProducts: stats.TotalProducts,
		TotalOrders:   stats.TotalOrders,
		ActiveOrders:  stats.ActiveOrders,
		TotalSales:    stats.TotalSales,
	}).Build()
}

func pageRequest(c echo.Context) (service.PageRequest, error) {
	limit, err := request.Int(c, "limit")
	if err != nil {
		return service.PageRequest{}, err
	}
	return service.PageRequest{Cursor: c.QueryParam("cursor"), Limit: limit}, nil
}
