package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/dto"
	"github.com/Additional-Code/harvest/internal/entity"
	"github.com/Additional-Code/harvest/internal/presentation/http/request"
	"github.com/Additional-Code/harvest/internal/presentation/http/response"
	service "github.com/Additional-Code/harvest/internal/service/admin"
	"github.com/Additional-Code/harvest/internal/service/catalog"
	"github.com/Additional-Code/harvest/internal/service/coupon"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/harvest/transport/http/admin")

// Handler exposes marketplace administration over HTTP.
type Handler struct {
	coupons *coupon.Service
	catalog *catalog.Service
	admin   *service.Service
}

// NewHandler constructs an admin Handler.
func NewHandler(coupons *coupon.Service, products *catalog.Service, admin *service.Service) *Handler {
	return &Handler{coupons: coupons, catalog: products, admin: admin}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler, issuer *auth.Issuer) {
	g := e.Group("/admin", auth.Middleware(issuer), auth.RequireRole(entity.RoleAdmin))
	g.GET("/stats", h.stats)
	g.GET("/users", h.listUsers)
	g.PUT("/users/:userId/status", h.setUserStatus)
	g.POST("/categories", h.createCategory)
	g.PUT("/categories/:id", h.updateCategory)
	g.DELETE("/categories/:id", h.deleteCategory)
	g.GET("/coupons", h.listCoupons)
	g.POST("/coupons", h.createCoupon)
	g.PUT("/coupons/:id", h.toggleCoupon)
}

func (h *Handler) stats(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.stats")
	defer span.End()

	stats, err := h.admin.Stats(ctx, actor)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := dto.AdminStatsResponse{
		TotalUsers:     stats.TotalUsers,
		TotalProducts:  stats.TotalProducts,
		TotalOrders:    stats.TotalOrders,
		TotalRevenue:   stats.TotalRevenue,
		OrdersByStatus: make(map[string]int, len(stats.OrdersByStatus)),
		RecentOrders:   make([]dto.OrderResponse, 0, len(stats.RecentOrders)),
		TopProducts:    make([]dto.ProductResponse, 0, len(stats.TopProducts)),
		MonthlyRevenue: make([]dto.MonthRevenueResponse, 0, len(stats.MonthlyRevenue)),
	}
	for status, n := range stats.OrdersByStatus {
		out.OrdersByStatus[string(status)] = n
	}
	for _, o := range stats.RecentOrders {
		out.RecentOrders = append(out.RecentOrders, dto.FromOrder(o))
	}
	for _, p := range stats.TopProducts {
		out.TopProducts = append(out.TopProducts, dto.FromProduct(p))
	}
	for _, m := range stats.MonthlyRevenue {
		out.MonthlyRevenue = append(out.MonthlyRevenue, dto.MonthRevenueResponse{Month: m.Month, Revenue: m.Revenue, OrderCount: m.Orders})
	}
	return b.WithData(out).Build()
}

func (h *Handler) listUsers(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	q := service.UserQuery{Role: c.QueryParam("role")}
	if q.Limit, err = request.Int(c, "limit"); err != nil {
		return b.WithError(err).Build()
	}
	if q.Offset, err = request.Int(c, "offset"); err != nil {
		return b.WithError(err).Build()
	}

	users, total, err := h.admin.Users(c.Request().Context(), actor, q)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromAdminUsers(users, total)).Build()
}

func (h *Handler) setUserStatus(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := request.ID(c, "userId")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.UserStatusRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	u, err := h.admin.SetUserActive(c.Request().Context(), actor, id, payload.IsActive)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromAdminUser(u)).Build()
}

func (h *Handler) createCategory(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.CategoryRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	created, err := h.catalog.CreateCategory(c.Request().Context(), actor, categoryInput(payload))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.FromCategory(created)).Build()
}

func (h *Handler) updateCategory(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.CategoryRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	updated, err := h.catalog.UpdateCategory(c.Request().Context(), actor, id, categoryInput(payload))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromCategory(updated)).Build()
}

func (h *Handler) deleteCategory(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	if err := h.catalog.DeleteCategory(c.Request().Context(), actor, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.MessageResponse{Message: "Category deleted successfully"}).Build()
}

func categoryInput(p dto.CategoryRequest) catalog.CategoryInput {
	return catalog.CategoryInput{Name: p.Name, Description: p.Description, DisplayOrder: p.DisplayOrder}
}

func (h *Handler) listCoupons(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.listCoupons")
	defer span.End()

	coupons, err := h.coupons.List(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromCoupons(coupons)).Build()
}

func (h *Handler) createCoupon(c echo.Context) error {
	b := response.New(c)

	var payload dto.CouponRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.createCoupon")
	defer span.End()

	in := coupon.CreateInput{
		Code:           payload.Code,
		Description:    payload.Description,
		DiscountType:   entity.DiscountType(payload.DiscountType),
		DiscountValue:  payload.DiscountValue,
		MinOrderAmount: payload.MinOrderAmount,
		ValidFrom:      payload.ValidFrom,
		ValidTo:        payload.ValidTo,
		UsageLimit:     payload.UsageLimit,
	}
	if payload.MaxDiscount != nil {
		in.MaxDiscount = decimal.NewNullDecimal(*payload.MaxDiscount)
	}

	created, err := h.coupons.Create(ctx, in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.FromCoupon(created)).Build()
}

func (h *Handler) toggleCoupon(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.CouponToggleRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	updated, err := h.coupons.SetActive(c.Request().Context(), id, payload.IsActive)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromCoupon(updated)).Build()
}
