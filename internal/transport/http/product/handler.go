package product

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
	service "github.com/Additional-Code/harvest/internal/service/catalog"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/harvest/transport/http/product")

// Handler exposes the catalogue over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a product Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance. Browsing is public.
func Register(e *echo.Echo, h *Handler, issuer *auth.Issuer) {
	sellers := []echo.MiddlewareFunc{auth.Middleware(issuer), auth.RequireRole(entity.RoleFarmer, entity.RoleAdmin)}

	g := e.Group("/products")
	g.GET("", h.list)
	g.GET("/categories", h.categories)
	g.GET("/:id", h.getByID)
	g.POST("", h.create, sellers...)
	g.PUT("/:id", h.update, sellers...)
	g.DELETE("/:id", h.delete, sellers...)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	var (
		q   service.Query
		err error
	)
	if q.CategoryID, err = request.Int64(c, "category"); err != nil {
		return b.WithError(err).Build()
	}
	if q.FarmerID, err = request.Int64(c, "farmer"); err != nil {
		return b.WithError(err).Build()
	}
	if q.Limit, err = request.Int(c, "limit"); err != nil {
		return b.WithError(err).Build()
	}
	if q.Offset, err = request.Int(c, "offset"); err != nil {
		return b.WithError(err).Build()
	}
	q.Search = c.QueryParam("search")
	q.IncludeInactive = c.QueryParam("includeInactive") == "true"

	ctx, span := httpTracer.Start(c.Request().Context(), "products.list")
	defer span.End()

	products, total, err := h.svc.List(ctx, q)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromProducts(products, total)).Build()
}

func (h *Handler) categories(c echo.Context) error {
	b := response.New(c)

	categories, err := h.svc.Categories(c.Request().Context())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromCategories(categories)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "products.getByID", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	p, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromProduct(p)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.ProductRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	p, err := h.svc.Create(c.Request().Context(), actor, toInput(payload))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.FromProduct(p)).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.ProductRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	p, err := h.svc.Update(c.Request().Context(), actor, id, toInput(payload))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromProduct(p)).Build()
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

	removed, err := h.svc.Delete(c.Request().Context(), actor, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	out := dto.ProductRemovedResponse{Message: "Product deleted successfully", Deleted: removed, Deactivated: !removed}
	if !removed {
		out.Message = "Product has orders and was deactivated"
	}
	return b.WithData(out).Build()
}

func toInput(p dto.ProductRequest) service.ProductInput {
	return service.ProductInput{
		FarmerID:    p.FarmerID,
		CategoryID:  p.CategoryID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    p.Quantity,
		Unit:        p.Unit,
		ImageURL:    p.ImageURL,
		IsActive:    p.IsActive,
	}
}
