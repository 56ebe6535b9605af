package catalog

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
	repo "github.com/Additional-Code/harvest/internal/repository/product"
	"github.com/Additional-Code/harvest/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/harvest/service/catalog")

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Query narrows a catalogue listing.
type Query struct {
	CategoryID      int64
	FarmerID        int64
	Search          string
	IncludeInactive bool
	Limit           int
	Offset          int
}

// ProductInput carries the editable fields of a product. Nil pointers leave
// the current value untouched on update.
type ProductInput struct {
	FarmerID    int64
	CategoryID  *int64
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *int
	Unit        *string
	ImageURL    *string
	IsActive    *bool
}

// Service exposes the product catalogue.
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

// List returns a page of products and the total number of matches. Inactive
// products are hidden unless explicitly requested.
func (s *Service) List(ctx context.Context, q Query) ([]*entity.Product, int, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.List")
	defer span.End()

	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	products, total, err := s.repo.List(ctx, repo.Filter{
		CategoryID: q.CategoryID,
		FarmerID:   q.FarmerID,
		Search:     q.Search,
		ActiveOnly: !q.IncludeInactive,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, 0, errorbank.Internal("failed to list products", errorbank.WithCause(err))
	}
	return products, total, nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Product, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.Get", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	p, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("product not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load product", errorbank.WithCause(err))
	}
	return p, nil
}

// Categories lists the browsable categories.
func (s *Service) Categories(ctx context.Context) ([]*entity.Category, error) {
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, errorbank.Internal("failed to load categories", errorbank.WithCause(err))
	}
	return categories, nil
}

// Create lists a new product. Farmers always list for themselves; admins
// must name the owning farmer.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in ProductInput) (*entity.Product, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.Create")
	defer span.End()

	owner := in.FarmerID
	switch {
	case actor.IsFarmer():
		owner = actor.UserID
	case actor.IsAdmin():
		if owner <= 0 {
			return nil, errorbank.BadRequest("farmerId is required")
		}
	default:
		return nil, errorbank.Forbidden("only farmers can list products")
	}

	now := s.now()
	p := &entity.Product{FarmerID: owner, Unit: "kg", IsActive: true, CreatedAt: now, UpdatedAt: now}
	if in.Name == nil || in.Price == nil || in.Quantity == nil {
		return nil, errorbank.BadRequest("name, price and quantity are required")
	}
	if err := apply(p, in); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create product", errorbank.WithCause(err))
	}
	s.logger.Info("product listed", zap.Int64("product_id", p.ID), zap.Int64("farmer_id", owner))
	return p, nil
}

// Update edits a product owned by the actor, or any product for admins.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id int64, in ProductInput) (*entity.Product, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.Update", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !(actor.IsFarmer() && actor.Is(p.FarmerID)) {
		return nil, errorbank.Forbidden("not allowed to edit this product")
	}
	if err := apply(p, in); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("product not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to update product", errorbank.WithCause(err))
	}
	return p, nil
}

func apply(p *entity.Product, in ProductInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return errorbank.BadRequest("name cannot be empty")
		}
		p.Name = name
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.CategoryID != nil {
		if *in.CategoryID < 0 {
			return errorbank.BadRequest("invalid categoryId")
		}
		p.CategoryID = *in.CategoryID
		p.Category = nil
	}
	if in.Price != nil {
		if !in.Price.IsPositive() {
			return errorbank.BadRequest("price must be positive")
		}
		p.Price = in.Price.Round(2)
	}
	if in.Quantity != nil {
		if *in.Quantity < 0 {
			return errorbank.BadRequest("quantity cannot be negative")
		}
		p.Quantity = *in.Quantity
	}
	if in.Unit != nil && strings.TrimSpace(*in.Unit) != "" {
		p.Unit = strings.TrimSpace(*in.Unit)
	}
	if in.ImageURL != nil {
		p.ImageURL = strings.TrimSpace(*in.ImageURL)
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	return nil
}

// CategoryInput carries the editable fields of a category.
type CategoryInput struct {
	Name         string
	Description  string
	DisplayOrder int
}

// Delete removes a product, or deactivates it when orders reference it.
// Owners and admins only.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id int64) (removed bool, err error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.Delete", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	p, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !actor.IsAdmin() && !(actor.IsFarmer() && actor.Is(p.FarmerID)) {
		return false, errorbank.Forbidden("not allowed to delete this product")
	}

	removed, err = s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, errorbank.NotFound("product not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return false, errorbank.Internal("failed to delete product", errorbank.WithCause(err))
	}
	s.logger.Info("product removed", zap.Int64("product_id", id), zap.Bool("deleted", removed), zap.Int64("actor_id", actor.UserID))
	return removed, nil
}

// CreateCategory adds a browsable category. Admin only.
func (s *Service) CreateCategory(ctx context.Context, actor auth.Actor, in CategoryInput) (*entity.Category, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.CreateCategory")
	defer span.End()

	if !actor.IsAdmin() {
		return nil, errorbank.Forbidden("admin access required")
	}
	c := &entity.Category{CreatedAt: s.now()}
	if err := applyCategory(c, in); err != nil {
		return nil, err
	}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, categoryError(span, err)
	}
	return c, nil
}

// UpdateCategory replaces a category's fields. Admin only.
func (s *Service) UpdateCategory(ctx context.Context, actor auth.Actor, id int64, in CategoryInput) (*entity.Category, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.UpdateCategory", trace.WithAttributes(attribute.Int64("category.id", id)))
	defer span.End()

	if !actor.IsAdmin() {
		return nil, errorbank.Forbidden("admin access required")
	}
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, categoryError(span, err)
	}
	if err := applyCategory(c, in); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		return nil, categoryError(span, err)
	}
	return c, nil
}

// DeleteCategory removes an empty category. Admin only.
func (s *Service) DeleteCategory(ctx context.Context, actor auth.Actor, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.DeleteCategory", trace.WithAttributes(attribute.Int64("category.id", id)))
	defer span.End()

	if !actor.IsAdmin() {
		return errorbank.Forbidden("admin access required")
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return categoryError(span, err)
	}
	return nil
}

func applyCategory(c *entity.Category, in CategoryInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return errorbank.BadRequest("name is required")
	}
	if in.DisplayOrder < 0 {
		return errorbank.BadRequest("displayOrder cannot be negative")
	}
	c.Name = name
	c.Description = strings.TrimSpace(in.Description)
	c.DisplayOrder = in.DisplayOrder
	return nil
}

func categoryError(span trace.Span, err error) error {
	switch {
	case errors.Is(err, repo.ErrCategoryNotFound):
		return errorbank.NotFound("category not found")
	case errors.Is(err, repo.ErrCategoryInUse):
		return errorbank.BadRequest("cannot delete a category that has products", errorbank.WithCause(err))
	case errors.Is(err, repo.ErrDuplicateCategory):
		return errorbank.Conflict("category already exists", errorbank.WithCause(err))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("category update failed", errorbank.WithCause(err))
	}
}
