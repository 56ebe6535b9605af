package product

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/harvest/internal/database"
	"github.com/Additional-Code/harvest/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/harvest/repository/product")

var (
	// ErrNotFound is returned when a product is missing.
	ErrNotFound = errors.New("product not found")
	// ErrUnavailable is returned when a product is missing or inactive at order time.
	ErrUnavailable = errors.New("product unavailable")
	// ErrInsufficientStock is returned when the conditional decrement matched no row.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrCategoryNotFound is returned when a category is missing.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrCategoryInUse is returned when deleting a category that still has products.
	ErrCategoryInUse = errors.New("category has products")
	// ErrDuplicateCategory is returned when a category name is taken.
	ErrDuplicateCategory = errors.New("category already exists")
)

// Filter narrows catalogue listings.
type Filter struct {
	CategoryID int64
	FarmerID   int64
	Search     string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// Repository encapsulates read/write access for products and categories.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// GetByID loads a product through db, or the reader when db is nil.
func (r *Repository) GetByID(ctx context.Context, db bun.IDB, id int64) (*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.GetByID", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	if db == nil {
		db = r.reader
	}

	product := new(entity.Product)
	err := db.NewSelect().Model(product).Relation("Category").Where("?TableAlias.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return product, nil
}

// GetMany loads the given products keyed by id. Missing ids are absent from the map.
func (r *Repository) GetMany(ctx context.Context, db bun.IDB, ids []int64) (map[int64]*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.GetMany", trace.WithAttributes(attribute.Int("product.count", len(ids))))
	defer span.End()

	if db == nil {
		db = r.reader
	}

	out := make(map[int64]*entity.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var products []*entity.Product
	if err := db.NewSelect().Model(&products).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// DecrementStock removes qty units from an active product only while enough
// stock remains. A lost race surfaces as ErrInsufficientStock.
func (r *Repository) DecrementStock(ctx context.Context, db bun.IDB, productID int64, qty int) error {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.DecrementStock", trace.WithAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int("quantity", qty),
	))
	defer span.End()

	res, err := db.NewUpdate().
		Model((*entity.Product)(nil)).
		Set("quantity = quantity - ?", qty).
		Set("total_sold = total_sold + ?", qty).
		Where("id = ?", productID).
		Where("is_active = ?", true).
		Where("quantity >= ?", qty).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		span.SetStatus(codes.Error, "insufficient stock")
		return ErrInsufficientStock
	}
	return nil
}

// RestoreStock returns qty units to a product, keeping total_sold at or above zero.
func (r *Repository) RestoreStock(ctx context.Context, db bun.IDB, productID int64, qty int) error {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.RestoreStock", trace.WithAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int("quantity", qty),
	))
	defer span.End()

	_, err := db.NewUpdate().
		Model((*entity.Product)(nil)).
		Set("quantity = quantity + ?", qty).
		Set("total_sold = CASE WHEN total_sold >= ? THEN total_sold - ? ELSE 0 END", qty, qty).
		Where("id = ?", productID).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// List returns one page of products matching filter and the total match count.
func (r *Repository) List(ctx context.Context, filter Filter) ([]*entity.Product, int, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.List")
	defer span.End()

	var products []*entity.Product
	q := r.reader.NewSelect().Model(&products).Relation("Category")
	if filter.ActiveOnly {
		q = q.Where("?TableAlias.is_active = ?", true)
	}
	if filter.CategoryID > 0 {
		q = q.Where("?TableAlias.category_id = ?", filter.CategoryID)
	}
	if filter.FarmerID > 0 {
		q = q.Where("?TableAlias.farmer_id = ?", filter.FarmerID)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(?TableAlias.name) LIKE ?", like).
				WhereOr("LOWER(?TableAlias.description) LIKE ?", like)
		})
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	total, err := q.OrderExpr("?TableAlias.id DESC").ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return products, total, nil
}

// Create inserts a product.
func (r *Repository) Create(ctx context.Context, product *entity.Product) error {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.Create", trace.WithAttributes(attribute.String("product.name", product.Name)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(product).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// Update writes the editable columns of product.
func (r *Repository) Update(ctx context.Context, product *entity.Product) error {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.Update", trace.WithAttributes(attribute.Int64("product.id", product.ID)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model(product).
		Column("name", "description", "category_id", "price", "quantity", "unit", "image_url", "is_active", "updated_at").
		WherePK().
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

// CountByFarmer returns how many products a farmer has listed.
func (r *Repository) CountByFarmer(ctx context.Context, farmerID int64) (int, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.CountByFarmer", trace.WithAttributes(attribute.Int64("farmer.id", farmerID)))
	defer span.End()

	n, err := r.reader.NewSelect().Model((*entity.Product)(nil)).Where("farmer_id = ?", farmerID).Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
	}
	return n, err
}

// Categories lists every category in display order.
func (r *Repository) Categories(ctx context.Context) ([]*entity.Category, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.Categories")
	defer span.End()

	var categories []*entity.Category
	err := r.reader.NewSelect().Model(&categories).Order("display_order ASC", "name ASC").Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return categories, nil
}

// Delete removes a product that no order references. A product that was
// ever ordered is deactivated instead so order history keeps its line
// items; removed reports which of the two happened.
func (r *Repository) Delete(ctx context.Context, id int64) (removed bool, err error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.Delete", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	err = r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ordered, err := tx.NewSelect().Model((*entity.OrderItem)(nil)).Where("product_id = ?", id).Exists(ctx)
		if err != nil {
			return err
		}

		var res sql.Result
		if ordered {
			res, err = tx.NewUpdate().Model((*entity.Product)(nil)).
				Set("is_active = ?", false).
				Where("id = ?", id).
				Exec(ctx)
		} else {
			res, err = tx.NewDelete().Model((*entity.Product)(nil)).Where("id = ?", id).Exec(ctx)
		}
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		removed = !ordered
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
	}
	return removed, err
}

// CountActive returns how many products are listed and active.
func (r *Repository) CountActive(ctx context.Context) (int, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.CountActive")
	defer span.End()

	n, err := r.reader.NewSelect().Model((*entity.Product)(nil)).Where("is_active = ?", true).Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
	}
	return n, err
}

// TopSelling returns the active products with the most units sold.
func (r *Repository) TopSelling(ctx context.Context, limit int) ([]*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.TopSelling")
	defer span.End()

	var products []*entity.Product
	err := r.reader.NewSelect().
		Model(&products).
		Relation("Category").
		Where("?TableAlias.is_active = ?", true).
		OrderExpr("?TableAlias.total_sold DESC, ?TableAlias.id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return products, nil
}

// GetCategory loads one category.
func (r *Repository) GetCategory(ctx context.Context, id int64) (*entity.Category, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.GetCategory", trace.WithAttributes(attribute.Int64("category.id", id)))
	defer span.End()

	c := new(entity.Category)
	err := r.reader.NewSelect().Model(c).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return c, nil
}

// CreateCategory inserts a category.
func (r *Repository) CreateCategory(ctx context.Context, c *entity.Category) error {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.CreateCategory", trace.WithAttributes(attribute.String("category.name", c.Name)))
	defer span.End()

	if _, err := r.writer.NewInsert().Model(c).Exec(ctx); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateCategory
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// UpdateCategory writes the editable columns of c.
func (r *Repository) UpdateCategory(ctx context.Context, c *entity.Category) error {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.UpdateCategory", trace.WithAttributes(attribute.Int64("category.id", c.ID)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model(c).
		Column("name", "description", "display_order").
		WherePK().
		Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateCategory
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// DeleteCategory removes a category that no product belongs to.
func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.DeleteCategory", trace.WithAttributes(attribute.Int64("category.id", id)))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		inUse, err := tx.NewSelect().Model((*entity.Product)(nil)).Where("category_id = ?", id).Exists(ctx)
		if err != nil {
			return err
		}
		if inUse {
			return ErrCategoryInUse
		}
		res, err := tx.NewDelete().Model((*entity.Category)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrCategoryNotFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrCategoryInUse) && !errors.Is(err, ErrCategoryNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
	}
	return err
}
