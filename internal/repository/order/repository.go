package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/harvest/internal/database"
	"github.com/Additional-Code/harvest/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/harvest/repository/order")

var (
	// ErrNotFound is returned when an order is missing.
	ErrNotFound = errors.New("order not found")
	// ErrStaleStatus is returned when the order status changed after it was read.
	ErrStaleStatus = errors.New("order status changed concurrently")
)

// Page selects a window of orders by descending id.
type Page struct {
	BeforeID int64
	Limit    int
}

// Filter narrows the administrative order listing.
type Filter struct {
	Status entity.OrderStatus
	From   time.Time
	To     time.Time
}

// FarmerStats aggregates a farmer's sales.
type FarmerStats struct {
	TotalSales   decimal.Decimal
	ActiveOrders int
	TotalOrders  int
}

// Overview aggregates every order in the marketplace.
type Overview struct {
	TotalOrders int
	Revenue     decimal.Decimal
	ByStatus    map[entity.OrderStatus]int
}

// Sale is the amount and date of one non-cancelled order.
type Sale struct {
	FinalAmount decimal.Decimal `bun:"final_amount"`
	CreatedAt   time.Time       `bun:"created_at"`
}

// Repository encapsulates read/write access for orders.
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

// Create persists the order header and its line items through db.
func (r *Repository) Create(ctx context.Context, db bun.IDB, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.number", order.Number)))
	defer span.End()

	if _, err := db.NewInsert().Model(order).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}

	if len(order.Items) == 0 {
		return nil
	}
	for _, item := range order.Items {
		item.OrderID = order.ID
	}
	if _, err := db.NewInsert().Model(&order.Items).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert items failed")
		return err
	}
	return nil
}

// AppendTracking inserts one tracking event.
func (r *Repository) AppendTracking(ctx context.Context, db bun.IDB, event *entity.TrackingEvent) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.AppendTracking", trace.WithAttributes(
		attribute.Int64("order.id", event.OrderID),
		attribute.String("order.status", event.Status),
	))
	defer span.End()

	if _, err := db.NewInsert().Model(event).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// GetForUpdate loads the order header and all line items through db,
// without joins, for use inside a status transition. The header row is
// locked until the transaction ends; SQLite already serialises writers.
func (r *Repository) GetForUpdate(ctx context.Context, db bun.IDB, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetForUpdate", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := lockingSelect(db, order, id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

func lockingSelect(db bun.IDB, order *entity.Order, id int64) *bun.SelectQuery {
	q := db.NewSelect().
		Model(order).
		Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.id ASC")
		}).
		Where("?TableAlias.id = ?", id)
	if db.Dialect().Name() != dialect.SQLite {
		q = q.For("UPDATE")
	}
	return q
}

// UpdateStatus moves an order from one status to another only if it still
// holds from. A concurrent writer surfaces as ErrStaleStatus.
func (r *Repository) UpdateStatus(ctx context.Context, db bun.IDB, id int64, from, to entity.OrderStatus, at time.Time) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status.from", string(from)),
		attribute.String("order.status.to", string(to)),
	))
	defer span.End()

	res, err := db.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", at).
		Set("version = version + 1").
		Where("id = ?", id).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		span.SetStatus(codes.Error, "stale status")
		return ErrStaleStatus
	}
	return nil
}

// GetByID fetches the full order projection using the read replica when available.
// A positive farmerID restricts the loaded line items to that farmer.
func (r *Repository) GetByID(ctx context.Context, id, farmerID int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.detailQuery(r.reader.NewSelect().Model(order), farmerID, true).
		Where("?TableAlias.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// ListByBuyer returns a page of a buyer's orders, newest first.
func (r *Repository) ListByBuyer(ctx context.Context, buyerID int64, page Page) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListByBuyer", trace.WithAttributes(attribute.Int64("buyer.id", buyerID)))
	defer span.End()

	var orders []*entity.Order
	q := r.detailQuery(r.reader.NewSelect().Model(&orders), 0, false).
		Where("?TableAlias.buyer_id = ?", buyerID)
	if err := paginate(q, page).Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// ListByFarmer returns a page of orders containing at least one of the
// farmer's products, with only that farmer's line items loaded.
func (r *Repository) ListByFarmer(ctx context.Context, farmerID int64, page Page) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListByFarmer", trace.WithAttributes(attribute.Int64("farmer.id", farmerID)))
	defer span.End()

	var orders []*entity.Order
	q := r.detailQuery(r.reader.NewSelect().Model(&orders), farmerID, false).
		Where("EXISTS (SELECT 1 FROM order_items AS fi WHERE fi.order_id = ?TableAlias.id AND fi.farmer_id = ?)", farmerID)
	if err := paginate(q, page).Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// ListAll returns a page of every order matching filter.
func (r *Repository) ListAll(ctx context.Context, filter Filter, page Page) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListAll", trace.WithAttributes(attribute.String("order.status", string(filter.Status))))
	defer span.End()

	var orders []*entity.Order
	q := r.detailQuery(r.reader.NewSelect().Model(&orders), 0, false)
	if filter.Status != "" {
		q = q.Where("?TableAlias.status = ?", filter.Status)
	}
	if !filter.From.IsZero() {
		q = q.Where("?TableAlias.created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("?TableAlias.created_at < ?", filter.To)
	}
	if err := paginate(q, page).Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// StatsForFarmer sums a farmer's line totals over non-cancelled orders and
// counts their orders that are still in flight.
func (r *Repository) StatsForFarmer(ctx context.Context, farmerID int64) (FarmerStats, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.StatsForFarmer", trace.WithAttributes(attribute.Int64("farmer.id", farmerID)))
	defer span.End()

	var row struct {
		TotalSales   decimal.NullDecimal `bun:"total_sales"`
		TotalOrders  int                 `bun:"total_orders"`
		ActiveOrders int                 `bun:"active_orders"`
	}
	err := r.reader.NewSelect().
		TableExpr("order_items AS oi").
		Join("JOIN orders AS o ON o.id = oi.order_id").
		ColumnExpr("SUM(CASE WHEN o.status <> ? THEN oi.total_price ELSE 0 END) AS total_sales", entity.StatusCancelled).
		ColumnExpr("COUNT(DISTINCT o.id) AS total_orders").
		ColumnExpr("COUNT(DISTINCT CASE WHEN o.status NOT IN (?) THEN o.id END) AS active_orders",
			bun.In([]entity.OrderStatus{entity.StatusDelivered, entity.StatusCancelled})).
		Where("oi.farmer_id = ?", farmerID).
		Scan(ctx, &row)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return FarmerStats{}, err
	}

	stats := FarmerStats{TotalOrders: row.TotalOrders, ActiveOrders: row.ActiveOrders, TotalSales: decimal.Zero}
	if row.TotalSales.Valid {
		stats.TotalSales = row.TotalSales.Decimal
	}
	return stats, nil
}

// Overview counts orders per status and sums the final amount of the
// orders that were not cancelled.
func (r *Repository) Overview(ctx context.Context) (Overview, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Overview")
	defer span.End()

	var rows []struct {
		Status  entity.OrderStatus  `bun:"status"`
		Count   int                 `bun:"count"`
		Revenue decimal.NullDecimal `bun:"revenue"`
	}
	err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		ColumnExpr("?TableAlias.status AS status").
		ColumnExpr("COUNT(*) AS count").
		ColumnExpr("SUM(?TableAlias.final_amount) AS revenue").
		GroupExpr("?TableAlias.status").
		Scan(ctx, &rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return Overview{}, err
	}

	out := Overview{Revenue: decimal.Zero, ByStatus: make(map[entity.OrderStatus]int, len(rows))}
	for _, row := range rows {
		out.TotalOrders += row.Count
		out.ByStatus[row.Status] = row.Count
		if row.Status != entity.StatusCancelled && row.Revenue.Valid {
			out.Revenue = out.Revenue.Add(row.Revenue.Decimal)
		}
	}
	return out, nil
}

// SalesSince returns the amount and date of every non-cancelled order placed
// at or after since, oldest first.
func (r *Repository) SalesSince(ctx context.Context, since time.Time) ([]Sale, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.SalesSince")
	defer span.End()

	var sales []Sale
	err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		Column("final_amount", "created_at").
		Where("status <> ?", entity.StatusCancelled).
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Scan(ctx, &sales)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return sales, nil
}

func (r *Repository) detailQuery(q *bun.SelectQuery, farmerID int64, withTracking bool) *bun.SelectQuery {
	q = q.Relation("Buyer").
		Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery {
			if farmerID > 0 {
				q = q.Where("?TableAlias.farmer_id = ?", farmerID)
			}
			return q.OrderExpr("?TableAlias.id ASC")
		}).
		Relation("Items.Product")
	if withTracking {
		q = q.Relation("Tracking", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.created_at ASC, ?TableAlias.id ASC")
		})
	}
	return q
}

func paginate(q *bun.SelectQuery, page Page) *bun.SelectQuery {
	if page.BeforeID > 0 {
		q = q.Where("?TableAlias.id < ?", page.BeforeID)
	}
	if page.Limit > 0 {
		q = q.Limit(page.Limit)
	}
	return q.OrderExpr("?TableAlias.id DESC")
}
