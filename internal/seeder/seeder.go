package seeder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/database"
	"github.com/Additional-Code/harvest/internal/entity"
)

// Module provides the Seeder to Fx.
var Module = fx.Provide(New)

// DefaultPassword is the password given to every seeded account.
const DefaultPassword = "harvest123"

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Marketplace seeds demo accounts, categories, produce and a coupon. Rows
// that already exist are left untouched so the seed can be rerun.
func (s *Seeder) Marketplace(ctx context.Context) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		users, err := s.users(ctx, tx)
		if err != nil {
			return err
		}
		categories, err := s.categories(ctx, tx)
		if err != nil {
			return err
		}
		if err := s.products(ctx, tx, users[entity.RoleFarmer], categories); err != nil {
			return err
		}
		return s.coupons(ctx, tx)
	})
}

func (s *Seeder) users(ctx context.Context, tx bun.Tx) (map[entity.Role]int64, error) {
	hash, err := auth.HashPassword(DefaultPassword)
	if err != nil {
		return nil, err
	}
	now := s.now()
	samples := []entity.User{
		{Name: "Market Admin", Email: "admin@harvest.local", Role: entity.RoleAdmin},
		{Name: "Asha Farmer", Email: "farmer@harvest.local", Role: entity.RoleFarmer, Address: "Plot 7, Valley Road"},
		{Name: "Ravi Buyer", Email: "buyer@harvest.local", Role: entity.RoleBuyer, Address: "12 Market Street"},
	}

	ids := make(map[entity.Role]int64, len(samples))
	for _, sample := range samples {
		u := sample
		existing := new(entity.User)
		err := tx.NewSelect().Model(existing).Column("id").Where("email = ?", u.Email).Limit(1).Scan(ctx)
		if err == nil {
			ids[u.Role] = existing.ID
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lookup user %s: %w", u.Email, err)
		}

		u.PasswordHash = hash
		u.IsActive = true
		u.CreatedAt, u.UpdatedAt = now, now
		if _, err := tx.NewInsert().Model(&u).Exec(ctx); err != nil {
			return nil, fmt.Errorf("insert user %s: %w", u.Email, err)
		}
		ids[u.Role] = u.ID
	}

	s.logger.Info("seeded users", zap.Int("count", len(samples)))
	return ids, nil
}

func (s *Seeder) categories(ctx context.Context, tx bun.Tx) (map[string]int64, error) {
	now := s.now()
	names := []string{"Vegetables", "Fruits", "Grains", "Dairy"}

	ids := make(map[string]int64, len(names))
	for i, name := range names {
		c := &entity.Category{Name: name, DisplayOrder: i + 1, CreatedAt: now}
		existing := new(entity.Category)
		err := tx.NewSelect().Model(existing).Column("id").Where("name = ?", name).Limit(1).Scan(ctx)
		if err == nil {
			ids[name] = existing.ID
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lookup category %s: %w", name, err)
		}
		if _, err := tx.NewInsert().Model(c).Exec(ctx); err != nil {
			return nil, fmt.Errorf("insert category %s: %w", name, err)
		}
		ids[name] = c.ID
	}

	s.logger.Info("seeded categories", zap.Int("count", len(names)))
	return ids, nil
}

func (s *Seeder) products(ctx context.Context, tx bun.Tx, farmerID int64, categories map[string]int64) error {
	now := s.now()
	samples := []struct {
		name     string
		category string
		price    string
		quantity int
		unit     string
	}{
		{"Tomatoes", "Vegetables", "40.00", 200, "kg"},
		{"Spinach", "Vegetables", "25.00", 80, "bunch"},
		{"Mangoes", "Fruits", "120.00", 150, "kg"},
		{"Basmati Rice", "Grains", "95.50", 500, "kg"},
		{"Fresh Milk", "Dairy", "60.00", 100, "litre"},
	}

	inserted := 0
	for _, sample := range samples {
		exists, err := tx.NewSelect().Model((*entity.Product)(nil)).
			Where("farmer_id = ? AND name = ?", farmerID, sample.name).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("lookup product %s: %w", sample.name, err)
		}
		if exists {
			continue
		}

		p := &entity.Product{
			FarmerID:   farmerID,
			CategoryID: categories[sample.category],
			Name:       sample.name,
			Price:      decimal.RequireFromString(sample.price),
			Quantity:   sample.quantity,
			Unit:       sample.unit,
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if _, err := tx.NewInsert().Model(p).Exec(ctx); err != nil {
			return fmt.Errorf("insert product %s: %w", sample.name, err)
		}
		inserted++
	}

	s.logger.Info("seeded products", zap.Int("inserted", inserted))
	return nil
}

func (s *Seeder) coupons(ctx context.Context, tx bun.Tx) error {
	now := s.now()
	limit := 1000
	c := &entity.Coupon{
		Code:           "WELCOME10",
		Description:    "10% off your first harvest",
		DiscountType:   entity.DiscountPercentage,
		DiscountValue:  decimal.NewFromInt(10),
		MinOrderAmount: decimal.NewFromInt(200),
		MaxDiscount:    decimal.NewNullDecimal(decimal.NewFromInt(100)),
		ValidFrom:      now,
		ValidTo:        now.AddDate(1, 0, 0),
		UsageLimit:     &limit,
		IsActive:       true,
		CreatedAt:      now,
	}

	exists, err := tx.NewSelect().Model((*entity.Coupon)(nil)).Where("code = ?", c.Code).Exists(ctx)
	if err != nil {
		return fmt.Errorf("lookup coupon: %w", err)
	}
	if exists {
		return nil
	}
	if _, err := tx.NewInsert().Model(c).Exec(ctx); err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}

	s.logger.Info("seeded coupons", zap.String("code", c.Code))
	return nil
}
