package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Product is produce listed by a farmer.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID          int64           `bun:",pk,autoincrement"`
	FarmerID    int64           `bun:"farmer_id,notnull"`
	CategoryID  int64           `bun:"category_id,nullzero"`
	Name        string          `bun:"name,notnull"`
	Description string          `bun:"description,nullzero"`
	Price       decimal.Decimal `bun:"price,type:decimal(12,2),notnull"`
	Quantity    int             `bun:"quantity,notnull"`
	Unit        string          `bun:"unit,notnull"`
	ImageURL    string          `bun:"image_url,nullzero"`
	TotalSold   int             `bun:"total_sold,notnull"`
	IsActive    bool            `bun:"is_active,notnull"`
	CreatedAt   time.Time       `bun:"created_at,notnull"`
	UpdatedAt   time.Time       `bun:"updated_at,notnull"`

	Category *Category `bun:"rel:belongs-to,join:category_id=id"`
}

// Category groups products for browsing.
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:c"`

	ID           int64     `bun:",pk,autoincrement"`
	Name         string    `bun:"name,notnull,unique"`
	Description  string    `bun:"description,nullzero"`
	DisplayOrder int       `bun:"display_order,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}
