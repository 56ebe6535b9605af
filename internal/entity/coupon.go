package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// DiscountType selects how a coupon's value is applied.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon is a redeemable discount code.
type Coupon struct {
	bun.BaseModel `bun:"table:coupons,alias:cp"`

	ID             int64               `bun:",pk,autoincrement"`
	Code           string              `bun:"code,notnull,unique"`
	Description    string              `bun:"description,nullzero"`
	DiscountType   DiscountType        `bun:"discount_type,notnull"`
	DiscountValue  decimal.Decimal     `bun:"discount_value,type:decimal(12,2),notnull"`
	MinOrderAmount decimal.Decimal     `bun:"min_order_amount,type:decimal(12,2),notnull"`
	MaxDiscount    decimal.NullDecimal `bun:"max_discount,type:decimal(12,2)"`
	ValidFrom      time.Time           `bun:"valid_from,notnull"`
	ValidTo        time.Time           `bun:"valid_to,notnull"`
	UsageLimit     *int                `bun:"usage_limit"`
	UsedCount      int                 `bun:"used_count,notnull"`
	IsActive       bool                `bun:"is_active,notnull"`
	CreatedAt      time.Time           `bun:"created_at,notnull"`
}

// Exhausted reports whether the usage limit has been reached.
func (c *Coupon) Exhausted() bool {
	return c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit
}

// ActiveAt reports whether the coupon may be redeemed at t.
func (c *Coupon) ActiveAt(t time.Time) bool {
	return c.IsActive && !t.Before(c.ValidFrom) && !t.After(c.ValidTo) && !c.Exhausted()
}
