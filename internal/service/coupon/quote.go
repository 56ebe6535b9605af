package coupon

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/harvest/internal/entity"
)

var hundred = decimal.NewFromInt(100)

// Quote computes the discount c grants on subtotal. Subtotals below the
// minimum order amount get nothing. Percentage discounts honour the optional
// cap; fixed discounts are granted in full even when they exceed subtotal.
func Quote(c *entity.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if c == nil || subtotal.LessThan(c.MinOrderAmount) {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case entity.DiscountPercentage:
		discount = subtotal.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscount.Valid && c.MaxDiscount.Decimal.IsPositive() && discount.GreaterThan(c.MaxDiscount.Decimal) {
			discount = c.MaxDiscount.Decimal
		}
	case entity.DiscountFixed:
		discount = c.DiscountValue
	default:
		return decimal.Zero
	}

	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount.Round(2)
}

// NormaliseCode canonicalises a user-entered coupon code.
func NormaliseCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
