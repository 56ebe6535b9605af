package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/harvest/internal/entity"
)

// CouponRequest is the body of POST /admin/coupons.
type CouponRequest struct {
	Code           string           `json:"code"`
	Description    string           `json:"description"`
	DiscountType   string           `json:"discountType"`
	DiscountValue  decimal.Decimal  `json:"discountValue"`
	MinOrderAmount decimal.Decimal  `json:"minOrderAmount"`
	MaxDiscount    *decimal.Decimal `json:"maxDiscount"`
	ValidFrom      time.Time        `json:"validFrom"`
	ValidTo        time.Time        `json:"validTo"`
	UsageLimit     *int             `json:"usageLimit"`
}

// CouponToggleRequest is the body of PUT /admin/coupons/:id.
type CouponToggleRequest struct {
	IsActive bool `json:"isActive"`
}

// CouponResponse is a coupon as shown to admins.
type CouponResponse struct {
	ID             int64            `json:"id"`
	Code           string           `json:"code"`
	Description    string           `json:"description,omitempty"`
	DiscountType   string           `json:"discountType"`
	DiscountValue  decimal.Decimal  `json:"discountValue"`
	MinOrderAmount decimal.Decimal  `json:"minOrderAmount"`
	MaxDiscount    *decimal.Decimal `json:"maxDiscount,omitempty"`
	ValidFrom      time.Time        `json:"validFrom"`
	ValidTo        time.Time        `json:"validTo"`
	UsageLimit     *int             `json:"usageLimit,omitempty"`
	UsedCount      int              `json:"usedCount"`
	IsActive       bool             `json:"isActive"`
}

// FromCoupon maps a coupon.
func FromCoupon(c *entity.Coupon) CouponResponse {
	out := CouponResponse{
		ID:             c.ID,
		Code:           c.Code,
		Description:    c.Description,
		DiscountType:   string(c.DiscountType),
		DiscountValue:  c.DiscountValue,
		MinOrderAmount: c.MinOrderAmount,
		ValidFrom:      c.ValidFrom,
		ValidTo:        c.ValidTo,
		UsageLimit:     c.UsageLimit,
		UsedCount:      c.UsedCount,
		IsActive:       c.IsActive,
	}
	if c.MaxDiscount.Valid {
		maxDiscount := c.MaxDiscount.Decimal
		out.MaxDiscount = &maxDiscount
	}
	return out
}

// FromCoupons maps coupons.
func FromCoupons(in []*entity.Coupon) []CouponResponse {
	out := make([]CouponResponse, 0, len(in))
	for _, c := range in {
		out = append(out, FromCoupon(c))
	}
	return out
}
