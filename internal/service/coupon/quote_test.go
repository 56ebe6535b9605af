package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Additional-Code/harvest/internal/entity"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestQuote(t *testing.T) {
	capped := decimal.NewNullDecimal(d("50"))

	cases := []struct {
		name     string
		coupon   *entity.Coupon
		subtotal string
		want     string
	}{
		{
			name:     "percentage",
			coupon:   &entity.Coupon{DiscountType: entity.DiscountPercentage, DiscountValue: d("10")},
			subtotal: "300",
			want:     "30",
		},
		{
			name:     "percentage capped",
			coupon:   &entity.Coupon{DiscountType: entity.DiscountPercentage, DiscountValue: d("20"), MaxDiscount: capped},
			subtotal: "1000",
			want:     "50",
		},
		{
			name:     "percentage rounds to cents",
			coupon:   &entity.Coupon{DiscountType: entity.DiscountPercentage, DiscountValue: d("10")},
			subtotal: "333.33",
			want:     "33.33",
		},
		{
			name:     "below minimum order",
			coupon:   &entity.Coupon{DiscountType: entity.DiscountFixed, DiscountValue: d("100"), MinOrderAmount: d("500")},
			subtotal: "499.99",
			want:     "0",
		},
		{
			name:     "at minimum order",
			coupon:   &entity.Coupon{DiscountType: entity.DiscountFixed, DiscountValue: d("100"), MinOrderAmount: d("500")},
			subtotal: "500",
			want:     "100",
		},
		{
			name:     "fixed exceeds subtotal",
			coupon:   &entity.Coupon{DiscountType: entity.DiscountFixed, DiscountValue: d("500")},
			subtotal: "120",
			want:     "500",
		},
		{
			name:     "unknown type",
			coupon:   &entity.Coupon{DiscountType: "bogo", DiscountValue: d("5")},
			subtotal: "120",
			want:     "0",
		},
		{
			name:     "nil coupon",
			subtotal: "120",
			want:     "0",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Quote(tc.coupon, d(tc.subtotal))
			assert.True(t, got.Equal(d(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestNormaliseCode(t *testing.T) {
	assert.Equal(t, "FRESH10", NormaliseCode("  fresh10 "))
	assert.Equal(t, "", NormaliseCode("   "))
}
