package order

import "github.com/shopspring/decimal"

// Pricing holds the delivery fee rule.
type Pricing struct {
	FreeDeliveryThreshold decimal.Decimal
	DeliveryFee           decimal.Decimal
}

// DeliveryCharge is free at or above the threshold and the flat fee below it.
func (p Pricing) DeliveryCharge(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(p.FreeDeliveryThreshold) {
		return decimal.Zero
	}
	return p.DeliveryFee
}

// FinalAmount is subtotal + delivery - discount, floored at zero.
func FinalAmount(subtotal, delivery, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Add(delivery).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
