package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// OrderStatus enumerates the fulfilment states of an order.
type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusProcessing     OrderStatus = "processing"
	StatusPacked         OrderStatus = "packed"
	StatusShipped        OrderStatus = "shipped"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
)

// FulfilmentSequence lists the forward path an order travels.
var FulfilmentSequence = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusPacked,
	StatusShipped,
	StatusOutForDelivery,
	StatusDelivered,
}

// Rank returns the position of s on the fulfilment path, or -1 for
// cancelled and unknown values.
func (s OrderStatus) Rank() int {
	for i, st := range FulfilmentSequence {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	return s == StatusCancelled || s.Rank() >= 0
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// PaymentMethod enumerates accepted ways to pay.
type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentOnline PaymentMethod = "online"
	PaymentUPI    PaymentMethod = "upi"
)

// Order is a buyer's purchase with its monetary breakdown.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID                   int64           `bun:",pk,autoincrement"`
	Number               string          `bun:"number,notnull,unique"`
	BuyerID              int64           `bun:"buyer_id,notnull"`
	Subtotal             decimal.Decimal `bun:"subtotal,type:decimal(12,2),notnull"`
	DeliveryCharge       decimal.Decimal `bun:"delivery_charge,type:decimal(12,2),notnull"`
	Discount             decimal.Decimal `bun:"discount,type:decimal(12,2),notnull"`
	FinalAmount          decimal.Decimal `bun:"final_amount,type:decimal(12,2),notnull"`
	CouponCode           string          `bun:"coupon_code,nullzero"`
	Status               OrderStatus     `bun:"status,notnull"`
	PaymentMethod        PaymentMethod   `bun:"payment_method,notnull"`
	DeliveryAddress      string          `bun:"delivery_address,notnull"`
	DeliveryInstructions string          `bun:"delivery_instructions,nullzero"`
	TrackingID           string          `bun:"tracking_id,notnull,unique"`
	ExpectedDeliveryDate time.Time       `bun:"expected_delivery_date,nullzero"`
	Version              int             `bun:"version,notnull"`
	CreatedAt            time.Time       `bun:"created_at,notnull"`
	UpdatedAt            time.Time       `bun:"updated_at,notnull"`

	Buyer    *User            `bun:"rel:belongs-to,join:buyer_id=id"`
	Items    []*OrderItem     `bun:"rel:has-many,join:id=order_id"`
	Tracking []*TrackingEvent `bun:"rel:has-many,join:id=order_id"`
}

// HasFarmer reports whether any loaded line item belongs to farmerID.
func (o *Order) HasFarmer(farmerID int64) bool {
	for _, item := range o.Items {
		if item.FarmerID == farmerID {
			return true
		}
	}
	return false
}

// OrderItem is an immutable line of an order with its price snapshot.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID         int64           `bun:",pk,autoincrement"`
	OrderID    int64           `bun:"order_id,notnull"`
	ProductID  int64           `bun:"product_id,notnull"`
	FarmerID   int64           `bun:"farmer_id,notnull"`
	Quantity   int             `bun:"quantity,notnull"`
	UnitPrice  decimal.Decimal `bun:"unit_price,type:decimal(12,2),notnull"`
	TotalPrice decimal.Decimal `bun:"total_price,type:decimal(12,2),notnull"`
	CreatedAt  time.Time       `bun:"created_at,notnull"`

	Product *Product `bun:"rel:belongs-to,join:product_id=id"`
}

// TrackingEvent is one append-only entry of an order's status history.
type TrackingEvent struct {
	bun.BaseModel `bun:"table:order_tracking,alias:ot"`

	ID          int64     `bun:",pk,autoincrement"`
	OrderID     int64     `bun:"order_id,notnull"`
	Status      string    `bun:"status,notnull"`
	Location    string    `bun:"location,nullzero"`
	Description string    `bun:"description,nullzero"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}
