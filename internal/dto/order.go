package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/harvest/internal/entity"
)

func init() {
	// Money is rendered as a JSON number.
	decimal.MarshalJSONWithoutQuotes = true
}

// OrderLineRequest is one requested (product, quantity) pair.
type OrderLineRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// PlaceOrderRequest is the body of POST /orders.
type PlaceOrderRequest struct {
	Items                []OrderLineRequest `json:"items"`
	DeliveryAddress      string             `json:"deliveryAddress"`
	DeliveryInstructions string             `json:"deliveryInstructions"`
	PaymentMethod        string             `json:"paymentMethod"`
	CouponCode           string             `json:"couponCode"`
}

// PlaceOrderResponse is returned once an order is committed.
type PlaceOrderResponse struct {
	OrderID              int64           `json:"orderId"`
	OrderNumber          string          `json:"orderNumber"`
	TrackingID           string          `json:"trackingId"`
	Status               string          `json:"status"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	DeliveryCharge       decimal.Decimal `json:"deliveryCharge"`
	Discount             decimal.Decimal `json:"discount"`
	FinalAmount          decimal.Decimal `json:"finalAmount"`
	ExpectedDeliveryDate time.Time       `json:"expectedDeliveryDate"`
}

// UpdateStatusRequest is the body of PUT /orders/:id/status.
type UpdateStatusRequest struct {
	Status      string `json:"status"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// MessageResponse carries a human-readable acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// PartyResponse is the public view of an order's buyer.
type PartyResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// OrderItemResponse is one line item joined to its product.
type OrderItemResponse struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"productId"`
	FarmerID    int64           `json:"farmerId"`
	ProductName string          `json:"productName,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Unit        string          `json:"unit,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

// TrackingResponse is one entry of an order's status history.
type TrackingResponse struct {
	Status      string    `json:"status"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID                   int64               `json:"orderId"`
	Number               string              `json:"orderNumber"`
	BuyerID              int64               `json:"buyerId"`
	Buyer                *PartyResponse      `json:"buyer,omitempty"`
	Subtotal             decimal.Decimal     `json:"subtotal"`
	DeliveryCharge       decimal.Decimal     `json:"deliveryCharge"`
	Discount             decimal.Decimal     `json:"discount"`
	FinalAmount          decimal.Decimal     `json:"finalAmount"`
	CouponCode           string              `json:"couponCode,omitempty"`
	Status               string              `json:"status"`
	PaymentMethod        string              `json:"paymentMethod"`
	DeliveryAddress      string              `json:"deliveryAddress"`
	DeliveryInstructions string              `json:"deliveryInstructions,omitempty"`
	TrackingID           string              `json:"trackingId"`
	ExpectedDeliveryDate *time.Time          `json:"expectedDeliveryDate,omitempty"`
	CreatedAt            time.Time           `json:"createdAt"`
	UpdatedAt            time.Time           `json:"updatedAt"`
	Items                []OrderItemResponse `json:"items"`
	Tracking             []TrackingResponse  `json:"tracking,omitempty"`
}

// OrderListResponse is one page of orders.
type OrderListResponse struct {
	Orders     []OrderResponse `json:"orders"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

// FromPlacedOrder builds the creation acknowledgement.
func FromPlacedOrder(o *entity.Order) PlaceOrderResponse {
	return PlaceOrderResponse{
		OrderID:              o.ID,
		OrderNumber:          o.Number,
		TrackingID:           o.TrackingID,
		Status:               string(o.Status),
		Subtotal:             o.Subtotal,
		DeliveryCharge:       o.DeliveryCharge,
		Discount:             o.Discount,
		FinalAmount:          o.FinalAmount,
		ExpectedDeliveryDate: o.ExpectedDeliveryDate,
	}
}

// FromOrder maps an order with whatever relations were loaded.
func FromOrder(o *entity.Order) OrderResponse {
	out := OrderResponse{
		ID:                   o.ID,
		Number:               o.Number,
		BuyerID:              o.BuyerID,
		Subtotal:             o.Subtotal,
		DeliveryCharge:       o.DeliveryCharge,
		Discount:             o.Discount,
		FinalAmount:          o.FinalAmount,
		CouponCode:           o.CouponCode,
		Status:               string(o.Status),
		PaymentMethod:        string(o.PaymentMethod),
		DeliveryAddress:      o.DeliveryAddress,
		DeliveryInstructions: o.DeliveryInstructions,
		TrackingID:           o.TrackingID,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
		Items:                make([]OrderItemResponse, 0, len(o.Items)),
	}
	if !o.ExpectedDeliveryDate.IsZero() {
		eta := o.ExpectedDeliveryDate
		out.ExpectedDeliveryDate = &eta
	}
	if o.Buyer != nil && o.Buyer.ID != 0 {
		out.Buyer = &PartyResponse{ID: o.Buyer.ID, Name: o.Buyer.Name, Email: o.Buyer.Email, Phone: o.Buyer.Phone}
	}
	for _, item := range o.Items {
		line := OrderItemResponse{
			ID:         item.ID,
			ProductID:  item.ProductID,
			FarmerID:   item.FarmerID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.TotalPrice,
		}
		if item.Product != nil {
			line.ProductName = item.Product.Name
			line.ImageURL = item.Product.ImageURL
			line.Unit = item.Product.Unit
		}
		out.Items = append(out.Items, line)
	}
	for _, ev := range o.Tracking {
		out.Tracking = append(out.Tracking, TrackingResponse{
			Status:      ev.Status,
			Location:    ev.Location,
			Description: ev.Description,
			Timestamp:   ev.CreatedAt,
		})
	}
	return out
}

// FromOrders maps a page of orders.
func FromOrders(orders []*entity.Order, nextCursor string) OrderListResponse {
	out := OrderListResponse{Orders: make([]OrderResponse, 0, len(orders)), NextCursor: nextCursor}
	for _, o := range orders {
		out.Orders = append(out.Orders, FromOrder(o))
	}
	return out
}

// FarmerDashboardResponse summarises a farmer's catalogue and sales.
type FarmerDashboardResponse struct {
	TotalProducts int             `json:"totalProducts"`
	TotalOrders   int             `json:"totalOrders"`
	ActiveOrders  int             `json:"activeOrders"`
	TotalSales    decimal.Decimal `json:"totalSales"`
}
