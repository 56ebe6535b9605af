package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/harvest/internal/entity"
)

// ProductRequest is the body of product create and update calls. Omitted
// fields are left unchanged on update.
type ProductRequest struct {
	FarmerID    int64            `json:"farmerId"`
	CategoryID  *int64           `json:"categoryId"`
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *int             `json:"quantity"`
	Unit        *string          `json:"unit"`
	ImageURL    *string          `json:"imageUrl"`
	IsActive    *bool            `json:"isActive"`
}

// CategoryResponse is a browsable category.
type CategoryResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ProductResponse is a catalogue entry.
type ProductResponse struct {
	ID          int64             `json:"id"`
	FarmerID    int64             `json:"farmerId"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Category    *CategoryResponse `json:"category,omitempty"`
	Price       decimal.Decimal   `json:"price"`
	Quantity    int               `json:"quantity"`
	Unit        string            `json:"unit"`
	ImageURL    string            `json:"imageUrl,omitempty"`
	TotalSold   int               `json:"totalSold"`
	IsActive    bool              `json:"isActive"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// ProductListResponse is one page of the catalogue.
type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
}

// FromCategory maps a category.
func FromCategory(c *entity.Category) CategoryResponse {
	return CategoryResponse{ID: c.ID, Name: c.Name, Description: c.Description}
}

// FromCategories maps categories.
func FromCategories(in []*entity.Category) []CategoryResponse {
	out := make([]CategoryResponse, 0, len(in))
	for _, c := range in {
		out = append(out, FromCategory(c))
	}
	return out
}

// FromProduct maps a product.
func FromProduct(p *entity.Product) ProductResponse {
	out := ProductResponse{
		ID:          p.ID,
		FarmerID:    p.FarmerID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    p.Quantity,
		Unit:        p.Unit,
		ImageURL:    p.ImageURL,
		TotalSold:   p.TotalSold,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Category != nil && p.Category.ID != 0 {
		c := FromCategory(p.Category)
		out.Category = &c
	}
	return out
}

// FromProducts maps a page of products.
func FromProducts(in []*entity.Product, total int) ProductListResponse {
	out := ProductListResponse{Products: make([]ProductResponse, 0, len(in)), Total: total}
	for _, p := range in {
		out.Products = append(out.Products, FromProduct(p))
	}
	return out
}
