package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/harvest/internal/entity"
)

// CategoryRequest is the body of admin category create and update calls.
type CategoryRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	DisplayOrder int    `json:"displayOrder"`
}

// UserStatusRequest is the body of PUT /admin/users/:userId/status.
type UserStatusRequest struct {
	IsActive bool `json:"isActive"`
}

// AdminUserResponse is an account as shown to administrators.
type AdminUserResponse struct {
	UserResponse
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// AdminUserListResponse is one page of accounts.
type AdminUserListResponse struct {
	Users []AdminUserResponse `json:"users"`
	Total int                 `json:"total"`
}

// ProductRemovedResponse reports how a product was taken off the catalogue.
type ProductRemovedResponse struct {
	Message     string `json:"message"`
	Deleted     bool   `json:"deleted"`
	Deactivated bool   `json:"deactivated"`
}

// MonthRevenueResponse is the revenue of one month.
type MonthRevenueResponse struct {
	Month      string          `json:"month"`
	Revenue    decimal.Decimal `json:"revenue"`
	OrderCount int             `json:"orderCount"`
}

// AdminStatsResponse is the body of GET /admin/stats.
type AdminStatsResponse struct {
	TotalUsers     int                    `json:"totalUsers"`
	TotalProducts  int                    `json:"totalProducts"`
	TotalOrders    int                    `json:"totalOrders"`
	TotalRevenue   decimal.Decimal        `json:"totalRevenue"`
	OrdersByStatus map[string]int         `json:"ordersByStatus"`
	RecentOrders   []OrderResponse        `json:"recentOrders"`
	TopProducts    []ProductResponse      `json:"topProducts"`
	MonthlyRevenue []MonthRevenueResponse `json:"monthlyRevenue"`
}

// FromAdminUser maps a user for the admin listing.
func FromAdminUser(u *entity.User) AdminUserResponse {
	return AdminUserResponse{UserResponse: FromUser(u), IsActive: u.IsActive, CreatedAt: u.CreatedAt}
}

// FromAdminUsers maps a page of users.
func FromAdminUsers(in []*entity.User, total int) AdminUserListResponse {
	out := AdminUserListResponse{Users: make([]AdminUserResponse, 0, len(in)), Total: total}
	for _, u := range in {
		out.Users = append(out.Users, FromAdminUser(u))
	}
	return out
}
