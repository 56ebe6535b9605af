package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Notification is a message addressed to a single user.
type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:n"`

	ID        int64     `bun:",pk,autoincrement"`
	UserID    int64     `bun:"user_id,notnull"`
	Title     string    `bun:"title,notnull"`
	Message   string    `bun:"message,notnull"`
	Category  string    `bun:"category,notnull"`
	Link      string    `bun:"link,nullzero"`
	IsRead    bool      `bun:"is_read,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// Models lists every persisted model, in dependency order.
var Models = []any{
	(*User)(nil),
	(*Category)(nil),
	(*Product)(nil),
	(*Coupon)(nil),
	(*Order)(nil),
	(*OrderItem)(nil),
	(*TrackingEvent)(nil),
	(*Notification)(nil),
}
