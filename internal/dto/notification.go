package dto

import (
	"time"

	"github.com/Additional-Code/harvest/internal/entity"
)

// NotificationResponse is a notification as shown to its owner.
type NotificationResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnreadCountResponse is the body of the unread counter endpoint.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// FromNotification maps a stored notification.
func FromNotification(n *entity.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Category,
		Link:      n.Link,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

// FromNotifications maps a list of notifications.
func FromNotifications(in []*entity.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(in))
	for _, n := range in {
		out = append(out, FromNotification(n))
	}
	return out
}
