package realtime

import (
	"context"
	"fmt"
	"time"
)

// Event names pushed to clients.
const (
	EventOrderStatusChanged = "orderStatusChanged"
	EventNotification       = "notification"
)

// Event is one frame delivered to every member of a room.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// StatusChange is the payload of EventOrderStatusChanged.
type StatusChange struct {
	OrderID     int64     `json:"orderId"`
	Status      string    `json:"status"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Broker fans events out to room subscribers, possibly across instances.
type Broker interface {
	Publish(ctx context.Context, room string, event Event) error
}

// OrderRoom names the room tracking one order.
func OrderRoom(orderID int64) string {
	return fmt.Sprintf("order_%d", orderID)
}

// UserRoom names the private room of one user.
func UserRoom(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}
