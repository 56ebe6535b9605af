package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/messaging"
)

// Domain event types carried in the messaging.HeaderEventType header.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is emitted when an order is persisted or changes status.
type OrderEvent struct {
	ID             int64           `json:"id"`
	Number         string          `json:"number"`
	BuyerID        int64           `json:"buyer_id"`
	Status         string          `json:"status"`
	PreviousStatus string          `json:"previous_status,omitempty"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	FarmerIDs      []int64         `json:"farmer_ids,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// DecodeEvent parses a message produced by publishEvent.
func DecodeEvent(msg messaging.Message) (string, OrderEvent, error) {
	var event OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return "", OrderEvent{}, err
	}
	eventType := msg.Headers[messaging.HeaderEventType]
	if eventType == "" {
		eventType = EventOrderCreated
	}
	return eventType, event, nil
}

func (s *Service) publishEvent(ctx context.Context, eventType string, event OrderEvent) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.String("type", eventType), zap.Error(err))
		return
	}
	key := []byte(fmt.Sprintf("order-%d", event.ID))
	headers := map[string]string{messaging.HeaderEventType: eventType}
	if err := s.publisher.Publish(ctx, key, payload, headers); err != nil {
		s.logger.Error("publish order event",
			zap.String("type", eventType),
			zap.Int64("order_id", event.ID),
			zap.Error(err),
		)
	}
}
