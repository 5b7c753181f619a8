package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"storefront-service/internal/entity"
)

const (
	OrderCreatedEvent       = "created"
	OrderStatusUpdatedEvent = "status_updated"
)

// EventPublisher is satisfied by *kafka.Writer.
type EventPublisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type OrderEvent struct {
	EventID    string        `json:"eventId"`
	Type       string        `json:"type"`
	OccurredAt time.Time     `json:"occurredAt"`
	Order      *entity.Order `json:"order"`
}

func (s *OrderService) publishOrderEvent(ctx context.Context, order *entity.Order, eventType string) error {
	if s.events == nil {
		return nil
	}

	orderJSON, err := json.Marshal(OrderEvent{
		EventID:    uuid.NewString(),
		Type:       "order." + eventType,
		OccurredAt: time.Now().UTC(),
		Order:      order,
	})
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(order.ID.Hex()),
		Value: orderJSON,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(fmt.Sprintf("order.%s", eventType))},
		},
	}

	// the order is already committed, a slow broker must not hold the response
	ctx, cancel := context.WithTimeout(ctx, s.eventTimeout)
	defer cancel()
	return s.events.WriteMessages(ctx, msg)
}
