package broker

import (
	"context"
	"fmt"

	"storefront/internal/models"
)

// EventPublisher publishes storefront domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	key := fmt.Sprintf("user-%s", event.Username)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCheckoutFailed publishes CheckoutFailed event
func (ep *EventPublisher) PublishCheckoutFailed(ctx context.Context, event *models.CheckoutFailedEvent) error {
	key := fmt.Sprintf("user-%s", event.Username)
	return ep.producer.PublishEvent(ctx, key, event)
}
