package models

import "time"

// Event types
const (
	EventTypeOrderPlaced    = "OrderPlaced"
	EventTypeCheckoutFailed = "CheckoutFailed"
)

// BaseEvent contains common event fields
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderLine is a cart line snapshot carried on order events
type OrderLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitCost  int64  `json:"unit_cost"`
}

// OrderPlacedEvent is published after the backend confirms an order
type OrderPlacedEvent struct {
	BaseEvent
	Username  string      `json:"username"`
	AddressID string      `json:"address_id"`
	Amount    int64       `json:"amount"`
	Lines     []OrderLine `json:"lines"`
}

// CheckoutFailedEvent is published when order placement is rejected
type CheckoutFailedEvent struct {
	BaseEvent
	Username string `json:"username"`
	Reason   string `json:"reason"`
}
