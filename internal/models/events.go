package models

import "time"

// Event types
const (
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeOrderPaid      = "ORDER_PAID"
	EventTypeOrderDelivered = "ORDER_DELIVERED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published after checkout places an order
type OrderCreatedEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	PaymentMethod string          `json:"payment_method"`
	TotalPrice    string          `json:"total_price"`
	Items         []OrderItemData `json:"items"`
}

// OrderPaidEvent published after payment settlement commits
type OrderPaidEvent struct {
	BaseEvent
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	UserEmail  string `json:"user_email"`
	TotalPrice string `json:"total_price"`
	ProviderID string `json:"provider_id"`
}

// OrderDeliveredEvent published when an order is marked delivered
type OrderDeliveredEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Qty       int    `json:"qty"`
	Price     string `json:"price"`
}
