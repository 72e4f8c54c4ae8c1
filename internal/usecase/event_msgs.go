package usecase

import "time"

const (
	EventOrderPlaced    = "order.placed"
	EventOrderPrepared  = "order.prepared"
	EventOrderCollected = "order.collected"
	EventOrderCancelled = "order.cancelled"

	NotifyOrderReady     = "order.ready"
	NotifyOrderCollected = "order.collected"
	NotifyOrderCancelled = "order.cancelled"
	NotifyCouponIssued   = "coupon.issued"
)

// Published on Kafka for downstream consumers (reporting, analytics).
type OrderEvent struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"orderId"`
	CustomerID     string    `json:"customerId"`
	Class          string    `json:"class"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	Status         string    `json:"status"`
	Total          string    `json:"total"`
	Refund         string    `json:"refund,omitempty"`
	CouponCode     string    `json:"couponCode,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Sent to RabbitMQ; a separate delivery service turns it into push/SMS/email.
type Notification struct {
	Kind       string            `json:"kind"`
	CustomerID string            `json:"customerId"`
	OrderID    string            `json:"orderId,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	At         time.Time         `json:"at"`
}

// Sent by the kitchen display over RabbitMQ.
type KitchenCommand struct {
	Command string `json:"command"` // "prepared"
	OrderID string `json:"orderId"`
}

// Sent by the promotions tool on Kafka.
type PromotionToggleMsg struct {
	Code   string `json:"code"`
	Active bool   `json:"active"`
}
