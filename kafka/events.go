package kafka

import "time"

// PaymentEvent is published when an order is created or succeeds.
// Downstream consumers (order fulfilment, bookkeeping) key off the
// merchant order number.
type PaymentEvent struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	OrderID       string    `json:"order_id"`
	OutOrderNo    string    `json:"out_order_no"`
	TransactionID string    `json:"transaction_id,omitempty"`
	AmountCents   int64     `json:"amount_cents"`
	State         string    `json:"state"`
	Timestamp     time.Time `json:"timestamp"`
}

// Event types
const (
	EventTypePaymentCreated   = "payment.created"
	EventTypePaymentSucceeded = "payment.succeeded"
)

// Kafka topics
const (
	TopicPaymentEvents = "payment-events"
)
