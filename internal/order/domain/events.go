package domain

// EventOrderConfirmed is the outbox event type published when an order is
// confirmed. The shipment service consumes it as a wake-up hint only and
// re-derives order state through the read boundary.
const EventOrderConfirmed = "OrderConfirmed"

type OrderConfirmed struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}
