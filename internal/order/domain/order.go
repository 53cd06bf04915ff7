package domain

import (
	"errors"
	"time"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusCancelled OrderStatus = "cancelled"
)

var (
	ErrNotFound   = errors.New("order not found")
	ErrCancelled  = errors.New("order is cancelled")
	ErrNotPending = errors.New("order is not pending")
)

// Order is the aggregate root. Status moves pending -> confirmed or
// pending -> cancelled; both end states are terminal. Lines and prices are
// frozen at creation time.
type Order struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	Lines      []OrderLine `json:"lines"`
	TotalCents int64       `json:"total_cents"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// OrderLine snapshots the catalog price at creation; it is never re-read.
type OrderLine struct {
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

func NewOrder(id, userID string, lines []OrderLine) Order {
	var total int64
	for _, line := range lines {
		total += int64(line.Quantity) * line.UnitPriceCents
	}
	now := time.Now().UTC()
	return Order{
		ID:         id,
		UserID:     userID,
		Lines:      lines,
		TotalCents: total,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Confirm transitions pending -> confirmed. Confirming an already confirmed
// order reports changed=false so callers can skip persisting and publishing.
func (o *Order) Confirm(now time.Time) (changed bool, err error) {
	switch o.Status {
	case StatusConfirmed:
		return false, nil
	case StatusCancelled:
		return false, ErrCancelled
	}
	o.Status = StatusConfirmed
	o.UpdatedAt = now
	return true, nil
}

// Cancel transitions pending -> cancelled. Confirmed orders need the
// return/refund flow instead.
func (o *Order) Cancel(now time.Time) error {
	if o.Status != StatusPending {
		return ErrNotPending
	}
	o.Status = StatusCancelled
	o.UpdatedAt = now
	return nil
}
