package domain

import (
	"errors"
	"time"
)

type ShipmentStatus string

const (
	StatusCreated   ShipmentStatus = "created"
	StatusInTransit ShipmentStatus = "in_transit"
	StatusDelivered ShipmentStatus = "delivered"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyDelivered  = errors.New("shipment already delivered")
	ErrUnknownStatus     = errors.New("unknown shipment status")
)

// Shipment follows a strictly linear lifecycle: created -> in_transit ->
// delivered, no skipping and no reverse. At most one shipment exists per
// order; the repository enforces that with a unique constraint.
type Shipment struct {
	ID        string         `json:"id"`
	OrderID   string         `json:"order_id"`
	Address   string         `json:"address"`
	Carrier   *string        `json:"carrier"`
	Status    ShipmentStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func NewShipment(id, orderID, address string) Shipment {
	now := time.Now().UTC()
	return Shipment{
		ID:        id,
		OrderID:   orderID,
		Address:   address,
		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Advance moves the shipment one step forward. Any other requested
// transition fails.
func (s *Shipment) Advance(to ShipmentStatus, now time.Time) error {
	if next, ok := nextStatus[s.Status]; !ok || next != to {
		if !validStatus(to) {
			return ErrUnknownStatus
		}
		return ErrInvalidTransition
	}
	s.Status = to
	s.UpdatedAt = now
	return nil
}

// AssignCarrier is permitted until delivery.
func (s *Shipment) AssignCarrier(carrier string, now time.Time) error {
	if s.Status == StatusDelivered {
		return ErrAlreadyDelivered
	}
	s.Carrier = &carrier
	s.UpdatedAt = now
	return nil
}

var nextStatus = map[ShipmentStatus]ShipmentStatus{
	StatusCreated:   StatusInTransit,
	StatusInTransit: StatusDelivered,
}

func validStatus(s ShipmentStatus) bool {
	switch s {
	case StatusCreated, StatusInTransit, StatusDelivered:
		return true
	}
	return false
}
