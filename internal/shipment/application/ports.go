package application

import (
	"context"
	"errors"

	"github.com/storefront/orderflow/internal/shipment/domain"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrDuplicateShipment is returned by the repository when the unique
	// order_id constraint trips; it closes the check-then-create race.
	ErrDuplicateShipment = errors.New("shipment already exists for order")
	ErrShipmentNotFound  = errors.New("shipment not found")
)

// OrderView is what the shipment service reads from the order boundary.
type OrderView struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// OrderReader is the read-only call into the order service. The guard treats
// it, not the confirmation event, as the source of truth.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (OrderView, error)
}

type ShipmentRepository interface {
	Create(ctx context.Context, s domain.Shipment) error
	Get(ctx context.Context, id string) (domain.Shipment, error)
	GetByOrder(ctx context.Context, orderID string) (domain.Shipment, error)
	Update(ctx context.Context, s domain.Shipment) error
}
