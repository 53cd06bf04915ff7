package application

import (
	"context"

	"github.com/storefront/orderflow/internal/catalog/domain"
)

type StockRepository interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	// Adjust applies delta atomically: the quantity check and the write are
	// one linearizable operation at the datastore. A delta that would take
	// availability below zero returns domain.ErrInsufficientStock with no
	// effect. A replayed idempotency key returns the prior Adjustment.
	Adjust(ctx context.Context, productID string, delta int, idempotencyKey string) (domain.Adjustment, error)
}
