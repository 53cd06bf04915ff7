package application

import (
	"context"

	"github.com/storefront/orderflow/internal/order/domain"
)

// CartItem is one line of the user's cart as served by the cart service.
type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Product is the catalog's view of a product at read time.
type Product struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Available  int    `json:"available"`
}

type CartClient interface {
	GetCart(ctx context.Context, userID string) ([]CartItem, error)
	// ClearCart is effectively consume-once: a concurrent CreateOrder racing
	// after the first clear observes an empty cart.
	ClearCart(ctx context.Context, userID string) error
}

type CatalogClient interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
	// AdjustStock applies delta atomically at the catalog. Repeating a call
	// with the same idempotency key after a prior success is a no-op.
	AdjustStock(ctx context.Context, productID string, delta int, idempotencyKey string) error
}

type OrderRepository interface {
	Create(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, id string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, o domain.Order) error
	// UpdateStatusWithOutbox persists the status change and the outbox event
	// in one transaction; the relay delivers the event at least once.
	UpdateStatusWithOutbox(ctx context.Context, o domain.Order, eventType string, payload []byte, headers map[string]string, traceparent string) error
}
