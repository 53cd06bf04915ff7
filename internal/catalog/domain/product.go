package domain

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Available  int       `json:"available"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Adjustment is the recorded outcome of one stock mutation. A repeated call
// with the same key returns the stored record instead of re-applying.
type Adjustment struct {
	Key       string    `json:"key"`
	ProductID string    `json:"product_id"`
	Delta     int       `json:"delta"`
	Remaining int       `json:"remaining"`
	AppliedAt time.Time `json:"applied_at"`
}
