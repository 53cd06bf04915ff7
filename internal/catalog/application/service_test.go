package application

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/orderflow/internal/catalog/domain"
	"github.com/storefront/orderflow/pkg/apperr"
)

// fakeLedger mirrors the repository contract: atomic compare-and-apply plus
// idempotency-key replay.
type fakeLedger struct {
	products map[string]domain.Product
	applied  map[string]domain.Adjustment
}

func newFakeLedger(products ...domain.Product) *fakeLedger {
	m := make(map[string]domain.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return &fakeLedger{products: m, applied: map[string]domain.Adjustment{}}
}

func (l *fakeLedger) GetProduct(_ context.Context, id string) (domain.Product, error) {
	p, ok := l.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (l *fakeLedger) Adjust(_ context.Context, id string, delta int, key string) (domain.Adjustment, error) {
	if prior, ok := l.applied[key]; ok {
		return prior, nil
	}
	p, ok := l.products[id]
	if !ok {
		return domain.Adjustment{}, domain.ErrNotFound
	}
	if p.Available+delta < 0 {
		return domain.Adjustment{}, domain.ErrInsufficientStock
	}
	p.Available += delta
	l.products[id] = p
	adj := domain.Adjustment{Key: key, ProductID: id, Delta: delta, Remaining: p.Available, AppliedAt: time.Now().UTC()}
	l.applied[key] = adj
	return adj, nil
}

func newTestService(ledger *fakeLedger) *Service {
	return NewService(slog.New(slog.DiscardHandler), ledger)
}

func TestAdjustStock_AppliesDelta(t *testing.T) {
	ledger := newFakeLedger(domain.Product{ID: "p1", Available: 10})
	s := newTestService(ledger)

	adj, err := s.AdjustStock(context.Background(), "p1", -3, "k1")
	require.NoError(t, err)
	assert.Equal(t, 7, adj.Remaining)
}

func TestAdjustStock_ReplaySameKeyIsNoOp(t *testing.T) {
	ledger := newFakeLedger(domain.Product{ID: "p1", Available: 10})
	s := newTestService(ledger)

	first, err := s.AdjustStock(context.Background(), "p1", -3, "k1")
	require.NoError(t, err)

	second, err := s.AdjustStock(context.Background(), "p1", -3, "k1")
	require.NoError(t, err)
	assert.Equal(t, first, second, "replay returns the prior result")
	assert.Equal(t, 7, ledger.products["p1"].Available, "no double decrement")
}

func TestAdjustStock_RejectsOverDecrement(t *testing.T) {
	ledger := newFakeLedger(domain.Product{ID: "p1", Available: 2})
	s := newTestService(ledger)

	_, err := s.AdjustStock(context.Background(), "p1", -3, "k1")
	assert.True(t, apperr.Is(err, apperr.Conflict))
	assert.Equal(t, 2, ledger.products["p1"].Available, "no effect")
}

func TestAdjustStock_Validation(t *testing.T) {
	s := newTestService(newFakeLedger(domain.Product{ID: "p1", Available: 2}))

	_, err := s.AdjustStock(context.Background(), "p1", -1, "")
	assert.True(t, apperr.Is(err, apperr.Validation), "key required")

	_, err = s.AdjustStock(context.Background(), "p1", 0, "k")
	assert.True(t, apperr.Is(err, apperr.Validation), "zero delta rejected")
}

func TestAdjustStock_UnknownProduct(t *testing.T) {
	s := newTestService(newFakeLedger())
	_, err := s.AdjustStock(context.Background(), "ghost", -1, "k")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestGetProduct(t *testing.T) {
	s := newTestService(newFakeLedger(domain.Product{ID: "p1", Name: "Widget", PriceCents: 1000, Available: 5}))

	p, err := s.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), p.PriceCents)

	_, err = s.GetProduct(context.Background(), "ghost")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}
