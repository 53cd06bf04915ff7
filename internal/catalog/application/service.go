package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/storefront/orderflow/internal/catalog/domain"
	"github.com/storefront/orderflow/pkg/apperr"
)

// Service is the stock ledger boundary. It owns no locking of its own; all
// mutation flows through the repository's single atomic adjust.
type Service struct {
	log  *slog.Logger
	repo StockRepository
}

func NewService(log *slog.Logger, repo StockRepository) *Service {
	return &Service{log: log, repo: repo}
}

func (s *Service) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Product{}, apperr.Wrap(apperr.NotFound, "product not found", err)
		}
		return domain.Product{}, apperr.Wrap(apperr.Internal, "read product", err)
	}
	return p, nil
}

func (s *Service) AdjustStock(ctx context.Context, productID string, delta int, idempotencyKey string) (domain.Adjustment, error) {
	if idempotencyKey == "" {
		return domain.Adjustment{}, apperr.New(apperr.Validation, "idempotency key is required")
	}
	if delta == 0 {
		return domain.Adjustment{}, apperr.New(apperr.Validation, "delta must be non-zero")
	}

	adj, err := s.repo.Adjust(ctx, productID, delta, idempotencyKey)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return domain.Adjustment{}, apperr.Wrap(apperr.NotFound, "product not found", err)
		case errors.Is(err, domain.ErrInsufficientStock):
			return domain.Adjustment{}, apperr.Wrap(apperr.Conflict, "insufficient stock", err)
		default:
			return domain.Adjustment{}, apperr.Wrap(apperr.Internal, "adjust stock", err)
		}
	}

	s.log.Info("stock adjusted",
		"product_id", productID, "delta", delta, "remaining", adj.Remaining, "key", idempotencyKey)
	return adj, nil
}
