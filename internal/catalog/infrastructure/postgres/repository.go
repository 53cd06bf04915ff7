package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefront/orderflow/internal/catalog/domain"
)

const uniqueViolation = "23505"

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx, `SELECT id, name, price_cents, available, updated_at
		FROM products WHERE id=$1`, productID).
		Scan(&p.ID, &p.Name, &p.PriceCents, &p.Available, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// Adjust implements the ledger's compare-and-apply. The guarded UPDATE is the
// linearization point: concurrent adjusters of the same product serialize on
// the row lock, and the quantity can never go negative. The adjustment record
// gives replays of the same key the prior result instead of a second effect.
func (r *Repository) Adjust(ctx context.Context, productID string, delta int, key string) (domain.Adjustment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Adjustment{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if prior, ok, err := r.priorResult(ctx, tx, key); err != nil {
		return domain.Adjustment{}, err
	} else if ok {
		return prior, tx.Commit(ctx)
	}

	var remaining int
	err = tx.QueryRow(ctx, `UPDATE products
		SET available = available + $2, updated_at = now()
		WHERE id = $1 AND available + $2 >= 0
		RETURNING available`, productID, delta).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish a missing product from a rejected decrement.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id=$1)`, productID).Scan(&exists); err != nil {
			return domain.Adjustment{}, err
		}
		if !exists {
			return domain.Adjustment{}, domain.ErrNotFound
		}
		return domain.Adjustment{}, domain.ErrInsufficientStock
	}
	if err != nil {
		return domain.Adjustment{}, err
	}

	adj := domain.Adjustment{
		Key:       key,
		ProductID: productID,
		Delta:     delta,
		Remaining: remaining,
		AppliedAt: time.Now().UTC(),
	}
	_, err = tx.Exec(ctx, `INSERT INTO stock_adjustments (idempotency_key, product_id, delta, remaining, applied_at)
		VALUES ($1,$2,$3,$4,$5)`,
		adj.Key, adj.ProductID, adj.Delta, adj.Remaining, adj.AppliedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// Lost the race against a concurrent call with the same key; the
			// transaction aborts and the caller's retry replays the winner's
			// result.
			r.log.Warn("concurrent idempotency key", "key", key, "product_id", productID)
		}
		return domain.Adjustment{}, err
	}
	return adj, tx.Commit(ctx)
}

func (r *Repository) priorResult(ctx context.Context, tx pgx.Tx, key string) (domain.Adjustment, bool, error) {
	var adj domain.Adjustment
	err := tx.QueryRow(ctx, `SELECT idempotency_key, product_id, delta, remaining, applied_at
		FROM stock_adjustments WHERE idempotency_key=$1`, key).
		Scan(&adj.Key, &adj.ProductID, &adj.Delta, &adj.Remaining, &adj.AppliedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Adjustment{}, false, nil
	}
	if err != nil {
		return domain.Adjustment{}, false, err
	}
	return adj, true, nil
}
