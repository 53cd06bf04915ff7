package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefront/orderflow/internal/shipment/application"
	"github.com/storefront/orderflow/internal/shipment/domain"
)

const uniqueViolation = "23505"

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Create(ctx context.Context, s domain.Shipment) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO shipments (id, order_id, address, carrier, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		s.ID, s.OrderID, s.Address, s.Carrier, s.Status, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return application.ErrDuplicateShipment
		}
		return err
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Shipment, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT id, order_id, address, carrier, status, created_at, updated_at
		FROM shipments WHERE id=$1`, id))
}

func (r *Repository) GetByOrder(ctx context.Context, orderID string) (domain.Shipment, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT id, order_id, address, carrier, status, created_at, updated_at
		FROM shipments WHERE order_id=$1`, orderID))
}

func (r *Repository) Update(ctx context.Context, s domain.Shipment) error {
	ct, err := r.pool.Exec(ctx, `UPDATE shipments SET carrier=$2, status=$3, updated_at=$4 WHERE id=$1`,
		s.ID, s.Carrier, s.Status, s.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return application.ErrShipmentNotFound
	}
	return nil
}

func (r *Repository) scanOne(row pgx.Row) (domain.Shipment, error) {
	var s domain.Shipment
	err := row.Scan(&s.ID, &s.OrderID, &s.Address, &s.Carrier, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Shipment{}, application.ErrShipmentNotFound
	}
	if err != nil {
		return domain.Shipment{}, err
	}
	return s, nil
}
