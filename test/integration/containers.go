package integration

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// Schema mirrors what the services expect at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	status TEXT NOT NULL,
	total_cents BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_user_created_idx ON orders (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS order_lines (
	order_id TEXT NOT NULL REFERENCES orders(id),
	product_id TEXT NOT NULL,
	quantity INT NOT NULL CHECK (quantity > 0),
	unit_price_cents BIGINT NOT NULL,
	PRIMARY KEY (order_id, product_id)
);

CREATE TABLE IF NOT EXISTS outbox (
	id BIGSERIAL PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	type TEXT NOT NULL,
	payload JSONB NOT NULL,
	headers JSONB,
	traceparent TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	relay_id TEXT,
	lease_until TIMESTAMPTZ,
	retry_count INT NOT NULL DEFAULT 0,
	last_error TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	price_cents BIGINT NOT NULL,
	available INT NOT NULL CHECK (available >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stock_adjustments (
	idempotency_key TEXT PRIMARY KEY,
	product_id TEXT NOT NULL REFERENCES products(id),
	delta INT NOT NULL,
	remaining INT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS shipments (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL UNIQUE,
	address TEXT NOT NULL,
	carrier TEXT,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

type Env struct {
	PG     *postgres.PostgresContainer
	Kafka  *kafka.KafkaContainer
	Pool   *pgxpool.Pool
	PGURL  string
	KAddr  []string
	Cancel context.CancelFunc
}

func Setup(ctx context.Context) (*Env, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("orderflow"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		cancel()
		return nil, err
	}

	pool, err := pgxpool.New(ctx, pgURL)
	if err != nil {
		cancel()
		return nil, err
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		cancel()
		return nil, err
	}

	kafkaC, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("orderflow-test"),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	brokers, err := kafkaC.Brokers(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	return &Env{
		PG:     pgC,
		Kafka:  kafkaC,
		Pool:   pool,
		PGURL:  pgURL,
		KAddr:  brokers,
		Cancel: cancel,
	}, nil
}

func (e *Env) Teardown(ctx context.Context) {
	e.Pool.Close()
	e.Cancel()
	_ = testcontainers.TerminateContainer(e.Kafka)
	_ = testcontainers.TerminateContainer(e.PG)
}
