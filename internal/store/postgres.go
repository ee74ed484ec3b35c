package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists purchases in a PostgreSQL table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS purchases (
    request_id TEXT PRIMARY KEY,
    service_type TEXT NOT NULL,
    service_id TEXT NOT NULL,
    beneficiary TEXT NOT NULL,
    local_amount BIGINT NOT NULL,
    token_symbol TEXT NOT NULL,
    token_amount TEXT NOT NULL,
    user_address TEXT NOT NULL,
    state TEXT NOT NULL,
    tx_hash TEXT NOT NULL DEFAULT '',
    fulfillment_status TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS purchases_user_address_idx ON purchases (user_address, created_at DESC);
`

// NewPostgresStore connects using the DSN and ensures the table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Save(ctx context.Context, rec Purchase) error {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO purchases (
    request_id, service_type, service_id, beneficiary, local_amount,
    token_symbol, token_amount, user_address, state, tx_hash,
    fulfillment_status, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (request_id) DO UPDATE
SET state = EXCLUDED.state,
    tx_hash = EXCLUDED.tx_hash,
    token_amount = EXCLUDED.token_amount,
    fulfillment_status = EXCLUDED.fulfillment_status,
    updated_at = EXCLUDED.updated_at
`, rec.RequestID, rec.ServiceType, rec.ServiceID, rec.Beneficiary, rec.LocalAmount,
		rec.TokenSymbol, rec.TokenAmount, rec.UserAddress, rec.State, rec.TxHash,
		rec.FulfillmentStatus, rec.CreatedAt, now)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, requestID string) (*Purchase, error) {
	row := p.pool.QueryRow(ctx, `
SELECT request_id, service_type, service_id, beneficiary, local_amount,
       token_symbol, token_amount, user_address, state, tx_hash,
       fulfillment_status, created_at, updated_at
FROM purchases
WHERE request_id = $1
`, requestID)

	var rec Purchase
	err := row.Scan(&rec.RequestID, &rec.ServiceType, &rec.ServiceID, &rec.Beneficiary,
		&rec.LocalAmount, &rec.TokenSymbol, &rec.TokenAmount, &rec.UserAddress,
		&rec.State, &rec.TxHash, &rec.FulfillmentStatus, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (p *PostgresStore) ListByAddress(ctx context.Context, address string, page, perPage int) ([]Purchase, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	var total int
	if err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM purchases WHERE lower(user_address) = lower($1)`,
		address).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := p.pool.Query(ctx, `
SELECT request_id, service_type, service_id, beneficiary, local_amount,
       token_symbol, token_amount, user_address, state, tx_hash,
       fulfillment_status, created_at, updated_at
FROM purchases
WHERE lower(user_address) = lower($1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`, address, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Purchase
	for rows.Next() {
		var rec Purchase
		if err := rows.Scan(&rec.RequestID, &rec.ServiceType, &rec.ServiceID, &rec.Beneficiary,
			&rec.LocalAmount, &rec.TokenSymbol, &rec.TokenAmount, &rec.UserAddress,
			&rec.State, &rec.TxHash, &rec.FulfillmentStatus, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}
