package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string, maxConns int32) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if maxConns > 0 {
		config.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return store, nil
}

func (store *PostgresStore) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS readings (
  id BIGSERIAL PRIMARY KEY,
  heart_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
  temperature DOUBLE PRECISION NOT NULL DEFAULT 0,
  sugar_level DOUBLE PRECISION NOT NULL DEFAULT 0,
  timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_readings_timestamp ON readings(timestamp DESC);
`

	_, err := store.pool.Exec(ctx, schema)
	return err
}

func (store *PostgresStore) Append(ctx context.Context, reading Reading) (int64, error) {
	const query = `
INSERT INTO readings (heart_rate, temperature, sugar_level, timestamp)
VALUES ($1, $2, $3, $4)
RETURNING id
`

	var id int64
	err := store.pool.QueryRow(
		ctx,
		query,
		reading.HeartRate,
		reading.Temperature,
		reading.SugarLevel,
		reading.Timestamp,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (store *PostgresStore) RecentN(ctx context.Context, n int) ([]ReadingRow, error) {
	if n <= 0 {
		n = 50
	}

	const query = `
SELECT id, heart_rate, temperature, sugar_level, timestamp
FROM readings
ORDER BY timestamp DESC, id DESC
LIMIT $1
`

	rows, err := store.pool.Query(ctx, query, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	output := make([]ReadingRow, 0, n)
	for rows.Next() {
		var row ReadingRow
		if err := rows.Scan(
			&row.ID,
			&row.HeartRate,
			&row.Temperature,
			&row.SugarLevel,
			&row.Timestamp,
		); err != nil {
			return nil, err
		}
		output = append(output, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return output, nil
}

func (store *PostgresStore) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return store.pool.Ping(pingCtx)
}

func (store *PostgresStore) Close() {
	store.pool.Close()
}

var _ Store = (*PostgresStore)(nil)
