package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/getverbrauch/consumption-export/internal/consumption"
)

const createReadingsTable = `CREATE TABLE IF NOT EXISTS consumption_readings (
    ts          timestamptz PRIMARY KEY,
    ts_end      timestamptz,
    value       numeric,
    unit        text,
    updated_at  timestamptz NOT NULL DEFAULT NOW()
)`

const upsertReading = `INSERT INTO consumption_readings (ts, ts_end, value, unit, updated_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (ts) DO UPDATE
SET ts_end = EXCLUDED.ts_end,
    value = EXCLUDED.value,
    unit = EXCLUDED.unit,
    updated_at = NOW()`

// PostgresSink upserts hourly readings into Postgres.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to url and makes sure the readings table exists.
func NewPostgresSink(ctx context.Context, url string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createReadingsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create readings table: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresSink) Close() {
	s.pool.Close()
}

// SaveReadings upserts readings in one batch.
func (s *PostgresSink) SaveReadings(ctx context.Context, readings []consumption.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range readingRows(readings) {
		batch.Queue(upsertReading, r...)
	}

	res := s.pool.SendBatch(ctx, batch)
	defer res.Close()

	for range readings {
		if _, err := res.Exec(); err != nil {
			return fmt.Errorf("upsert reading: %w", err)
		}
	}
	return nil
}

// readingRows maps readings to upsert arguments. Null values stay NULL.
func readingRows(readings []consumption.Reading) [][]any {
	rows := make([][]any, 0, len(readings))
	for _, r := range readings {
		var value any
		if r.Value != nil {
			value = r.Value.String()
		}
		var end any
		if !r.To.IsZero() {
			end = r.To
		}
		rows = append(rows, []any{r.From, end, value, r.Unit})
	}
	return rows
}
