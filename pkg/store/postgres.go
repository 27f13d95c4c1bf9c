package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	backendPostgres = "postgres"

	// DefaultTable is the table Postgres stores use when none is given.
	DefaultTable = "listing_items"
)

// NewPool creates a new pgxpool connection pool.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Migrate creates the item table if it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool, table string) error {
	if table == "" {
		table = DefaultTable
	}
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	listing_key TEXT NOT NULL,
	position BIGINT NOT NULL,
	payload BYTEA NOT NULL,
	PRIMARY KEY (listing_key, position)
)`, pgx.Identifier{table}.Sanitize())

	if _, err := pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}

// Postgres keeps the items of one listing as rows ordered by position.
// Writes to the same listing are serialized with a transaction-scoped advisory lock.
type Postgres[T any] struct {
	pool  *pgxpool.Pool
	table string
	key   string
	codec Codec[T]
}

// NewPostgres creates a Postgres store for the listing identified by key.
// The table must exist (see Migrate). A nil codec stores items as JSON.
func NewPostgres[T any](pool *pgxpool.Pool, table string, key Key, codec Codec[T]) *Postgres[T] {
	if pool == nil {
		panic("postgres pool cannot be nil")
	}
	if table == "" {
		table = DefaultTable
	}
	if codec == nil {
		codec = JSON[T]()
	}
	return &Postgres[T]{
		pool:  pool,
		table: pgx.Identifier{table}.Sanitize(),
		key:   key.String(),
		codec: codec,
	}
}

// Write appends items after the last stored position.
func (p *Postgres[T]) Write(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}
	payloads, size, err := encodeAll(p.codec, items)
	if err != nil {
		StoreErrors.WithLabelValues(backendPostgres, "write").Inc()
		return err
	}

	err = pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if err := p.lock(ctx, tx); err != nil {
			return err
		}
		var next int64
		q := fmt.Sprintf(`SELECT COALESCE(MAX(position) + 1, 0) FROM %s WHERE listing_key = $1`, p.table)
		if err := tx.QueryRow(ctx, q, p.key).Scan(&next); err != nil {
			return fmt.Errorf("next position: %w", err)
		}
		return p.insert(ctx, tx, next, payloads)
	})
	if err != nil {
		StoreErrors.WithLabelValues(backendPostgres, "write").Inc()
		return err
	}

	BytesWritten.WithLabelValues(backendPostgres).Add(float64(size))
	return nil
}

// Clear deletes the listing's rows under the same lock Write and Replace take.
func (p *Postgres[T]) Clear(ctx context.Context) error {
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if err := p.lock(ctx, tx); err != nil {
			return err
		}
		return p.deleteAll(ctx, tx)
	})
	if err != nil {
		StoreErrors.WithLabelValues(backendPostgres, "clear").Inc()
		return err
	}
	return nil
}

// Replace deletes the listing's rows and inserts items in one transaction.
func (p *Postgres[T]) Replace(ctx context.Context, items []T) error {
	payloads, size, err := encodeAll(p.codec, items)
	if err != nil {
		StoreErrors.WithLabelValues(backendPostgres, "replace").Inc()
		return err
	}

	err = pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if err := p.lock(ctx, tx); err != nil {
			return err
		}
		if err := p.deleteAll(ctx, tx); err != nil {
			return err
		}
		return p.insert(ctx, tx, 0, payloads)
	})
	if err != nil {
		StoreErrors.WithLabelValues(backendPostgres, "replace").Inc()
		return err
	}

	BytesWritten.WithLabelValues(backendPostgres).Add(float64(size))
	return nil
}

// Read returns the listing's items ordered by position.
func (p *Postgres[T]) Read(ctx context.Context) ([]T, error) {
	q := fmt.Sprintf(`SELECT payload FROM %s WHERE listing_key = $1 ORDER BY position`, p.table)
	rows, err := p.pool.Query(ctx, q, p.key)
	if err != nil {
		StoreErrors.WithLabelValues(backendPostgres, "read").Inc()
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var items []T
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			StoreErrors.WithLabelValues(backendPostgres, "read").Inc()
			return nil, fmt.Errorf("scan: %w", err)
		}
		item, err := p.codec.Decode(payload)
		if err != nil {
			StoreErrors.WithLabelValues(backendPostgres, "read").Inc()
			return nil, fmt.Errorf("decode item %d: %w", len(items), err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		StoreErrors.WithLabelValues(backendPostgres, "read").Inc()
		return nil, fmt.Errorf("rows: %w", err)
	}

	ItemsRead.WithLabelValues(backendPostgres).Add(float64(len(items)))
	return items, nil
}

func (p *Postgres[T]) lock(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, p.key); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

func (p *Postgres[T]) deleteAll(ctx context.Context, tx pgx.Tx) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE listing_key = $1`, p.table)
	if _, err := tx.Exec(ctx, q, p.key); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func (p *Postgres[T]) insert(ctx context.Context, tx pgx.Tx, start int64, payloads [][]byte) error {
	if len(payloads) == 0 {
		return nil
	}
	q := fmt.Sprintf(`INSERT INTO %s (listing_key, position, payload) VALUES ($1, $2, $3)`, p.table)
	batch := &pgx.Batch{}
	for i, payload := range payloads {
		batch.Queue(q, p.key, start+int64(i), payload)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}
