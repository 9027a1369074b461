package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the key space in a single kv table. The key column
// uses the "C" collation so ORDER BY is byte-wise.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key   TEXT COLLATE "C" PRIMARY KEY,
			value BYTEA NOT NULL
		)
	`)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Get retrieves the value stored under key.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, unavailable("postgres get", err)
	}
	return value, nil
}

// Put upserts value under key.
func (s *PostgresStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return unavailable("postgres put", err)
	}
	return nil
}

// List returns matching keys in ascending order. A NULL limit means no limit.
func (s *PostgresStore) List(ctx context.Context, prefix, startAfter string, limit int) ([]string, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT key FROM kv
		WHERE starts_with(key, $1) AND key > $2
		ORDER BY key
		LIMIT $3
	`, prefix, startAfter, lim)
	if err != nil {
		return nil, unavailable("postgres list", err)
	}

	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, unavailable("postgres list", err)
	}
	return keys, nil
}
