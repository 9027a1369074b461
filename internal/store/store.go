package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/piriwata/Council1901/internal/models"
)

// ErrKeyNotFound is returned by Get when no value is stored under the key.
var ErrKeyNotFound = errors.New("key not found")

// KV is the storage substrate: single-key get/put and ordered key listing
// by prefix. There are no multi-key transactions and no compare-and-swap.
// RedisStore, PostgresStore, SQLiteStore and MemoryStore implement it.
type KV interface {
	// Connection management
	Close() error
	Ping(ctx context.Context) error

	// Get returns the value under key or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// List returns up to limit keys starting with prefix, in byte-wise
	// ascending order, skipping keys <= startAfter. limit <= 0 means no limit.
	List(ctx context.Context, prefix, startAfter string, limit int) ([]string, error)
}

// unavailable wraps a backend error so callers can match it against
// models.ErrStorageUnavailable without seeing driver details.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", models.ErrStorageUnavailable, op, err)
}

// applyListWindow filters sorted keys by startAfter and limit.
func applyListWindow(keys []string, startAfter string, limit int) []string {
	out := keys[:0]
	for _, k := range keys {
		if startAfter != "" && k <= startAfter {
			continue
		}
		out = append(out, k)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
