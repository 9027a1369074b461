package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// keyIndex is a sorted set of every stored key, all with score 0, so that
// ZRANGEBYLEX walks them in byte-wise order.
const keyIndex = "kv:keys"

// RedisStore keeps values as plain strings and lists keys through a
// lexicographic sorted-set index.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Client exposes the underlying client for the rate limiter.
func (s *RedisStore) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get retrieves the value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, unavailable("redis get", err)
	}
	return data, nil
}

// Put writes the value and indexes the key in one MULTI block.
func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, 0)
		pipe.ZAdd(ctx, keyIndex, redis.Z{Score: 0, Member: key})
		return nil
	})
	if err != nil {
		return unavailable("redis put", err)
	}
	return nil
}

// List walks the key index by lex range.
func (s *RedisStore) List(ctx context.Context, prefix, startAfter string, limit int) ([]string, error) {
	min := "[" + prefix
	if startAfter != "" && startAfter >= prefix {
		min = "(" + startAfter
	}
	// No valid UTF-8 key contains 0xff, so this bounds the prefix range.
	max := "(" + prefix + "\xff"

	rangeBy := &redis.ZRangeBy{Min: min, Max: max}
	if limit > 0 {
		rangeBy.Count = int64(limit)
	}

	keys, err := s.client.ZRangeByLex(ctx, keyIndex, rangeBy).Result()
	if err != nil {
		return nil, unavailable("redis list", err)
	}
	return keys, nil
}
