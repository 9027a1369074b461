package store

import (
	"context"
	"errors"
	"time"

	"github.com/piriwata/Council1901/internal/metrics"
)

// Instrumented records latency and failures of every KV call.
type Instrumented struct {
	KV
	backend string
}

// Instrument wraps kv, labelling its metrics with backend.
func Instrument(kv KV, backend string) *Instrumented {
	return &Instrumented{KV: kv, backend: backend}
}

func (s *Instrumented) observe(op string, start time.Time, err error) {
	metrics.KVLatency.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		metrics.KVErrors.WithLabelValues(s.backend, op).Inc()
	}
}

// Get implements KV.
func (s *Instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	v, err := s.KV.Get(ctx, key)
	s.observe("get", start, err)
	return v, err
}

// Put implements KV.
func (s *Instrumented) Put(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.KV.Put(ctx, key, value)
	s.observe("put", start, err)
	return err
}

// List implements KV.
func (s *Instrumented) List(ctx context.Context, prefix, startAfter string, limit int) ([]string, error) {
	start := time.Now()
	keys, err := s.KV.List(ctx, prefix, startAfter, limit)
	s.observe("list", start, err)
	return keys, err
}
