package cache

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service defines the cache operations the report layer needs. Reports
// are rebuilt on demand, so a miss is never an error upstream.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (interface{}, error)
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// GetTyped retrieves a key and asserts its concrete type. A value of the
// wrong type is treated as a miss.
func GetTyped[T any](ctx context.Context, c Service, key string) (T, error) {
	var zero T
	raw, err := c.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	v, ok := raw.(T)
	if !ok {
		return zero, ErrCacheMiss
	}
	return v, nil
}
