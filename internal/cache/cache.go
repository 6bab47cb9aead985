// Package cache provides the byte cache used to keep provider payloads
// between decision requests: an in-process ristretto L1 over the store's
// provider_cache table.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// Cache is a TTL byte cache.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ExpiryGetter is a Cache that reports when a found entry expires.
type ExpiryGetter interface {
	GetWithExpiry(ctx context.Context, key string) (data []byte, expires time.Time, ok bool, err error)
}

// GetJSON reads key and decodes it into a T.
func GetJSON[T any](ctx context.Context, c Cache, key string) (*T, bool, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false, eris.Wrapf(err, "cache: decode %s", key)
	}
	return &v, true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "cache: encode %s", key)
	}
	return c.Set(ctx, key, data, ttl)
}
