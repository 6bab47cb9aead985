package cache

import (
	"context"
	"time"
)

// PayloadStore is the slice of store.Store that backs the L2 cache.
type PayloadStore interface {
	GetCachedPayload(ctx context.Context, key string) ([]byte, time.Time, error)
	SetCachedPayload(ctx context.Context, key string, data []byte, ttl time.Duration) error
	DeleteCachedPayload(ctx context.Context, key string) error
}

// Persistent adapts a PayloadStore to Cache.
type Persistent struct {
	st PayloadStore
}

// NewPersistent wraps st.
func NewPersistent(st PayloadStore) *Persistent {
	return &Persistent{st: st}
}

func (p *Persistent) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, _, ok, err := p.GetWithExpiry(ctx, key)
	return data, ok, err
}

// GetWithExpiry returns the payload along with the row's expires_at.
func (p *Persistent) GetWithExpiry(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	data, expires, err := p.st.GetCachedPayload(ctx, key)
	if err != nil || data == nil {
		return nil, time.Time{}, false, err
	}
	return data, expires, true, nil
}

func (p *Persistent) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.st.SetCachedPayload(ctx, key, value, ttl)
}

func (p *Persistent) Delete(ctx context.Context, key string) error {
	return p.st.DeleteCachedPayload(ctx, key)
}
