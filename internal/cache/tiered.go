package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Tiered checks L1 then L2, backfilling L1 on an L2 hit. Writes go to both.
type Tiered struct {
	l1       Cache
	l2       Cache
	l1Expire time.Duration
}

// NewTiered combines l1 and l2. l1Expire caps how long backfilled entries
// live in L1. When l2 is an ExpiryGetter the backfill also never outlives
// the L2 entry.
func NewTiered(l1, l2 Cache, l1Expire time.Duration) *Tiered {
	return &Tiered{l1: l1, l2: l2, l1Expire: l1Expire}
}

func (c *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	ttl := c.l1Expire
	if eg, ok := c.l2.(ExpiryGetter); ok {
		var expires time.Time
		val, expires, found, err = eg.GetWithExpiry(ctx, key)
		if err != nil || !found {
			return nil, false, err
		}
		if !expires.IsZero() {
			ttl = min(ttl, time.Until(expires))
		}
	} else {
		val, found, err = c.l2.Get(ctx, key)
		if err != nil || !found {
			return nil, false, err
		}
	}

	if ttl <= 0 {
		return val, true, nil
	}
	if err := c.l1.Set(ctx, key, val, ttl); err != nil {
		zap.L().Debug("cache: l1 backfill failed", zap.String("key", key), zap.Error(err))
	}
	return val, true, nil
}

func (c *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.l2.Set(ctx, key, value, ttl)
}

func (c *Tiered) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	return c.l2.Delete(ctx, key)
}
