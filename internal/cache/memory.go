package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/rotisserie/eris"
)

// Memory is the in-process L1 cache.
type Memory struct {
	c *ristretto.Cache[string, []byte]
}

// NewMemory creates a ristretto-backed cache bounded by maxCostBytes of values.
func NewMemory(maxCostBytes int64) (*Memory, error) {
	if maxCostBytes <= 0 {
		return nil, eris.New("cache: max cost must be positive")
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(maxCostBytes/100*10, 1000),
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, eris.Wrap(err, "cache: new ristretto")
	}
	return &Memory{c: c}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := m.c.Get(key)
	return val, found, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.c.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.c.Del(key)
	return nil
}

// Wait blocks until buffered writes are applied.
func (m *Memory) Wait() {
	m.c.Wait()
}

// Clear drops every entry.
func (m *Memory) Clear() {
	m.c.Clear()
}

// Close releases the cache's goroutines.
func (m *Memory) Close() {
	m.c.Close()
}
