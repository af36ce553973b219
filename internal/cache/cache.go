package cache

import (
	"context"
	"time"

	"github.com/atlasbio/meridian/internal/logger"
)

// Cache stores raw source-client responses keyed by operation + arguments.
// Misses and backend failures are indistinguishable to callers: both return
// ok=false and the caller re-fetches.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// New returns a redis-backed cache when addr is set and reachable, otherwise
// an in-process cache.
func New(log *logger.Logger, addr string) Cache {
	if addr != "" {
		c, err := NewRedis(log, addr)
		if err == nil {
			return c
		}
		log.Warn("redis unavailable, falling back to in-process cache", "addr", addr, "error", err)
	}
	return NewMemory()
}
