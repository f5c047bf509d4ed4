package cache

import (
	"context"
	"fmt"

	"github.com/buywithme/assistant/internal/domain"
)

// New builds the cache backend named by kind ("memory", "file" or "redis").
// The returned close function releases backend resources.
func New(ctx context.Context, kind, dir, redisURL string) (domain.CacheRepository, func() error, error) {
	noop := func() error { return nil }

	switch kind {
	case "memory":
		return NewMemoryCache(), noop, nil
	case "file":
		c, err := NewFileCache(dir)
		if err != nil {
			return nil, noop, err
		}
		return c, noop, nil
	case "redis":
		c, err := NewRedisCache(ctx, redisURL)
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache type %q", kind)
	}
}
