package fetch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/pipec/internal/ir"
)

// Cache stores fetched text. *store.Store implements it.
type Cache interface {
	Get(ctx context.Context, src ir.IncludeSource) (*ir.Fetched, bool, error)
	Put(ctx context.Context, src ir.IncludeSource, f *ir.Fetched, ttl time.Duration) error
}

// Cached serves sources from a Cache before falling back to Next. Local
// sources always go to Next: they belong to the working copy being
// compiled.
//
// Cache failures are logged and otherwise ignored.
type Cached struct {
	Next   Fetcher
	Cache  Cache
	TTL    time.Duration
	Logger *zap.Logger
}

// NewCached returns a caching fetcher.
func NewCached(next Fetcher, cache Cache, ttl time.Duration, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{Next: next, Cache: cache, TTL: ttl, Logger: logger}
}

// Fetch implements Fetcher.
func (c *Cached) Fetch(ctx context.Context, src ir.IncludeSource) (*ir.Fetched, error) {
	if !cacheable(src) {
		return c.Next.Fetch(ctx, src)
	}

	log := c.logger().With(zap.String("source", src.Key()))
	f, ok, err := c.Cache.Get(ctx, src)
	switch {
	case err != nil:
		log.Warn("fetch cache read failed", zap.Error(err))
	case ok:
		log.Debug("fetch cache hit")
		return f, nil
	}

	f, err = c.Next.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := c.Cache.Put(ctx, src, f, c.TTL); err != nil {
		log.Warn("fetch cache write failed", zap.Error(err))
	}
	return f, nil
}

func (c *Cached) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func cacheable(src ir.IncludeSource) bool {
	return src.Kind != ir.SourceLocal || src.Project != ""
}
