package cli

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/pipec/internal/compiler"
	"github.com/roach88/pipec/internal/config"
	"github.com/roach88/pipec/internal/fetch"
	"github.com/roach88/pipec/internal/ir"
	"github.com/roach88/pipec/internal/store"
)

// buildFetcher wires the include fetchers described by cfg. Local includes
// resolve below repoRoot. The returned close function releases the cache.
func buildFetcher(cfg *config.Config, repoRoot string, logger *zap.Logger) (fetch.Fetcher, func() error, error) {
	mux := &fetch.Mux{
		Local: &fetch.Local{Root: repoRoot, MaxSize: cfg.Fetch.MaxSize},
		HTTP:  fetch.NewHTTP(cfg.HTTP(), nil),
		S3:    lazyS3(cfg.S3, logger),
	}
	if cfg.Fetch.ProjectsRoot != "" {
		mux.Project = &fetch.Projects{Root: cfg.Fetch.ProjectsRoot, MaxSize: cfg.Fetch.MaxSize}
	}
	if cfg.Fetch.CatalogRoot != "" {
		mux.Catalog = &fetch.Catalog{Root: cfg.Fetch.CatalogRoot, MaxSize: cfg.Fetch.MaxSize}
	}

	if cfg.Fetch.CachePath == "" {
		return mux, func() error { return nil }, nil
	}
	cache, err := store.Open(cfg.Fetch.CachePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open fetch cache: %w", err)
	}
	logger.Debug("fetch cache enabled", zap.String("path", cfg.Fetch.CachePath), zap.Duration("ttl", cfg.Fetch.CacheTTL))
	return fetch.NewCached(mux, cache, cfg.Fetch.CacheTTL, logger), cache.Close, nil
}

// lazyS3 defers loading the AWS configuration until the first s3:// include.
func lazyS3(cfg fetch.S3Config, logger *zap.Logger) fetch.Fetcher {
	var (
		once   sync.Once
		client *fetch.S3
		err    error
	)
	return fetch.FetcherFunc(func(ctx context.Context, src ir.IncludeSource) (*ir.Fetched, error) {
		once.Do(func() {
			client, err = fetch.NewS3(ctx, cfg)
			if err != nil {
				logger.Warn("s3 fetcher unavailable", zap.Error(err))
			}
		})
		if err != nil {
			return nil, err
		}
		return client.Fetch(ctx, src)
	})
}

// newCompiler returns a compiler for files below repoRoot.
func newCompiler(cfg *config.Config, repoRoot string, logger *zap.Logger) (*compiler.Compiler, func() error, error) {
	f, closeFn, err := buildFetcher(cfg, repoRoot, logger)
	if err != nil {
		return nil, nil, err
	}
	c := compiler.New(
		compiler.WithFetcher(f),
		compiler.WithLogger(logger),
		compiler.WithIncludeLimits(cfg.Limits.MaxIncludeDepth, cfg.Limits.MaxIncludes),
	)
	return c, closeFn, nil
}
