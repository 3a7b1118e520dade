// Package fetch loads the text of include files.
//
// Every implementation satisfies Fetcher and returns the raw bytes of one
// file together with a content identity: a BLAKE3 keyed hash that lets
// callers recognise identical text arriving from different locations.
//
//   - Local reads files below a repository root.
//   - HTTP downloads remote includes, rate limited.
//   - S3 reads s3://bucket/key remote includes.
//   - Projects reads project includes from a mirror directory.
//   - Catalog reads template and component includes.
//   - Memory serves fixed text, for tests and the lint API.
//   - Cached puts a store.Store in front of another Fetcher.
//   - Mux routes each source kind to its Fetcher.
//
// Failures are *Error values wrapping one of the sentinel errors below, so
// callers can use errors.Is without caring which implementation failed.
package fetch

import (
	"context"

	"github.com/roach88/pipec/internal/ir"
)

// Fetcher loads the text of one include source.
type Fetcher interface {
	Fetch(ctx context.Context, src ir.IncludeSource) (*ir.Fetched, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, src ir.IncludeSource) (*ir.Fetched, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, src ir.IncludeSource) (*ir.Fetched, error) {
	return f(ctx, src)
}

// DefaultMaxSize is the largest include accepted when a fetcher has no
// explicit limit.
const DefaultMaxSize = 1 << 20
