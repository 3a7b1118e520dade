// Package include expands the include: directives of a pipeline document
// into one merged document.
//
// Resolution walks an explicit stack of frames, one per file on the
// current include chain. Each frame holds the keys that preceded its
// include: key, the sources still to fetch, and the keys that follow it.
// When a frame has fetched all its sources it is folded into its parent,
// so a file's includes are fully resolved before the file is merged.
//
// Any fetch, parse, cycle or limit failure aborts resolution with an
// *Error. Input and variable problems are collected in Result.Diagnostics
// and the affected value or include is left out.
package include

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/pipec/internal/ir"
)

// Fetcher loads the text of one include source.
type Fetcher interface {
	Fetch(ctx context.Context, src ir.IncludeSource) (*ir.Fetched, error)
}

// Default limits.
const (
	DefaultMaxDepth    = 100
	DefaultMaxIncludes = 150
)

// Resolver resolves include directives through a Fetcher. A Resolver
// holds no per-call state and may be shared.
type Resolver struct {
	fetcher     Fetcher
	maxDepth    int
	maxIncludes int
	logger      *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxDepth sets the include nesting limit.
func WithMaxDepth(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxDepth = n
		}
	}
}

// WithMaxIncludes sets the total number of files one resolution may fetch.
func WithMaxIncludes(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxIncludes = n
		}
	}
}

// WithLogger sets the logger. Fetches are logged at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns a Resolver fetching through f.
func New(f Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:     f,
		maxDepth:    DefaultMaxDepth,
		maxIncludes: DefaultMaxIncludes,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is a resolved document.
type Result struct {
	// Body is the merged document without include: keys.
	Body *ir.Mapping

	// Inputs are the effective values of the root document's inputs.
	Inputs map[string]any

	// Includes lists every fetched file in fetch order.
	Includes []ir.ResolvedInclude

	// Diagnostics holds the non-fatal problems found while resolving.
	Diagnostics ir.Diagnostics
}

// Error is a fatal resolution failure.
type Error struct {
	Diagnostics ir.Diagnostics

	// Err is the fetch error behind the failure, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Diagnostics.Error()
}

// Unwrap exposes both the diagnostics and the fetch error.
func (e *Error) Unwrap() []error {
	errs := []error{e.Diagnostics}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func fatal(code, location, format string, args ...any) *Error {
	return &Error{Diagnostics: ir.Diagnostics{
		ir.NewError(ir.KindResolution, code, location, format, args...),
	}}
}

// IsError reports whether err is a resolution failure.
func IsError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// prefixed rewrites diagnostic locations to carry the file they came
// from.
func prefixed(diags ir.Diagnostics, origin string) ir.Diagnostics {
	if origin == "" {
		return diags
	}
	out := make(ir.Diagnostics, len(diags))
	for i, d := range diags {
		if d.Location == "" {
			d.Location = origin
		} else if !strings.HasPrefix(d.Location, origin+":") {
			d.Location = origin + ":" + d.Location
		}
		out[i] = d
	}
	return out
}
