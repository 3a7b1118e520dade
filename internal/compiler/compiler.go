// Package compiler turns pipeline configuration text into a validated job
// graph.
//
// Compile runs in fixed stages:
//  1. Parse the text. A syntax error ends the compile.
//  2. Resolve include: directives. A resolution error ends the compile.
//  3. Resolve extends: between jobs.
//  4. Build and compose the entry tree, check stages and variable cycles,
//     and pre-parse every rule. Any error so far fails the compile before
//     a single rule is evaluated.
//  5. Evaluate workflow:rules.
//  6. Apply defaults and evaluate each job's rules.
//  7. Validate needs and dependencies across the included jobs.
//  8. Order jobs by stage, then by declaration.
//
// Diagnostics within a stage are collected, not returned on the first
// problem, so one compile reports everything wrong at that stage.
package compiler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/pipec/internal/document"
	"github.com/roach88/pipec/internal/entry"
	"github.com/roach88/pipec/internal/fetch"
	"github.com/roach88/pipec/internal/include"
	"github.com/roach88/pipec/internal/ir"
)

// Source is the text to compile. Name picks the input format by its
// extension and names the root file in include chains.
type Source struct {
	Name    string
	Content []byte
}

// DefaultSourceName is used when a Source has no name.
const DefaultSourceName = ".gitlab-ci.yml"

// Compiler compiles pipeline configuration. It holds no per-compile state
// and is safe for concurrent use when its fetcher is.
type Compiler struct {
	resolver *include.Resolver
	logger   *zap.Logger
}

type options struct {
	fetcher     include.Fetcher
	logger      *zap.Logger
	maxDepth    int
	maxIncludes int
}

// Option configures a Compiler.
type Option func(*options)

// WithFetcher sets the fetcher used for include: sources. Without one,
// every include fails as unsupported.
func WithFetcher(f include.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithIncludeLimits overrides the include depth and count limits. Zero
// keeps the default.
func WithIncludeLimits(depth, count int) Option {
	return func(o *options) {
		o.maxDepth = depth
		o.maxIncludes = count
	}
}

// New returns a Compiler.
func New(opts ...Option) *Compiler {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	if o.fetcher == nil {
		o.fetcher = &fetch.Mux{}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return &Compiler{
		resolver: include.New(o.fetcher,
			include.WithMaxDepth(o.maxDepth),
			include.WithMaxIncludes(o.maxIncludes),
			include.WithLogger(o.logger),
		),
		logger: o.logger,
	}
}

// Compile compiles src with a Compiler built from opts.
func Compile(ctx context.Context, src Source, pctx *ir.PipelineContext, opts ...Option) *ir.CompileResult {
	return New(opts...).Compile(ctx, src, pctx)
}

// Compile compiles src against pctx. A nil pctx is an empty context.
// The result never mixes jobs and errors.
func (c *Compiler) Compile(ctx context.Context, src Source, pctx *ir.PipelineContext) *ir.CompileResult {
	start := time.Now()
	if src.Name == "" {
		src.Name = DefaultSourceName
	}
	if pctx == nil {
		pctx = &ir.PipelineContext{}
	}

	result := c.compile(ctx, src, pctx)

	c.logger.Info("compiled pipeline",
		zap.String("file", src.Name),
		zap.Bool("valid", result.Valid()),
		zap.Int("jobs", len(result.Jobs)),
		zap.Int("errors", len(result.Errors)),
		zap.Int("warnings", len(result.Warnings)),
		zap.Int("includes", len(result.Includes)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result
}

func (c *Compiler) compile(ctx context.Context, src Source, pctx *ir.PipelineContext) *ir.CompileResult {
	doc, err := document.Parse(src.Name, src.Content)
	if err != nil {
		return ir.Failure(ir.Diagnostics{syntaxDiagnostic(src.Name, err)})
	}

	resolved, err := c.resolver.Resolve(ctx, doc, pctx)
	if err != nil {
		var ie *include.Error
		if errors.As(err, &ie) {
			return ir.Failure(ie.Diagnostics)
		}
		return ir.Failure(ir.Diagnostics{
			ir.NewError(ir.KindResolution, ir.ErrIncludeFetch, "include", "%v", err),
		})
	}

	diags := resolved.Diagnostics
	resolveFailed := diags.HasErrors()
	body := resolved.Body
	if raw, ok := body.Get("jobs"); ok {
		if jobs, ok := raw.(*ir.Mapping); ok {
			merged, extendDiags := entry.ResolveExtends(jobs, "jobs")
			diags = append(diags, extendDiags...)
			body = body.Clone()
			body.Set("jobs", merged)
		}
	}

	// The checks in prepare run over whatever composed, so one compile
	// reports structural errors together with stage and rule errors.
	root, composeDiags := entry.ComposePartial(body)
	diags = append(diags, composeDiags...)
	if resolveFailed {
		return ir.Failure(diags)
	}

	p := newPipeline(root, pctx, c.logger)
	if !p.prepare() || diags.HasErrors() {
		return ir.Failure(append(diags, p.diags...))
	}
	jobs, ok := p.evaluate()
	if !ok {
		return ir.Failure(p.diags)
	}
	return ir.Success(jobs, p.diags.Warnings(), resolved.Includes)
}

func syntaxDiagnostic(name string, err error) ir.Diagnostic {
	var se *document.SyntaxError
	if errors.As(err, &se) {
		return se.Diagnostic()
	}
	return ir.NewError(ir.KindSyntax, ir.ErrSyntax, name, "%v", err)
}
