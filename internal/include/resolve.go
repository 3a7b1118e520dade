package include

import (
	"context"
	"errors"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/pipec/internal/document"
	"github.com/roach88/pipec/internal/entry"
	"github.com/roach88/pipec/internal/fetch"
	"github.com/roach88/pipec/internal/interpolate"
	"github.com/roach88/pipec/internal/ir"
	"github.com/roach88/pipec/internal/rules"
)

const includeKey = "include"

// frame is one file on the current include chain.
type frame struct {
	src    ir.IncludeSource
	key    string
	name   string
	origin string // diagnostic location prefix; empty for the root
	depth  int

	merged  *ir.Mapping // keys before include:, then each resolved include
	after   *ir.Mapping // keys after include:
	pending []ir.IncludeSource
	next    int
}

func (f *frame) at(location string) string {
	if f.origin == "" {
		return location
	}
	return f.origin + ":" + location
}

// resolution is the state of one Resolve call.
type resolution struct {
	*Resolver
	ctx    context.Context
	pctx   *ir.PipelineContext
	vars   map[string]string
	result *Result
}

// Resolve expands every include of root. pctx supplies the root inputs,
// the variables include paths and rules are evaluated against, and the
// repository listing for exists: rules. A nil pctx is an empty context.
//
// The returned error is always an *Error.
func (r *Resolver) Resolve(ctx context.Context, root *document.Document, pctx *ir.PipelineContext) (*Result, error) {
	if pctx == nil {
		pctx = &ir.PipelineContext{}
	}
	run := &resolution{
		Resolver: r,
		ctx:      ctx,
		pctx:     pctx,
		vars:     pctx.ContextVariables(),
		result:   &Result{Includes: []ir.ResolvedInclude{}},
	}

	src := ir.IncludeSource{Kind: ir.SourceLocal, Location: root.Name}
	top, err := run.open(src, "", root, pctx.Inputs, 0)
	if err != nil {
		return nil, err
	}
	if err := run.drain(top); err != nil {
		return nil, err
	}
	return run.result, nil
}

// drain runs the include stack to completion. The top frame fetches its
// next pending source; a frame with none left is folded into its parent.
func (run *resolution) drain(root *frame) error {
	stack := []*frame{root}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next < len(top.pending) {
			src := top.pending[top.next]
			top.next++
			child, err := run.enter(stack, src)
			if err != nil {
				return err
			}
			stack = append(stack, child)
			continue
		}

		deepMerge(top.merged, top.after)
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			run.result.Body = top.merged
			return nil
		}
		deepMerge(stack[len(stack)-1].merged, top.merged)
	}
	return nil
}

// enter checks the chain and limits, then fetches and opens src.
func (run *resolution) enter(stack []*frame, src ir.IncludeSource) (*frame, error) {
	parent := stack[len(stack)-1]
	key := src.Key()
	for i, f := range stack {
		if f.key != key {
			continue
		}
		chain := make([]string, 0, len(stack)-i+1)
		for _, g := range stack[i:] {
			chain = append(chain, g.name)
		}
		chain = append(chain, src.Identity())
		return nil, fatal(ir.ErrCircularInclude, parent.at(includeKey),
			"circular include detected: %s", strings.Join(chain, " → "))
	}

	depth := parent.depth + 1
	if depth > run.maxDepth {
		return nil, fatal(ir.ErrIncludeDepth, parent.at(includeKey),
			"maximum include depth exceeded (%d) at %s", run.maxDepth, src)
	}

	doc, err := run.load(parent, src)
	if err != nil {
		return nil, err
	}
	return run.open(src, src.Identity(), doc, src.Inputs, depth)
}

// load fetches and parses one include of parent.
func (run *resolution) load(parent *frame, src ir.IncludeSource) (*document.Document, error) {
	location := parent.at(includeKey)
	if len(run.result.Includes) >= run.maxIncludes {
		return nil, fatal(ir.ErrIncludeCount, location,
			"maximum number of includes exceeded (%d)", run.maxIncludes)
	}
	if err := run.ctx.Err(); err != nil {
		e := fatal(ir.ErrIncludeCancelled, location, "include resolution cancelled: %v", err)
		e.Err = err
		return nil, e
	}

	run.logger.Debug("fetching include",
		zap.String("source", src.Key()),
		zap.Int("depth", parent.depth+1),
	)
	f, err := run.fetcher.Fetch(run.ctx, src)
	if err != nil {
		return nil, fetchError(location, src, err)
	}
	run.result.Includes = append(run.result.Includes, ir.ResolvedInclude{
		Source:   src,
		Identity: f.Identity,
		Depth:    parent.depth + 1,
		Parent:   parent.name,
	})

	name := f.Name
	if name == "" {
		name = path.Base(src.Location)
	}
	doc, err := document.Parse(name, f.Content)
	if err != nil {
		msg := err.Error()
		var se *document.SyntaxError
		if errors.As(err, &se) {
			msg = se.Diagnostic().Message
		}
		e := fatal(ir.ErrIncludeSyntax, location, "included file %s is invalid: %s", src, msg)
		e.Err = err
		return nil, e
	}
	return doc, nil
}

func fetchError(location string, src ir.IncludeSource, err error) *Error {
	var e *Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e = fatal(ir.ErrIncludeCancelled, location, "include resolution cancelled: %v", err)
	case fetch.IsNotFound(err):
		e = fatal(ir.ErrIncludeNotFound, location, "included file %s does not exist", src)
	default:
		cause := err
		var fe *fetch.Error
		if errors.As(err, &fe) {
			cause = fe.Err
		}
		e = fatal(ir.ErrIncludeFetch, location, "included file %s could not be fetched: %v", src, cause)
	}
	e.Err = err
	return e
}

// open prepares a frame for doc: it resolves the header, interpolates
// inputs, and lists the sources of its include: key.
func (run *resolution) open(src ir.IncludeSource, origin string, doc *document.Document, given map[string]any, depth int) (*frame, error) {
	f := &frame{
		src:    src,
		key:    src.Key(),
		name:   src.Identity(),
		origin: origin,
		depth:  depth,
	}

	specs, err := run.header(f, doc.Header)
	if err != nil {
		return nil, err
	}

	body := doc.Body
	if specs != nil || len(given) > 0 {
		if specs == nil {
			specs = ir.NewMapping()
		}
		values, diags := interpolate.ResolveInputs(specs, given, "spec.inputs")
		if len(diags) > 0 {
			run.report(prefixed(diags, origin))
		} else {
			if depth == 0 {
				run.result.Inputs = values
			}
			out, diags := interpolate.Interpolate(body, &interpolate.Scope{Inputs: values, Variables: run.vars}, "")
			run.report(prefixed(diags, origin))
			if m, ok := out.(*ir.Mapping); ok {
				body = m
			}
		}
	}

	before, after, raw, found := split(body)
	f.merged, f.after = before, after
	if !found {
		return f, nil
	}

	directives, diags := entry.ParseIncludes(raw, includeKey)
	if len(diags) > 0 {
		return nil, &Error{Diagnostics: prefixed(diags, origin)}
	}
	for _, d := range directives {
		if !run.applies(f, d) {
			continue
		}
		for _, s := range d.Sources {
			s, ok := run.expand(f, d, s)
			if !ok {
				continue
			}
			f.pending = append(f.pending, s)
		}
	}
	return f, nil
}

// header composes a header document and gathers its input declarations,
// including those pulled in by header includes. A nil header gives nil.
// The header document holds a single spec: key; its value is composed.
func (run *resolution) header(f *frame, header *ir.Mapping) (*ir.Mapping, error) {
	if header == nil {
		return nil, nil
	}
	spec, _ := header.Get(document.HeaderKey)
	h, diags := entry.ComposeHeader(spec)
	if len(diags) > 0 {
		return nil, &Error{Diagnostics: prefixed(diags, f.origin)}
	}

	specs := ir.NewMapping()
	for _, name := range h.Inputs.Keys() {
		v, _ := h.Inputs.Get(name)
		specs.Set(name, v)
	}

	for _, d := range h.Includes {
		for _, s := range d.Sources {
			switch s.Kind {
			case ir.SourceLocal, ir.SourceRemote, ir.SourceProject:
			default:
				return nil, fatal(ir.ErrHeaderInclude, f.at(d.Location),
					"header include may not use `%s`: only local, remote and project are allowed", s.Kind)
			}
			s, ok := run.expand(f, d, s)
			if !ok {
				continue
			}
			doc, err := run.load(f, s)
			if err != nil {
				return nil, err
			}
			inputs, err := headerInputs(f.at(d.Location), s, doc)
			if err != nil {
				return nil, err
			}
			for _, name := range inputs.Keys() {
				if specs.Has(name) {
					return nil, fatal(ir.ErrHeaderInclude, f.at(d.Location),
						"duplicate input name `%s` in header include %s", name, s)
				}
				v, _ := inputs.Get(name)
				specs.Set(name, v)
			}
		}
	}
	return specs, nil
}

// headerInputs extracts the inputs of a file pulled in by a header
// include. Such a file holds an inputs: hash and nothing else.
func headerInputs(location string, src ir.IncludeSource, doc *document.Document) (*ir.Mapping, error) {
	if doc.Header != nil {
		return nil, fatal(ir.ErrHeaderInclude, location,
			"header include %s may only contain `inputs`", src)
	}
	for _, key := range doc.Body.Keys() {
		if key != "inputs" {
			return nil, fatal(ir.ErrHeaderInclude, location,
				"header include %s may only contain `inputs`", src)
		}
	}
	raw, ok := doc.Body.Get("inputs")
	if !ok || raw == nil {
		return ir.NewMapping(), nil
	}
	inputs, ok := raw.(*ir.Mapping)
	if !ok {
		return nil, fatal(ir.ErrHeaderInclude, location,
			"header include %s: `inputs` should be a hash", src)
	}
	return inputs, nil
}

// applies evaluates a directive's rules. Rule problems are reported and
// the include is skipped.
func (run *resolution) applies(f *frame, d entry.IncludeDirective) bool {
	if len(d.Rules) == 0 {
		return true
	}
	set, diags := rules.Compile(d.Rules, d.Location+".rules")
	if len(diags) > 0 {
		run.report(prefixed(diags, f.origin))
		return false
	}
	outcome, err := set.Evaluate(&rules.Scope{
		Variables:           run.vars,
		ChangedPaths:        run.pctx.ChangedPaths,
		CompareChangedPaths: run.pctx.CompareChangedPaths,
		RepositoryFiles:     run.pctx.RepositoryFiles,
	})
	if err != nil {
		var diag ir.Diagnostic
		if !errors.As(err, &diag) {
			diag = ir.NewError(ir.KindRuleEvaluation, ir.ErrExpressionEval, d.Location+".rules", "%v", err)
		}
		run.report(prefixed(ir.Diagnostics{diag}, f.origin))
		return false
	}
	return outcome.Included()
}

// expand substitutes context variables into a source's location. A
// source naming an undefined variable is reported and skipped. Local
// sources found inside a project file belong to that project.
func (run *resolution) expand(f *frame, d entry.IncludeDirective, s ir.IncludeSource) (ir.IncludeSource, bool) {
	var unresolved []string
	sub := func(v string) string {
		if !strings.Contains(v, "$") {
			return v
		}
		out, err := interpolate.Expand(v, run.vars)
		if err != nil {
			var ue *interpolate.UnresolvedError
			if errors.As(err, &ue) {
				unresolved = append(unresolved, ue.Names...)
			}
			return v
		}
		return out
	}

	s.Location = sub(s.Location)
	s.Project = sub(s.Project)
	s.Ref = sub(s.Ref)
	if len(unresolved) > 0 {
		run.report(ir.Diagnostics{ir.NewError(ir.KindInterpolation, ir.ErrUnresolvedVariable, f.at(d.Location),
			"include %s references undefined variables: %s", s, strings.Join(unresolved, ", "))})
		return s, false
	}

	if _, shorthand := d.Raw.(string); shorthand {
		s.Kind = entry.ShorthandKind(s.Location)
	}
	if s.Kind == ir.SourceLocal && s.Project == "" && f.src.Project != "" {
		s.Project, s.Ref = f.src.Project, f.src.Ref
	}
	return s, true
}

func (run *resolution) report(diags ir.Diagnostics) {
	run.result.Diagnostics = append(run.result.Diagnostics, diags...)
}
