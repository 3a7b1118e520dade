// Package entry holds the schema of pipeline configuration: which keys
// are allowed where, what shape each value takes, and how raw values are
// composed into typed ones.
//
// A document is turned into a Tree, an arena of nodes. Every node has a
// Kind implied by its position: everything under jobs.<name> is a job,
// everything under jobs.<name>.rules[i] a rule, and so on. The dispatch
// table maps (parent kind, key) to the child kind and is closed: every
// Kind has an entry and unknown keys are errors.
//
// Composition never fails fast. Each node records its own diagnostics and
// siblings keep validating, so one pass reports every structural problem.
// Validity and composed values are computed on demand and memoized.
package entry

import (
	"github.com/roach88/pipec/internal/ir"
)

// ComposeRoot validates a document body and composes it. The root is
// returned only when the whole tree is valid.
func ComposeRoot(body *ir.Mapping) (*Root, ir.Diagnostics) {
	t := Build(KindRoot, body, "")
	t.Compose()
	if !t.Valid(t.Root()) {
		return nil, t.Errors(t.Root())
	}
	return t.Value(t.Root()).(*Root), nil
}

// ComposePartial is ComposeRoot for callers that keep checking an invalid
// document. The root of an invalid tree holds the valid jobs and whichever
// top-level entries validated; its Stages are nil when stages: is invalid.
// The diagnostics are those of ComposeRoot.
func ComposePartial(body *ir.Mapping) (*Root, ir.Diagnostics) {
	t := Build(KindRoot, body, "")
	t.Compose()
	if t.Valid(t.Root()) {
		return t.Value(t.Root()).(*Root), nil
	}
	return t.partialRoot(), t.Errors(t.Root())
}

// ComposeHeader validates the spec: hash of a header document.
func ComposeHeader(spec any) (*Header, ir.Diagnostics) {
	t := Build(KindSpec, spec, "spec")
	t.Compose()
	if !t.Valid(t.Root()) {
		return nil, t.Errors(t.Root())
	}
	return t.Value(t.Root()).(*Header), nil
}

// ParseIncludes validates an include: value on its own, before the rest
// of its document is composed.
func ParseIncludes(value any, location string) ([]IncludeDirective, ir.Diagnostics) {
	t := Build(KindInclude, value, location)
	t.Compose()
	if !t.Valid(t.Root()) {
		return nil, t.Errors(t.Root())
	}
	return t.Value(t.Root()).([]IncludeDirective), nil
}
