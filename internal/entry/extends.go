package entry

import (
	"strings"

	"github.com/roach88/pipec/internal/ir"
)

// MaxExtendsDepth bounds extends: chains.
const MaxExtendsDepth = 10

type resolvedJob struct {
	config *ir.Mapping

	// depth is the length of the longest extends chain below the job.
	depth int
}

type extendsResolver struct {
	jobs     *ir.Mapping
	location string
	resolved map[string]resolvedJob
	failed   map[string]bool
	diags    ir.Diagnostics
}

// ResolveExtends returns a copy of jobs in which every job naming bases
// in extends: is deep-merged over them, bases in list order, the job
// itself last. The extends: key is removed from resolved jobs. Unknown,
// circular and too deeply nested bases are reported and leave the job
// unresolved.
func ResolveExtends(jobs *ir.Mapping, location string) (*ir.Mapping, ir.Diagnostics) {
	r := &extendsResolver{
		jobs:     jobs,
		location: location,
		resolved: make(map[string]resolvedJob),
		failed:   make(map[string]bool),
	}
	out := ir.NewMapping()
	for _, name := range jobs.Keys() {
		raw, _ := jobs.Get(name)
		if _, ok := raw.(*ir.Mapping); !ok {
			out.Set(name, raw)
			continue
		}
		if merged, ok := r.resolve(name, nil); ok {
			out.Set(name, merged.config)
		} else {
			out.Set(name, raw)
		}
	}
	return out, r.diags
}

// resolve returns the merged config of name. ok is false when it failed.
func (r *extendsResolver) resolve(name string, chain []string) (resolvedJob, bool) {
	if job, ok := r.resolved[name]; ok {
		return job, true
	}
	if r.failed[name] {
		return resolvedJob{}, false
	}
	raw, _ := r.jobs.Get(name)
	job, ok := raw.(*ir.Mapping)
	if !ok {
		return resolvedJob{}, false
	}
	loc := joinLocation(joinLocation(r.location, name), "extends")

	// A wrong shape is left for the entry tree to report.
	bases, ok := extendsNames(job)
	if !ok || len(bases) == 0 {
		r.resolved[name] = resolvedJob{config: job}
		return r.resolved[name], true
	}

	chain = append(chain, name)
	merged := ir.NewMapping()
	depth := 0
	for _, base := range bases {
		for _, seen := range chain {
			if seen == base {
				r.fail(name, loc, "circular dependency detected in `extends`: %s",
					strings.Join(append(append([]string(nil), chain...), base), " → "))
				return resolvedJob{}, false
			}
		}
		baseRaw, exists := r.jobs.Get(base)
		if !exists {
			r.fail(name, loc, "unknown key in `extends`: %s", base)
			return resolvedJob{}, false
		}
		if !isMapping(baseRaw) {
			r.fail(name, loc, "invalid base in `extends`: %s is not a hash", base)
			return resolvedJob{}, false
		}
		resolvedBase, ok := r.resolve(base, chain)
		if !ok {
			r.failed[name] = true
			return resolvedJob{}, false
		}
		depth = max(depth, resolvedBase.depth+1)
		merged = ir.DeepMerge(merged, resolvedBase.config)
	}
	if depth > MaxExtendsDepth {
		r.fail(name, loc, "nesting too deep in `extends` (maximum %d levels)", MaxExtendsDepth)
		return resolvedJob{}, false
	}

	own := job.Clone()
	own.Delete("extends")
	merged = ir.DeepMerge(merged, own)
	r.resolved[name] = resolvedJob{config: merged, depth: depth}
	return r.resolved[name], true
}

func (r *extendsResolver) fail(name, loc, format string, args ...any) {
	r.failed[name] = true
	r.diags = append(r.diags, ir.NewError(ir.KindStructural, ir.ErrExtends, loc, format, args...))
}

// extendsNames reads the extends: value. ok is false when it has the
// wrong shape.
func extendsNames(job *ir.Mapping) ([]string, bool) {
	v, present := job.Get("extends")
	if !present {
		return nil, true
	}
	if stringOrList(v) != nil {
		return nil, false
	}
	return toStrings(v), true
}

func isMapping(v any) bool {
	_, ok := v.(*ir.Mapping)
	return ok
}
