package entry

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roach88/pipec/internal/ir"
)

// Limits enforced by the job schema.
const (
	MaxNeeds         = 50
	MaxCaches        = 4
	MaxParallel      = 200
	MaxRetries       = 2
	MaxScriptNesting = 10
	MaxStartIn       = 7 * 24 * time.Hour
)

// checker is the view a cross-key check has of one node.
type checker struct {
	tree *Tree
	id   NodeID
}

func (c *checker) location() string { return c.tree.nodes[c.id].location }

// mapping returns the node's config when it is a hash.
func (c *checker) mapping() *ir.Mapping {
	m, _ := c.tree.nodes[c.id].config.(*ir.Mapping)
	return m
}

func (c *checker) has(key string) bool {
	return c.mapping().Has(key)
}

func (c *checker) get(key string) any {
	v, _ := c.mapping().Get(key)
	return v
}

func (c *checker) errorf(code, format string, args ...any) {
	c.errorAt("", code, format, args...)
}

func (c *checker) errorAt(key, code, format string, args ...any) {
	loc := c.location()
	if key != "" {
		loc = joinLocation(loc, key)
	}
	n := &c.tree.nodes[c.id]
	n.errs = append(n.errs, ir.NewError(ir.KindStructural, code, loc, format, args...))
}

// Leaf validators.

var mismatch = &problem{code: ir.ErrTypeMismatch}

func str(v any) *problem {
	if _, ok := v.(string); !ok {
		return mismatch
	}
	return nil
}

func textValue(v any) *problem {
	switch v.(type) {
	case string, int, int64, float64:
		return nil
	}
	return mismatch
}

func boolean(v any) *problem {
	if _, ok := v.(bool); !ok {
		return mismatch
	}
	return nil
}

func integer(v any) *problem {
	if _, ok := asInt(v); !ok {
		return mismatch
	}
	return nil
}

func stringList(v any) *problem {
	items, ok := v.([]any)
	if !ok {
		return mismatch
	}
	for _, item := range items {
		if _, ok := item.(string); !ok {
			return mismatch
		}
	}
	return nil
}

func stringOrList(v any) *problem {
	if _, ok := v.(string); ok {
		return nil
	}
	return stringList(v)
}

func boolOrStringList(v any) *problem {
	if _, ok := v.(bool); ok {
		return nil
	}
	return stringList(v)
}

// script accepts a string or an array of strings and arrays, nested at
// most MaxScriptNesting levels.
func script(v any) *problem {
	var walk func(v any, depth int) *problem
	walk = func(v any, depth int) *problem {
		switch v := v.(type) {
		case string:
			return nil
		case []any:
			if depth > MaxScriptNesting {
				return &problem{code: ir.ErrInvalidValue,
					message: fmt.Sprintf("config should be nested at most %d levels deep", MaxScriptNesting)}
			}
			for _, item := range v {
				if p := walk(item, depth+1); p != nil {
					return p
				}
			}
			return nil
		default:
			return mismatch
		}
	}
	return walk(v, 0)
}

func exitCodes(v any) *problem {
	if _, ok := asInt(v); ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return mismatch
	}
	seen := make(map[int]bool, len(items))
	for _, item := range items {
		code, ok := asInt(item)
		if !ok {
			return mismatch
		}
		if seen[code] {
			return &problem{code: ir.ErrInvalidValue, message: fmt.Sprintf("config contains duplicate exit code: %d", code)}
		}
		seen[code] = true
	}
	return nil
}

func enum(values ...string) func(any) *problem {
	return func(v any) *problem {
		s, ok := v.(string)
		if !ok {
			return mismatch
		}
		if !slices.Contains(values, s) {
			return &problem{code: ir.ErrInvalidValue,
				message: fmt.Sprintf("config should be one of: %s", strings.Join(values, ", "))}
		}
		return nil
	}
}

func duration(v any) *problem {
	switch v := v.(type) {
	case int, int64:
		return nil
	case string:
		if _, err := ParseDuration(v); err != nil {
			return &problem{code: ir.ErrInvalidValue, message: fmt.Sprintf("config should be a duration: %v", err)}
		}
		return nil
	default:
		return mismatch
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}

// Cross-key checks.

func requireKeys(keys ...string) func(c *checker) {
	return func(c *checker) {
		m := c.mapping()
		if m == nil {
			return
		}
		var missing []string
		for _, k := range keys {
			if !m.Has(k) {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			c.errorf(ir.ErrMissingRequiredKey, "config missing required keys: %s", strings.Join(missing, ", "))
		}
	}
}

func checkRoot(c *checker) {
	if !c.has("jobs") {
		c.errorAt("jobs", ir.ErrNoVisibleJobs, "config should contain at least one visible job")
	}
}

func checkStages(c *checker) {
	items, _ := c.tree.nodes[c.id].config.([]any)
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		name := item.(string)
		if seen[name] {
			c.errorf(ir.ErrInvalidValue, "config contains duplicate stage: %s", name)
			continue
		}
		seen[name] = true
	}
}

func checkVariable(c *checker) {
	m := c.mapping()
	if m == nil || !m.Has("options") {
		return
	}
	options, _ := c.get("options").([]any)
	value, hasValue := m.Get("value")
	if !hasValue {
		c.errorf(ir.ErrMissingRequiredKey, "config missing required keys: value")
		return
	}
	text := fmt.Sprint(value)
	for _, o := range options {
		if o == text {
			return
		}
	}
	c.errorAt("value", ir.ErrInvalidValue, "config should be one of the options: %v", options)
}

func checkJobs(c *checker) {
	for _, key := range c.mapping().Keys() {
		if !hiddenName(key) {
			return
		}
	}
	c.errorf(ir.ErrNoVisibleJobs, "config should contain at least one visible job")
}

func checkJob(c *checker) {
	m := c.mapping()
	switch {
	case !m.Has("script") && !m.Has("run"):
		c.errorf(ir.ErrMissingRequiredKey, "config should implement a script: or a run: keyword")
	case m.Has("script") && m.Has("run"):
		c.errorf(ir.ErrConflictingKeys, "these keys cannot be used together: script, run")
	}
	if m.Has("when") && m.Has("rules") {
		c.errorf(ir.ErrConflictingKeys, "config key may not be used with `rules`: when")
	}
	checkStartIn(c)

	if v, ok := asInt(c.get("parallel")); ok && (v < 1 || v > MaxParallel) {
		c.errorAt("parallel", ir.ErrInvalidValue, "config must be in range 1..%d", MaxParallel)
	}
}

// checkStartIn enforces that start_in and when: delayed come together.
func checkStartIn(c *checker) {
	m := c.mapping()
	delayed := c.get("when") == ir.WhenDelayed
	switch {
	case delayed && !m.Has("start_in"):
		c.errorAt("start_in", ir.ErrMissingRequiredKey, "config must be present when `when` is delayed")
	case !delayed && m.Has("start_in"):
		c.errorAt("start_in", ir.ErrConflictingKeys, "config must be blank when `when` is not delayed")
	case delayed:
		if s, ok := c.get("start_in").(string); ok {
			if d, err := ParseDuration(s); err == nil && d > MaxStartIn {
				c.errorAt("start_in", ir.ErrInvalidValue, "config should be a duration less than or equal to one week")
			}
		}
	}
}

func checkRule(c *checker) {
	checkStartIn(c)
}

func checkRunStep(c *checker) {
	m := c.mapping()
	if !m.Has("name") {
		c.errorf(ir.ErrMissingRequiredKey, "config missing required keys: name")
	}
	switch {
	case !m.Has("script") && !m.Has("step"):
		c.errorf(ir.ErrMissingRequiredKey, "config should implement a script: or a step: keyword")
	case m.Has("script") && m.Has("step"):
		c.errorf(ir.ErrConflictingKeys, "these keys cannot be used together: script, step")
	}
}

func checkCache(c *checker) {
	if items, ok := c.tree.nodes[c.id].config.([]any); ok && len(items) > MaxCaches {
		c.errorf(ir.ErrInvalidValue, "no more than %d caches can be created", MaxCaches)
	}
}

func checkRetry(c *checker) {
	v := c.tree.nodes[c.id].config
	key := ""
	if m := c.mapping(); m != nil {
		v, _ = m.Get("max")
		key = "max"
	}
	if n, ok := asInt(v); ok && (n < 0 || n > MaxRetries) {
		c.errorAt(key, ir.ErrInvalidValue, "config must be in range 0..%d", MaxRetries)
	}
}

func checkNeeds(c *checker) {
	items, _ := c.tree.nodes[c.id].config.([]any)
	if len(items) > MaxNeeds {
		c.errorf(ir.ErrInvalidValue, "config has too many entries (maximum %d)", MaxNeeds)
	}
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		name := needName(item)
		if name == "" {
			continue
		}
		if seen[name] {
			c.errorf(ir.ErrInvalidValue, "config contains duplicate need: %s", name)
			continue
		}
		seen[name] = true
	}
}

func needName(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case *ir.Mapping:
		job, _ := v.Get("job")
		name, _ := job.(string)
		if p, ok := v.Get("pipeline"); ok {
			return fmt.Sprintf("%v:%s", p, name)
		}
		if p, ok := v.Get("project"); ok {
			return fmt.Sprintf("%v:%s", p, name)
		}
		return name
	}
	return ""
}

func checkNeed(c *checker) {
	m := c.mapping()
	if m == nil {
		return
	}
	if !m.Has("job") {
		c.errorf(ir.ErrMissingRequiredKey, "config missing required keys: job")
	}
	if m.Has("pipeline") && m.Has("project") {
		c.errorf(ir.ErrConflictingKeys, "these keys cannot be used together: pipeline, project")
	}
	if m.Has("ref") && !m.Has("project") {
		c.errorAt("ref", ir.ErrConflictingKeys, "config may only be used with `project`")
	}
}

// checkIncludeItem matches an include item against the accessor list.
func checkIncludeItem(c *checker) {
	m := c.mapping()
	if m == nil {
		if s, _ := c.tree.nodes[c.id].config.(string); s == "" {
			c.includeError("config should not be blank")
		}
		return
	}
	var accessors []string
	for _, kind := range ir.SourceKinds {
		if m.Has(string(kind)) {
			accessors = append(accessors, string(kind))
		}
	}
	if len(accessors) != 1 {
		c.includeError("`%s` needs to match exactly one accessor: %s", includeSummary(m), joinKinds(ir.SourceKinds))
		return
	}
	switch accessors[0] {
	case string(ir.SourceProject):
		if !m.Has("file") {
			c.includeError("config missing required keys: file")
		}
	default:
		if m.Has("file") {
			c.includeError("config key may only be used with `project`: file")
		}
		if m.Has("ref") {
			c.includeError("config key may only be used with `project`: ref")
		}
	}
	if m.Has("inputs") && accessors[0] == string(ir.SourceTemplate) {
		c.includeError("config key may not be used with `template`: inputs")
	}
}

func (c *checker) includeError(format string, args ...any) {
	n := &c.tree.nodes[c.id]
	n.errs = append(n.errs, ir.NewError(ir.KindStructural, ir.ErrIncludeInvalid, n.location, format, args...))
}

func includeSummary(m *ir.Mapping) string {
	return "{" + strings.Join(m.Keys(), ", ") + "}"
}

func joinKinds(kinds []ir.SourceKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
