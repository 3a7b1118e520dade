package entry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/pipec/internal/ir"
	"github.com/roach88/pipec/internal/rules"
)

// composer is the view a compose function has of one valid node.
type composer struct {
	tree *Tree
	id   NodeID
}

func (c *composer) config() any      { return c.tree.nodes[c.id].config }
func (c *composer) key() string      { return c.tree.nodes[c.id].key }
func (c *composer) location() string { return c.tree.nodes[c.id].location }

func (c *composer) has(key string) bool {
	_, ok := c.tree.nodes[c.id].byKey[key]
	return ok
}

// child returns the composed value of the child at key.
func (c *composer) child(key string) any {
	id, ok := c.tree.nodes[c.id].byKey[key]
	if !ok {
		return nil
	}
	return c.tree.Value(id)
}

// values returns the composed values of all children in order.
func (c *composer) values() []any {
	children := c.tree.nodes[c.id].children
	out := make([]any, len(children))
	for i, id := range children {
		out[i] = c.tree.Value(id)
	}
	return out
}

func (c *composer) str(key string) string {
	s, _ := c.child(key).(string)
	return s
}

func (c *composer) strs(key string) []string {
	s, _ := c.child(key).([]string)
	return s
}

func (c *composer) boolean(key string) bool {
	b, _ := c.child(key).(bool)
	return b
}

func (c *composer) integer(key string) int {
	n, _ := asInt(c.child(key))
	return n
}

// setKeys records the keys a hash node configured.
func (c *composer) setKeys() map[string]bool {
	set := make(map[string]bool)
	for key := range c.tree.nodes[c.id].byKey {
		set[key] = true
	}
	return set
}

// scalarText renders a scalar as a variable value.
func scalarText(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func toStrings(v any) []string {
	switch v := v.(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, item.(string))
		}
		return out
	}
	return nil
}

func composeText(c *composer) any { return scalarText(c.config()) }

func composeStringList(c *composer) any {
	out := toStrings(c.config())
	if out == nil {
		out = []string{}
	}
	return out
}

func composeStringOrList(c *composer) any { return toStrings(c.config()) }

// composeScript flattens nested script arrays into lines.
func composeScript(c *composer) any {
	var out []string
	var walk func(v any)
	walk = func(v any) {
		switch v := v.(type) {
		case string:
			out = append(out, v)
		case []any:
			for _, item := range v {
				walk(item)
			}
		}
	}
	walk(c.config())
	if out == nil {
		out = []string{}
	}
	return out
}

func composeRoot(c *composer) any {
	root := &Root{Stages: effectiveStages(c.strs("stages"), c.has("stages"))}
	if v, ok := c.child("variables").([]Variable); ok {
		root.Variables = v
	}
	root.Default, _ = c.child("default").(*Default)
	root.Workflow, _ = c.child("workflow").(*Workflow)
	root.Jobs, _ = c.child("jobs").([]*Job)
	root.Includes, _ = c.child("include").([]IncludeDirective)
	return root
}

// partialRoot composes the valid parts of an invalid tree.
func (t *Tree) partialRoot() *Root {
	c := &composer{tree: t, id: t.Root()}
	root := &Root{}
	if id, ok := t.Child(t.Root(), "stages"); !ok || t.Valid(id) {
		root.Stages = effectiveStages(c.strs("stages"), ok)
	}
	root.Variables, _ = c.child("variables").([]Variable)
	root.Default, _ = c.child("default").(*Default)
	root.Workflow, _ = c.child("workflow").(*Workflow)
	root.Includes, _ = c.child("include").([]IncludeDirective)
	if id, ok := t.Child(t.Root(), "jobs"); ok {
		for _, child := range t.Children(id) {
			if job, ok := t.Value(child).(*Job); ok {
				root.Jobs = append(root.Jobs, job)
			}
		}
	}
	return root
}

// effectiveStages wraps the declared stages in .pre and .post.
func effectiveStages(declared []string, set bool) []string {
	if !set {
		declared = DefaultStages
	}
	out := []string{StagePre}
	for _, s := range declared {
		if s != StagePre && s != StagePost {
			out = append(out, s)
		}
	}
	return append(out, StagePost)
}

func composeVariables(c *composer) any {
	out := make([]Variable, 0)
	for _, v := range c.values() {
		out = append(out, v.(Variable))
	}
	return out
}

func composeVariable(c *composer) any {
	v := Variable{Name: c.key(), Expand: true}
	if _, ok := c.config().(*ir.Mapping); !ok {
		v.Value = scalarText(c.config())
		return v
	}
	v.Value = c.str("value")
	v.Description = c.str("description")
	if c.has("expand") {
		v.Expand = c.boolean("expand")
	}
	v.Options = c.strs("options")
	return v
}

func composeRuleVariables(c *composer) any {
	out := make(map[string]string)
	for _, key := range c.config().(*ir.Mapping).Keys() {
		out[key] = c.str(key)
	}
	return out
}

func composeDefault(c *composer) any {
	d := &Default{
		BeforeScript:  c.strs("before_script"),
		AfterScript:   c.strs("after_script"),
		Tags:          c.strs("tags"),
		Timeout:       c.str("timeout"),
		Interruptible: c.boolean("interruptible"),
		set:           c.setKeys(),
	}
	d.Image, _ = c.child("image").(*ir.Image)
	d.Services, _ = c.child("services").([]ir.Image)
	d.Cache, _ = c.child("cache").([]ir.Cache)
	d.Artifacts, _ = c.child("artifacts").(*ir.Artifacts)
	d.Retry, _ = c.child("retry").(*ir.Retry)
	return d
}

func composeWorkflow(c *composer) any {
	w := &Workflow{Name: c.str("name"), HasRules: c.has("rules"), Location: c.location()}
	w.Rules, _ = c.child("rules").([]rules.Rule)
	return w
}

func composeRuleList(c *composer) any {
	out := make([]rules.Rule, 0)
	for _, v := range c.values() {
		out = append(out, v.(rules.Rule))
	}
	return out
}

func composeRule(c *composer) any {
	r := rules.Rule{
		If:      c.str("if"),
		When:    c.str("when"),
		StartIn: c.str("start_in"),
	}
	r.Changes, _ = c.child("changes").(*rules.Changes)
	r.Exists, _ = c.child("exists").(*rules.Exists)
	r.Variables, _ = c.child("variables").(map[string]string)
	if af, ok := c.child("allow_failure").(*AllowFailure); ok {
		allowed := af.Allowed
		r.AllowFailure = &allowed
		r.ExitCodes = af.ExitCodes
	}
	return r
}

func composeChanges(c *composer) any {
	if _, ok := c.config().(*ir.Mapping); !ok {
		return &rules.Changes{Paths: toStrings(c.config())}
	}
	return &rules.Changes{Paths: c.strs("paths"), CompareTo: c.str("compare_to")}
}

func composeExists(c *composer) any {
	if _, ok := c.config().(*ir.Mapping); !ok {
		return &rules.Exists{Paths: toStrings(c.config())}
	}
	return &rules.Exists{Paths: c.strs("paths")}
}

func composeJobs(c *composer) any {
	out := make([]*Job, 0)
	for _, v := range c.values() {
		if job, ok := v.(*Job); ok {
			out = append(out, job)
		}
	}
	return out
}

func composeJob(c *composer) any {
	j := &Job{
		Name:          c.key(),
		Location:      c.location(),
		Script:        c.strs("script"),
		BeforeScript:  c.strs("before_script"),
		AfterScript:   c.strs("after_script"),
		Stage:         c.str("stage"),
		When:          c.str("when"),
		Tags:          c.strs("tags"),
		Timeout:       c.str("timeout"),
		Interruptible: c.boolean("interruptible"),
		Dependencies:  c.strs("dependencies"),
		Parallel:      c.integer("parallel"),
		StartIn:       c.str("start_in"),
		ResourceGroup: c.str("resource_group"),
		Coverage:      c.str("coverage"),
		set:           c.setKeys(),
	}
	j.Run, _ = c.child("run").([]ir.RunStep)
	j.Image, _ = c.child("image").(*ir.Image)
	j.Services, _ = c.child("services").([]ir.Image)
	j.Cache, _ = c.child("cache").([]ir.Cache)
	j.Artifacts, _ = c.child("artifacts").(*ir.Artifacts)
	j.Rules, _ = c.child("rules").([]rules.Rule)
	j.Needs, _ = c.child("needs").([]ir.Need)
	j.Variables, _ = c.child("variables").([]Variable)
	j.AllowFailure, _ = c.child("allow_failure").(*AllowFailure)
	j.Retry, _ = c.child("retry").(*ir.Retry)
	j.Environment, _ = c.child("environment").(*ir.Environment)
	j.Release, _ = c.child("release").(*ir.Release)
	if inherit, ok := c.child("inherit").(Inherit); ok {
		j.Inherit = inherit
	} else {
		j.Inherit = Inherit{Default: InheritPolicy{All: true}, Variables: InheritPolicy{All: true}}
	}
	return j
}

func composeRun(c *composer) any {
	out := make([]ir.RunStep, 0)
	for _, v := range c.values() {
		out = append(out, v.(ir.RunStep))
	}
	return out
}

func composeRunStep(c *composer) any {
	return ir.RunStep{Name: c.str("name"), Script: c.str("script"), Step: c.str("step")}
}

// composeImage serves both image: and services: items.
func composeImage(c *composer) any {
	if s, ok := c.config().(string); ok {
		return &ir.Image{Name: s}
	}
	return &ir.Image{
		Name:       c.str("name"),
		Entrypoint: c.strs("entrypoint"),
		Command:    c.strs("command"),
		Alias:      c.str("alias"),
		PullPolicy: c.strs("pull_policy"),
	}
}

func composeServices(c *composer) any {
	out := make([]ir.Image, 0)
	for _, v := range c.values() {
		out = append(out, *v.(*ir.Image))
	}
	return out
}

func composeCache(c *composer) any {
	out := make([]ir.Cache, 0)
	for _, v := range c.values() {
		out = append(out, v.(ir.Cache))
	}
	return out
}

func composeCacheItem(c *composer) any {
	cache := ir.Cache{
		Paths:        c.strs("paths"),
		Untracked:    c.boolean("untracked"),
		Policy:       c.str("policy"),
		When:         c.str("when"),
		FallbackKeys: c.strs("fallback_keys"),
	}
	cache.Key, _ = c.child("key").(*ir.CacheKey)
	return cache
}

func composeCacheKey(c *composer) any {
	if _, ok := c.config().(*ir.Mapping); !ok {
		return &ir.CacheKey{Value: scalarText(c.config())}
	}
	return &ir.CacheKey{Files: c.strs("files"), Prefix: c.str("prefix")}
}

func composeArtifacts(c *composer) any {
	a := &ir.Artifacts{
		Name:      c.str("name"),
		Paths:     c.strs("paths"),
		Exclude:   c.strs("exclude"),
		Untracked: c.boolean("untracked"),
		When:      c.str("when"),
		ExpireIn:  c.str("expire_in"),
		ExposeAs:  c.str("expose_as"),
	}
	a.Reports, _ = c.child("reports").(map[string][]string)
	return a
}

func composeReports(c *composer) any {
	out := make(map[string][]string)
	for _, key := range c.config().(*ir.Mapping).Keys() {
		out[key] = c.strs(key)
	}
	return out
}

func composeNeeds(c *composer) any {
	out := make([]ir.Need, 0)
	for _, v := range c.values() {
		out = append(out, v.(ir.Need))
	}
	return out
}

// composeNeed defaults artifacts to true, as a need downloads the
// needed job's artifacts unless told otherwise.
func composeNeed(c *composer) any {
	if s, ok := c.config().(string); ok {
		return ir.Need{Job: s, Artifacts: true}
	}
	need := ir.Need{
		Job:       c.str("job"),
		Optional:  c.boolean("optional"),
		Artifacts: true,
		Pipeline:  c.str("pipeline"),
	}
	if c.has("artifacts") {
		need.Artifacts = c.boolean("artifacts")
	}
	if project := c.str("project"); project != "" {
		need.Pipeline = project
	}
	return need
}

func composeAllowFailure(c *composer) any {
	if b, ok := c.config().(bool); ok {
		return &AllowFailure{Allowed: b}
	}
	codes, _ := c.child("exit_codes").([]int)
	return &AllowFailure{ExitCodes: codes}
}

func composeExitCodes(c *composer) any {
	if n, ok := asInt(c.config()); ok {
		return []int{n}
	}
	items := c.config().([]any)
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, _ := asInt(item)
		out = append(out, n)
	}
	return out
}

func composeRetry(c *composer) any {
	if n, ok := asInt(c.config()); ok {
		return &ir.Retry{Max: n}
	}
	return &ir.Retry{Max: c.integer("max"), When: c.strs("when")}
}

func composeEnvironment(c *composer) any {
	if s, ok := c.config().(string); ok {
		return &ir.Environment{Name: s}
	}
	return &ir.Environment{
		Name:   c.str("name"),
		URL:    c.str("url"),
		Action: c.str("action"),
		OnStop: c.str("on_stop"),
	}
}

func composeRelease(c *composer) any {
	return &ir.Release{
		TagName:     c.str("tag_name"),
		Description: c.str("description"),
		Name:        c.str("name"),
		Ref:         c.str("ref"),
		ReleasedAt:  c.str("released_at"),
	}
}

func composeInherit(c *composer) any {
	inherit := Inherit{Default: InheritPolicy{All: true}, Variables: InheritPolicy{All: true}}
	if p, ok := c.child("default").(InheritPolicy); ok {
		inherit.Default = p
	}
	if p, ok := c.child("variables").(InheritPolicy); ok {
		inherit.Variables = p
	}
	return inherit
}

func composeInheritPolicy(c *composer) any {
	if b, ok := c.config().(bool); ok {
		return InheritPolicy{All: b}
	}
	return InheritPolicy{Names: toStrings(c.config())}
}

func composeIncludes(c *composer) any {
	out := make([]IncludeDirective, 0)
	for _, v := range c.values() {
		out = append(out, v.(IncludeDirective))
	}
	return out
}

func composeIncludeItem(c *composer) any {
	d := IncludeDirective{Location: c.location(), Raw: c.config()}
	if s, ok := c.config().(string); ok {
		d.Sources = []ir.IncludeSource{{Kind: ShorthandKind(s), Location: s}}
		return d
	}

	inputs, _ := c.child("inputs").(map[string]any)
	d.Rules, _ = c.child("rules").([]rules.Rule)
	switch {
	case c.has("project"):
		for _, file := range c.strs("file") {
			d.Sources = append(d.Sources, ir.IncludeSource{
				Kind:     ir.SourceProject,
				Location: file,
				Project:  c.str("project"),
				Ref:      c.str("ref"),
				Inputs:   inputs,
			})
		}
	default:
		for _, kind := range ir.SourceKinds {
			if c.has(string(kind)) {
				d.Sources = []ir.IncludeSource{{Kind: kind, Location: c.str(string(kind)), Inputs: inputs}}
				break
			}
		}
	}
	return d
}

// ShorthandKind classifies a bare include string: URLs are remote,
// everything else is local.
func ShorthandKind(s string) ir.SourceKind {
	for _, prefix := range []string{"http://", "https://", "s3://"} {
		if strings.HasPrefix(s, prefix) {
			return ir.SourceRemote
		}
	}
	return ir.SourceLocal
}

func composeInputValues(c *composer) any {
	return c.config().(*ir.Mapping).ToMap()
}

func composeSpec(c *composer) any {
	h := &Header{}
	h.Inputs, _ = c.child("inputs").(*ir.Mapping)
	h.Includes, _ = c.child("include").([]IncludeDirective)
	return h
}
