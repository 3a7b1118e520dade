package ir

import (
	"fmt"
	"slices"
)

// SourceKind names the origin of an included configuration fragment.
type SourceKind string

const (
	SourceLocal     SourceKind = "local"
	SourceRemote    SourceKind = "remote"
	SourceProject   SourceKind = "project"
	SourceTemplate  SourceKind = "template"
	SourceComponent SourceKind = "component"
)

// SourceKinds lists every include accessor in matcher order.
var SourceKinds = []SourceKind{SourceLocal, SourceRemote, SourceProject, SourceTemplate, SourceComponent}

// IncludeSource is a resolved include directive.
//
// Location holds the path (local), URL (remote), file path (project),
// template name (template) or component address (component). Project and
// Ref are set for project includes and for local includes nested inside a
// project include, which resolve relative to that project.
type IncludeSource struct {
	Kind     SourceKind     `json:"kind"`
	Location string         `json:"location"`
	Project  string         `json:"project,omitempty"`
	Ref      string         `json:"ref,omitempty"`
	Inputs   map[string]any `json:"inputs,omitempty"`
}

// Identity returns the source-kind-relative identity used for cycle
// detection: two sources with the same kind and identity are the same file.
func (s IncludeSource) Identity() string {
	switch s.Kind {
	case SourceProject:
		return fmt.Sprintf("%s@%s:%s", s.Project, s.refOrHead(), s.Location)
	case SourceLocal:
		if s.Project != "" {
			return fmt.Sprintf("%s@%s:%s", s.Project, s.refOrHead(), s.Location)
		}
		return s.Location
	default:
		return s.Location
	}
}

// Key returns the (kind, identity) pair as one string.
func (s IncludeSource) Key() string {
	return string(s.Kind) + ":" + s.Identity()
}

// String describes the source for humans, e.g. "local `ci/build.yml`".
func (s IncludeSource) String() string {
	return fmt.Sprintf("%s `%s`", s.Kind, s.Identity())
}

func (s IncludeSource) refOrHead() string {
	if s.Ref == "" {
		return "HEAD"
	}
	return s.Ref
}

// Fetched is the raw text of a fetched include plus its content identity.
type Fetched struct {
	// Name is the file name used for format detection (extension).
	Name string `json:"name"`

	// Content is the raw configuration text.
	Content []byte `json:"-"`

	// Identity is a content-addressable digest of Content.
	Identity string `json:"identity"`
}

// ResolvedInclude records one file merged into the compiled document.
type ResolvedInclude struct {
	Source   IncludeSource `json:"source"`
	Identity string        `json:"identity"`
	Depth    int           `json:"depth"`
	Parent   string        `json:"parent,omitempty"`
}

// SchedulingMode selects how needs relate to stages.
type SchedulingMode string

const (
	// ModeStage requires every need to sit in a prior or the same stage.
	ModeStage SchedulingMode = "stage"

	// ModeDAG allows needs on any stage as long as the graph is acyclic.
	ModeDAG SchedulingMode = "dag"
)

// ParseSchedulingMode parses a mode name. The empty string means ModeStage.
func ParseSchedulingMode(s string) (SchedulingMode, error) {
	switch SchedulingMode(s) {
	case "", ModeStage:
		return ModeStage, nil
	case ModeDAG:
		return ModeDAG, nil
	default:
		return "", fmt.Errorf("invalid scheduling mode %q: must be %q or %q", s, ModeStage, ModeDAG)
	}
}

// PipelineContext holds the trigger-time facts rules are evaluated against.
// It is supplied by the caller and never modified by the compiler.
type PipelineContext struct {
	// Variables in effect at trigger time. They win over variables declared
	// in the configuration when rules are evaluated.
	Variables map[string]string `json:"variables,omitempty" yaml:"variables" mapstructure:"variables"`

	// ChangedPaths lists changed files. Nil means no diff information is
	// available, which makes every changes clause true.
	ChangedPaths []string `json:"changed_paths" yaml:"changed_paths" mapstructure:"changed_paths"`

	// CompareChangedPaths lists changed files relative to a compare_to ref.
	CompareChangedPaths map[string][]string `json:"compare_changed_paths,omitempty" yaml:"compare_changed_paths" mapstructure:"compare_changed_paths"`

	// Ref is the branch or tag the pipeline runs for.
	Ref string `json:"ref,omitempty" yaml:"ref" mapstructure:"ref"`

	// RepositoryFiles lists the files of the repository at Ref, used by
	// exists clauses. Nil means the listing is unavailable.
	RepositoryFiles []string `json:"repository_files" yaml:"repository_files" mapstructure:"repository_files"`

	// ExistingJobs names jobs known to exist in other pipelines, used by
	// cross-pipeline needs. Nil means unknown; such needs are then accepted.
	ExistingJobs []string `json:"existing_jobs" yaml:"existing_jobs" mapstructure:"existing_jobs"`

	// Inputs are the values for the root document's spec:inputs.
	Inputs map[string]any `json:"inputs,omitempty" yaml:"inputs" mapstructure:"inputs"`

	// ProjectPath names the project being built (CI_PROJECT_PATH).
	ProjectPath string `json:"project_path,omitempty" yaml:"project_path" mapstructure:"project_path"`

	// Mode selects stage or DAG needs semantics. Empty means ModeStage.
	Mode SchedulingMode `json:"mode,omitempty" yaml:"mode" mapstructure:"mode"`
}

// JobExists reports whether name is a known job. known is false when the
// context carries no job listing.
func (c *PipelineContext) JobExists(name string) (exists, known bool) {
	if c == nil || c.ExistingJobs == nil {
		return false, false
	}
	return slices.Contains(c.ExistingJobs, name), true
}

// PredefinedVariables returns the CI_ variables derived from the context.
func (c *PipelineContext) PredefinedVariables() map[string]string {
	vars := map[string]string{}
	if c == nil {
		return vars
	}
	if c.Ref != "" {
		vars["CI_COMMIT_REF_NAME"] = c.Ref
	}
	if c.ProjectPath != "" {
		vars["CI_PROJECT_PATH"] = c.ProjectPath
	}
	return vars
}

// ContextVariables returns the predefined variables overlaid with the
// context's own variables.
func (c *PipelineContext) ContextVariables() map[string]string {
	vars := c.PredefinedVariables()
	if c != nil {
		for k, v := range c.Variables {
			vars[k] = v
		}
	}
	return vars
}

// SchedulingMode returns the effective mode.
func (c *PipelineContext) SchedulingMode() SchedulingMode {
	if c == nil || c.Mode == "" {
		return ModeStage
	}
	return c.Mode
}

// Image is a container image reference for a job or service.
type Image struct {
	Name       string   `json:"name"`
	Entrypoint []string `json:"entrypoint,omitempty"`
	Command    []string `json:"command,omitempty"`
	Alias      string   `json:"alias,omitempty"`
	PullPolicy []string `json:"pull_policy,omitempty"`
}

// CacheKey identifies a cache either literally or by the files it hashes.
type CacheKey struct {
	Value  string   `json:"value,omitempty"`
	Files  []string `json:"files,omitempty"`
	Prefix string   `json:"prefix,omitempty"`
}

// Cache describes one job cache.
type Cache struct {
	Key          *CacheKey `json:"key,omitempty"`
	Paths        []string  `json:"paths,omitempty"`
	Untracked    bool      `json:"untracked,omitempty"`
	Policy       string    `json:"policy,omitempty"`
	When         string    `json:"when,omitempty"`
	FallbackKeys []string  `json:"fallback_keys,omitempty"`
}

// Artifacts describes files kept after a job.
type Artifacts struct {
	Name      string              `json:"name,omitempty"`
	Paths     []string            `json:"paths,omitempty"`
	Exclude   []string            `json:"exclude,omitempty"`
	Untracked bool                `json:"untracked,omitempty"`
	When      string              `json:"when,omitempty"`
	ExpireIn  string              `json:"expire_in,omitempty"`
	ExposeAs  string              `json:"expose_as,omitempty"`
	Reports   map[string][]string `json:"reports,omitempty"`
}

// Environment names the deployment target of a job.
type Environment struct {
	Name   string `json:"name"`
	URL    string `json:"url,omitempty"`
	Action string `json:"action,omitempty"`
	OnStop string `json:"on_stop,omitempty"`
}

// Release describes a release created by a job.
type Release struct {
	TagName     string `json:"tag_name"`
	Description string `json:"description"`
	Name        string `json:"name,omitempty"`
	Ref         string `json:"ref,omitempty"`
	ReleasedAt  string `json:"released_at,omitempty"`
}

// Retry limits automatic retries of a failed job.
type Retry struct {
	Max  int      `json:"max"`
	When []string `json:"when,omitempty"`
}

// Need is one edge of the job graph.
type Need struct {
	Job       string `json:"job"`
	Optional  bool   `json:"optional,omitempty"`
	Artifacts bool   `json:"artifacts"`
	Pipeline  string `json:"pipeline,omitempty"`
}

// RunStep is one step of a job defined with run: instead of script:.
type RunStep struct {
	Name   string `json:"name"`
	Script string `json:"script,omitempty"`
	Step   string `json:"step,omitempty"`
}

// RulesOutcome records which rule decided a job's inclusion.
type RulesOutcome struct {
	// Matched is the index of the matching rule.
	Matched int `json:"matched"`

	// Clause summarises the matching rule, e.g. `if: $CI_COMMIT_BRANCH == "main"`.
	Clause string `json:"clause"`
}

// JobDefinition is one compiled job, ready for a scheduler.
type JobDefinition struct {
	Name          string            `json:"name"`
	Stage         string            `json:"stage"`
	Script        []string          `json:"script,omitempty"`
	Run           []RunStep         `json:"run,omitempty"`
	BeforeScript  []string          `json:"before_script,omitempty"`
	AfterScript   []string          `json:"after_script,omitempty"`
	Image         *Image            `json:"image,omitempty"`
	Services      []Image           `json:"services,omitempty"`
	Variables     map[string]string `json:"variables"`
	Needs         []Need            `json:"needs,omitempty"`
	Dependencies  []string          `json:"dependencies,omitempty"`
	When          string            `json:"when"`
	StartIn       string            `json:"start_in,omitempty"`
	AllowFailure  bool              `json:"allow_failure,omitempty"`
	ExitCodes     []int             `json:"allow_failure_exit_codes,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	Timeout       string            `json:"timeout,omitempty"`
	Retry         *Retry            `json:"retry,omitempty"`
	Interruptible bool              `json:"interruptible,omitempty"`
	Cache         []Cache           `json:"cache,omitempty"`
	Artifacts     *Artifacts        `json:"artifacts,omitempty"`
	Environment   *Environment      `json:"environment,omitempty"`
	Release       *Release          `json:"release,omitempty"`
	Parallel      int               `json:"parallel,omitempty"`
	ResourceGroup string            `json:"resource_group,omitempty"`
	Coverage      string            `json:"coverage,omitempty"`
	RulesOutcome  *RulesOutcome     `json:"rules_outcome,omitempty"`
}

// When policies.
const (
	WhenOnSuccess = "on_success"
	WhenOnFailure = "on_failure"
	WhenAlways    = "always"
	WhenNever     = "never"
	WhenManual    = "manual"
	WhenDelayed   = "delayed"
)
