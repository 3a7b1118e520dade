package entry

import (
	"github.com/roach88/pipec/internal/ir"
	"github.com/roach88/pipec/internal/rules"
)

// Reserved stages that always run first and last.
const (
	StagePre  = ".pre"
	StagePost = ".post"
)

// DefaultStages apply when the configuration declares no stages.
var DefaultStages = []string{"build", "test", "deploy"}

// DefaultJobStage is the stage of a job that names none.
const DefaultJobStage = "test"

// Root is the composed value of a document body.
type Root struct {
	// Stages in execution order, including .pre and .post.
	Stages []string

	Variables []Variable
	Default   *Default
	Workflow  *Workflow

	// Jobs holds the visible jobs in declaration order.
	Jobs []*Job

	Includes []IncludeDirective
}

// StageIndex returns the position of a stage, or -1.
func (r *Root) StageIndex(stage string) int {
	for i, s := range r.Stages {
		if s == stage {
			return i
		}
	}
	return -1
}

// Variable is one entry of a variables: hash.
type Variable struct {
	Name        string
	Value       string
	Description string

	// Expand is false when the value must be used verbatim.
	Expand bool

	Options []string
}

// VariableMap flattens variables into name -> value. Later entries win.
func VariableMap(vars []Variable) map[string]string {
	out := make(map[string]string, len(vars))
	for _, v := range vars {
		out[v.Name] = v.Value
	}
	return out
}

// Default holds the job attributes declared under default:.
type Default struct {
	Image         *ir.Image
	Services      []ir.Image
	BeforeScript  []string
	AfterScript   []string
	Cache         []ir.Cache
	Artifacts     *ir.Artifacts
	Tags          []string
	Timeout       string
	Retry         *ir.Retry
	Interruptible bool

	set map[string]bool
}

// IsSet reports whether key was configured.
func (d *Default) IsSet(key string) bool { return d != nil && d.set[key] }

// Workflow is the composed workflow: entry.
type Workflow struct {
	Name  string
	Rules []rules.Rule

	// HasRules distinguishes an absent rules: from an empty one.
	HasRules bool
	Location string
}

// AllowFailure is a composed allow_failure: value.
type AllowFailure struct {
	Allowed   bool
	ExitCodes []int
}

// InheritPolicy says which names a job inherits. All is true for `true`;
// Names is set for a list.
type InheritPolicy struct {
	All   bool
	Names []string
}

// Allows reports whether the policy inherits name.
func (p InheritPolicy) Allows(name string) bool {
	if p.All {
		return true
	}
	for _, n := range p.Names {
		if n == name {
			return true
		}
	}
	return false
}

// Inherit is the composed inherit: entry. Both policies default to all.
type Inherit struct {
	Default   InheritPolicy
	Variables InheritPolicy
}

// Job is one composed visible job.
type Job struct {
	Name     string
	Location string

	Script        []string
	Run           []ir.RunStep
	BeforeScript  []string
	AfterScript   []string
	Stage         string
	Image         *ir.Image
	Services      []ir.Image
	Cache         []ir.Cache
	Artifacts     *ir.Artifacts
	Rules         []rules.Rule
	Needs         []ir.Need
	Variables     []Variable
	When          string
	AllowFailure  *AllowFailure
	Tags          []string
	Timeout       string
	Retry         *ir.Retry
	Interruptible bool
	Environment   *ir.Environment
	Release       *ir.Release
	Inherit       Inherit
	Dependencies  []string
	Parallel      int
	StartIn       string
	ResourceGroup string
	Coverage      string

	set map[string]bool
}

// IsSet reports whether key was configured on the job itself.
func (j *Job) IsSet(key string) bool { return j.set[key] }

// RulesLocation is the dotted path of the job's rules list.
func (j *Job) RulesLocation() string { return j.Location + ".rules" }

// IncludeDirective is one composed include item. A project item naming
// several files yields several sources.
type IncludeDirective struct {
	Location string
	Sources  []ir.IncludeSource
	Rules    []rules.Rule

	// Raw is the item as configured, for messages.
	Raw any
}

// Header is the composed header document.
type Header struct {
	Inputs   *ir.Mapping
	Includes []IncludeDirective
}
