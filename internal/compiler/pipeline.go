package compiler

import (
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/pipec/internal/entry"
	"github.com/roach88/pipec/internal/interpolate"
	"github.com/roach88/pipec/internal/ir"
	"github.com/roach88/pipec/internal/rules"
)

// pipeline holds the state of one compile after the entry tree is valid.
type pipeline struct {
	root   *entry.Root
	pctx   *ir.PipelineContext
	logger *zap.Logger
	diags  ir.Diagnostics

	workflowRules *rules.Set
	jobRules      map[string]*rules.Set
}

// compiledJob is an included job on its way to the output.
type compiledJob struct {
	job   *entry.Job
	def   ir.JobDefinition
	stage int
}

func newPipeline(root *entry.Root, pctx *ir.PipelineContext, logger *zap.Logger) *pipeline {
	return &pipeline{
		root:     root,
		pctx:     pctx,
		logger:   logger,
		jobRules: make(map[string]*rules.Set),
	}
}

func (p *pipeline) errorf(kind ir.ErrorKind, code, location, format string, args ...any) {
	p.diags = append(p.diags, ir.NewError(kind, code, location, format, args...))
}

func (p *pipeline) warnf(code, location, format string, args ...any) {
	p.diags = append(p.diags, ir.NewWarning(code, location, format, args...))
}

// fail records a rule evaluation error.
func (p *pipeline) fail(err error, location string) {
	var d ir.Diagnostic
	if errors.As(err, &d) {
		p.diags = append(p.diags, d)
		return
	}
	p.errorf(ir.KindRuleEvaluation, ir.ErrExpressionEval, location, "%v", err)
}

// prepare runs every check that needs no rule evaluation. It reports
// whether the pipeline may be evaluated.
func (p *pipeline) prepare() bool {
	p.checkStages()
	p.checkVariableCycles()
	p.compileRules()
	p.warnDuplicatePipelines()
	return !p.diags.HasErrors()
}

func stageOf(job *entry.Job) string {
	if job.Stage == "" {
		return entry.DefaultJobStage
	}
	return job.Stage
}

func (p *pipeline) checkStages() {
	if p.root.Stages == nil {
		return
	}
	for _, job := range p.root.Jobs {
		stage := stageOf(job)
		if p.root.StageIndex(stage) < 0 {
			p.errorf(ir.KindStructural, ir.ErrUnknownStage, job.Location+".stage",
				"%s job: chosen stage %s does not exist; available stages are %s",
				job.Name, stage, strings.Join(p.root.Stages, ", "))
		}
	}
}

func rawNames(vars []entry.Variable) map[string]bool {
	raw := make(map[string]bool)
	for _, v := range vars {
		if !v.Expand {
			raw[v.Name] = true
		}
	}
	return raw
}

// checkVariableCycles checks global variables, then each job's variables
// together with the globals it inherits. A cycle among globals alone is
// reported once.
func (p *pipeline) checkVariableCycles() {
	global := interpolate.CheckCycles(entry.VariableMap(p.root.Variables), rawNames(p.root.Variables), "variables")
	p.diags = append(p.diags, global...)

	seen := make(map[string]bool, len(global))
	for _, d := range global {
		seen[d.Message] = true
	}
	for _, job := range p.root.Jobs {
		if len(job.Variables) == 0 {
			continue
		}
		vars := append(job.InheritedVariables(p.root.Variables), job.Variables...)
		for _, d := range interpolate.CheckCycles(entry.VariableMap(vars), rawNames(vars), job.Location+".variables") {
			if !seen[d.Message] {
				p.diags = append(p.diags, d)
			}
		}
	}
}

// compileRules pre-parses every rule so malformed ones are reported even
// when an earlier rule would match.
func (p *pipeline) compileRules() {
	if wf := p.root.Workflow; wf != nil && wf.HasRules {
		set, diags := rules.Compile(wf.Rules, wf.Location+".rules")
		p.diags = append(p.diags, diags...)
		p.workflowRules = set
	}
	for _, job := range p.root.Jobs {
		if len(job.Rules) == 0 {
			continue
		}
		set, diags := rules.Compile(job.Rules, job.RulesLocation())
		p.diags = append(p.diags, diags...)
		p.jobRules[job.Name] = set
	}
}

// warnDuplicatePipelines flags jobs that would run for every pipeline
// source when no workflow:rules narrow them.
func (p *pipeline) warnDuplicatePipelines() {
	if wf := p.root.Workflow; wf != nil && wf.HasRules {
		return
	}
	for _, job := range p.root.Jobs {
		for _, r := range job.Rules {
			if r.If == "" && r.When != "" && r.When != ir.WhenNever {
				p.warnf(ir.WarnDuplicatePipelines, job.RulesLocation(),
					"jobs:%s may allow multiple pipelines to run for a single action due to `rules:when` clause with no `workflow:rules`",
					job.Name)
				break
			}
		}
	}
}

// scope layers variables for rule evaluation: predefined, then each
// layer in order, then the context's own variables.
func (p *pipeline) scope(layers ...[]entry.Variable) *rules.Scope {
	vars := p.pctx.PredefinedVariables()
	for _, layer := range layers {
		for _, v := range layer {
			vars[v.Name] = v.Value
		}
	}
	for k, v := range p.pctx.Variables {
		vars[k] = v
	}
	return &rules.Scope{
		Variables:           vars,
		ChangedPaths:        p.pctx.ChangedPaths,
		CompareChangedPaths: p.pctx.CompareChangedPaths,
		RepositoryFiles:     p.pctx.RepositoryFiles,
	}
}

// overrideVariables applies rule variables over vars. Existing names keep
// their position; new names are appended in sorted order.
func overrideVariables(vars []entry.Variable, overrides map[string]string) []entry.Variable {
	if len(overrides) == 0 {
		return vars
	}
	out := make([]entry.Variable, len(vars))
	copy(out, vars)

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		replaced := false
		for i := range out {
			if out[i].Name == name {
				out[i].Value = overrides[name]
				out[i].Expand = true
				replaced = true
			}
		}
		if !replaced {
			out = append(out, entry.Variable{Name: name, Value: overrides[name], Expand: true})
		}
	}
	return out
}

// evaluate runs workflow and job rules, builds the included jobs and
// validates them as a graph. ok is false when errors were recorded.
func (p *pipeline) evaluate() (jobs []ir.JobDefinition, ok bool) {
	globals := p.root.Variables
	if p.workflowRules != nil {
		wf := p.root.Workflow
		outcome, err := p.workflowRules.Evaluate(p.scope(globals))
		if err != nil {
			p.fail(err, wf.Location+".rules")
			return nil, false
		}
		if !outcome.Included() {
			p.warnf(ir.WarnWorkflowFiltered, wf.Location+".rules", "pipeline filtered out by workflow rules")
			return []ir.JobDefinition{}, true
		}
		globals = overrideVariables(globals, outcome.Rule.Variables)
	}

	var included []*compiledJob
	for _, job := range p.root.Jobs {
		cj, err := p.buildJob(job, globals)
		if err != nil {
			p.fail(err, job.RulesLocation())
			continue
		}
		if cj != nil {
			included = append(included, cj)
		}
	}
	if p.diags.HasErrors() {
		return nil, false
	}
	if len(p.root.Jobs) > 0 && len(included) == 0 {
		p.warnf(ir.WarnNoJobs, "jobs", "all jobs were excluded by rules")
		return []ir.JobDefinition{}, true
	}

	p.validateGraph(included)
	if p.diags.HasErrors() {
		return nil, false
	}

	sort.SliceStable(included, func(i, j int) bool {
		return included[i].stage < included[j].stage
	})
	jobs = make([]ir.JobDefinition, len(included))
	for i, cj := range included {
		jobs[i] = cj.def
	}
	return jobs, true
}

// buildJob evaluates one job. It returns nil for a job its rules exclude.
func (p *pipeline) buildJob(job *entry.Job, globals []entry.Variable) (*compiledJob, error) {
	j := job.WithDefaults(p.root.Default)
	inherited := j.InheritedVariables(globals)

	var outcome rules.Outcome
	if set, ok := p.jobRules[j.Name]; ok {
		o, err := set.Evaluate(p.scope(inherited, j.Variables))
		if err != nil {
			return nil, err
		}
		if !o.Included() {
			p.logger.Debug("job excluded by rules", zap.String("job", j.Name))
			return nil, nil
		}
		outcome = o
	}

	stage := stageOf(j)
	def := ir.JobDefinition{
		Name:          j.Name,
		Stage:         stage,
		Script:        j.Script,
		Run:           j.Run,
		BeforeScript:  j.BeforeScript,
		AfterScript:   j.AfterScript,
		Image:         j.Image,
		Services:      j.Services,
		Variables:     jobVariables(inherited, j.Variables, outcome.Rule.Variables),
		Needs:         append([]ir.Need(nil), j.Needs...),
		Dependencies:  j.Dependencies,
		Tags:          j.Tags,
		Timeout:       j.Timeout,
		Retry:         j.Retry,
		Interruptible: j.Interruptible,
		Cache:         j.Cache,
		Artifacts:     j.Artifacts,
		Environment:   j.Environment,
		Release:       j.Release,
		Parallel:      j.Parallel,
		StartIn:       j.StartIn,
		ResourceGroup: j.ResourceGroup,
		Coverage:      j.Coverage,
		RulesOutcome:  outcome.Report(),
	}

	if outcome.Matched {
		def.When = outcome.When(ir.WhenOnSuccess)
	} else {
		def.When = j.When
		if def.When == "" {
			def.When = ir.WhenOnSuccess
		}
	}

	switch {
	case outcome.Matched && outcome.Rule.AllowFailure != nil:
		def.AllowFailure = *outcome.Rule.AllowFailure
	case j.AllowFailure != nil:
		def.AllowFailure = j.AllowFailure.Allowed
		def.ExitCodes = j.AllowFailure.ExitCodes
	case !outcome.Matched && def.When == ir.WhenManual:
		// Manual jobs do not block the pipeline unless they say so.
		def.AllowFailure = true
	}
	if outcome.Matched {
		if len(outcome.Rule.ExitCodes) > 0 {
			def.ExitCodes = outcome.Rule.ExitCodes
		}
		if outcome.Rule.StartIn != "" {
			def.StartIn = outcome.Rule.StartIn
		}
	}

	return &compiledJob{job: j, def: def, stage: p.root.StageIndex(stage)}, nil
}

// jobVariables flattens inherited globals, job variables and rule
// overrides, later layers winning. The result is never nil.
func jobVariables(inherited, own []entry.Variable, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(inherited)+len(own)+len(overrides))
	for _, v := range inherited {
		out[v.Name] = v.Value
	}
	for _, v := range own {
		out[v.Name] = v.Value
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
