package compiler

import (
	"slices"

	"github.com/roach88/pipec/internal/entry"
	"github.com/roach88/pipec/internal/ir"
)

// validateGraph checks needs and dependencies across the included jobs
// and drops optional needs whose job is not in the pipeline. All errors
// are collected before returning.
func (p *pipeline) validateGraph(jobs []*compiledJob) {
	defined := make(map[string]*entry.Job, len(p.root.Jobs))
	for _, job := range p.root.Jobs {
		defined[job.Name] = job
	}
	included := make(map[string]*compiledJob, len(jobs))
	for _, cj := range jobs {
		included[cj.def.Name] = cj
	}
	stageMode := p.pctx.SchedulingMode() == ir.ModeStage

	for _, cj := range jobs {
		name := cj.def.Name
		location := cj.job.Location + ".needs"

		kept := cj.def.Needs[:0]
		for _, need := range cj.def.Needs {
			if need.Pipeline != "" {
				if exists, known := p.pctx.JobExists(need.Job); known && !exists {
					p.errorf(ir.KindGraph, ir.ErrCrossPipelineNeed, location,
						"%s job: cross-pipeline need %s does not exist in %s", name, need.Job, need.Pipeline)
				}
				kept = append(kept, need)
				continue
			}

			target, ok := included[need.Job]
			switch {
			case ok:
				if stageMode && target.stage > cj.stage {
					p.errorf(ir.KindGraph, ir.ErrNeedStageOrder, location,
						"%s job: need %s is not defined in current or prior stages", name, need.Job)
				}
				kept = append(kept, need)
			case need.Optional:
				// Optional needs on absent jobs are dropped.
			case defined[need.Job] != nil:
				p.errorf(ir.KindGraph, ir.ErrNeedExcluded, location,
					"%s job: need %s is not included in the pipeline", name, need.Job)
			default:
				p.errorf(ir.KindGraph, ir.ErrUndefinedNeed, location,
					"%s job: undefined need: %s", name, need.Job)
			}
		}
		cj.def.Needs = kept
		if len(cj.def.Needs) == 0 {
			cj.def.Needs = nil
		}

		p.checkDependencies(cj, included)
	}

	p.needsCycles(jobs)
}

// checkDependencies requires every dependency to be an included job in
// the same or an earlier stage, or one of the job's needs.
func (p *pipeline) checkDependencies(cj *compiledJob, included map[string]*compiledJob) {
	for _, dep := range cj.def.Dependencies {
		if slices.ContainsFunc(cj.def.Needs, func(n ir.Need) bool { return n.Job == dep && n.Pipeline == "" }) {
			continue
		}
		if target, ok := included[dep]; ok && target.stage <= cj.stage {
			continue
		}
		p.errorf(ir.KindGraph, ir.ErrInvalidDependency, cj.job.Location+".dependencies",
			"%s job: dependency %s is not defined in current or prior stages", cj.def.Name, dep)
	}
}
