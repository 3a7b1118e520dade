package compiler

import (
	"github.com/roach88/pipec/internal/graph"
	"github.com/roach88/pipec/internal/ir"
)

// needsCycles reports every cycle in the needs graph of the included
// jobs. Each strongly connected component is one error, located at the
// needs: of its first job in declaration order.
func (p *pipeline) needsCycles(jobs []*compiledJob) {
	g := graph.New()
	byName := make(map[string]*compiledJob, len(jobs))
	for _, cj := range jobs {
		g.AddNode(cj.def.Name)
		byName[cj.def.Name] = cj
	}
	for _, cj := range jobs {
		for _, need := range cj.def.Needs {
			if need.Pipeline != "" {
				continue
			}
			if _, ok := byName[need.Job]; ok {
				g.AddEdge(cj.def.Name, need.Job)
			}
		}
	}

	for _, c := range g.Cycles() {
		first := byName[c.Members[0]]
		p.errorf(ir.KindGraph, ir.ErrNeedsCycle, first.job.Location+".needs",
			"needs cycle detected: %s", c.String())
	}
}
