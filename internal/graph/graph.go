// Package graph finds cycles in small directed graphs keyed by name.
//
// It backs needs-cycle detection between jobs and circular reference
// detection between variables. Iteration follows insertion order so the
// reported cycles are deterministic.
package graph

import (
	"slices"
	"strings"
)

// Graph is a directed graph over string nodes.
type Graph struct {
	nodes []string
	index map[string]int
	edges map[string][]string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		index: make(map[string]int),
		edges: make(map[string][]string),
	}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if _, ok := g.index[name]; ok {
		return
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
}

// AddEdge adds an edge from -> to, adding both nodes if needed.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	g.edges[from] = append(g.edges[from], to)
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.nodes)
}

// Successors returns the direct successors of a node.
func (g *Graph) Successors(name string) []string {
	return slices.Clone(g.edges[name])
}

// Cycle is one strongly connected component that contains a cycle.
type Cycle struct {
	// Members lists the nodes of the component in insertion order.
	Members []string

	// Path walks the cycle from its first member back to itself,
	// e.g. [a b a].
	Path []string
}

// String renders the path as "a → b → a".
func (c Cycle) String() string {
	return strings.Join(c.Path, " → ")
}

// Cycles returns every cycle in the graph, ordered by the insertion index
// of each cycle's first member. A self-loop is a cycle of one member.
func (g *Graph) Cycles() []Cycle {
	var cycles []Cycle
	for _, scc := range g.tarjanSCC() {
		if len(scc) == 1 && !g.hasSelfLoop(scc[0]) {
			continue
		}
		slices.SortFunc(scc, func(a, b string) int { return g.index[a] - g.index[b] })
		cycles = append(cycles, Cycle{Members: scc, Path: g.reconstructCyclePath(scc)})
	}
	slices.SortFunc(cycles, func(a, b Cycle) int {
		return g.index[a.Members[0]] - g.index[b.Members[0]]
	})
	return cycles
}

func (g *Graph) hasSelfLoop(node string) bool {
	return slices.Contains(g.edges[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func (g *Graph) tarjanSCC() [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack into an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath follows edges inside the SCC from its first member
// until it returns there.
func (g *Graph) reconstructCyclePath(scc []string) []string {
	if len(scc) == 0 {
		return []string{}
	}

	inSCC := make(map[string]bool, len(scc))
	for _, node := range scc {
		inSCC[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		next := ""
		for _, neighbor := range g.edges[current] {
			if neighbor == start {
				next = neighbor
				break
			}
		}
		if next == "" {
			for _, neighbor := range g.edges[current] {
				if inSCC[neighbor] && !visited[neighbor] {
					next = neighbor
					break
				}
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
