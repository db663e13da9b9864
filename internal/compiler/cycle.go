package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/ruleware/internal/ir"
)

// CycleWarning reports rules whose follow-up dispatches can re-trigger
// each other. Cycles are warnings because a condition may end the loop;
// the container's quota is the runtime backstop.
type CycleWarning struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

// AnalyzeCycles builds the rule graph (an edge runs from rule A to rule B
// when A's reaction dispatches an action type B listens to) and reports
// every strongly connected component that forms a loop.
//
// Output is deterministic: components and their paths follow rule
// declaration order.
func AnalyzeCycles(p *ir.Program) []CycleWarning {
	warnings := []CycleWarning{}
	if p == nil || len(p.Rules) == 0 {
		return warnings
	}

	graph, order := buildRuleGraph(p.Rules)
	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, sccToWarning(scc, graph, order))
		}
	}

	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return order[a.Path[0]] - order[b.Path[0]]
	})
	return warnings
}

// ruleGraph maps a rule type to the rule types its reaction can trigger.
type ruleGraph map[string][]string

// buildRuleGraph returns the graph and each rule's declaration index.
// Duplicate rule types collapse onto their first declaration.
func buildRuleGraph(rules []ir.RuleSpec) (ruleGraph, map[string]int) {
	order := make(map[string]int, len(rules))
	listeners := make(map[string][]string)
	for i, rule := range rules {
		if _, seen := order[rule.Type]; !seen {
			order[rule.Type] = i
		}
		for _, at := range rule.ActionTypes {
			if !slices.Contains(listeners[at], rule.Type) {
				listeners[at] = append(listeners[at], rule.Type)
			}
		}
	}

	graph := make(ruleGraph, len(order))
	for _, rule := range rules {
		edges := graph[rule.Type]
		if edges == nil {
			edges = []string{}
		}
		for _, tmpl := range rule.Reaction.Dispatch {
			for _, target := range listeners[tmpl.Type] {
				if !slices.Contains(edges, target) {
					edges = append(edges, target)
				}
			}
		}
		graph[rule.Type] = edges
	}
	return graph, order
}

func hasSelfLoop(node string, graph ruleGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components, visiting roots in
// declaration order so results do not depend on map iteration.
func tarjanSCC(graph ruleGraph, order map[string]int) [][]string {
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

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

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
			slices.SortFunc(scc, func(a, b string) int { return order[a] - order[b] })
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.SortFunc(nodes, func(a, b string) int { return order[a] - order[b] })

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToWarning(scc []string, graph ruleGraph, order map[string]int) CycleWarning {
	if len(scc) == 1 {
		rule := scc[0]
		return CycleWarning{
			Path:    []string{rule, rule},
			Message: fmt.Sprintf("rule %s can re-trigger itself", rule),
			Level:   "warning",
		}
	}

	path := cyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("potential cycle: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// cyclePath walks from the first SCC member along edges that stay inside
// the component until it returns to the start or runs out of new nodes.
func cyclePath(scc []string, graph ruleGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && !visited[neighbor] {
				next = neighbor
				break
			}
		}
		if next == "" {
			if slices.Contains(graph[current], start) {
				path = append(path, start)
			}
			break
		}
		path = append(path, next)
		current = next
	}
	return path
}
