// Package graph defines an immutable, typed workflow topology: named nodes,
// unconditional edges and routers that pick among declared targets.
//
// S is the state threaded through the graph and U the partial update each node
// returns; a Reducer folds updates into state.
package graph

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// End is the terminal pseudo-node.
const End = "__end__"

// NodeFunc is a step in the graph.
type NodeFunc[S, U any] func(ctx context.Context, state S, in Input) (Result[U], error)

// Router picks the next node from state. It must be pure.
type Router[S any] func(state S) string

// Reducer merges a partial update into state.
type Reducer[S, U any] func(state S, update U) S

type route[S any] struct {
	fn      Router[S]
	targets []string
}

// Graph is a validated topology. It holds no run state and is safe to share.
type Graph[S, U any] struct {
	entry   string
	order   []string
	nodes   map[string]NodeFunc[S, U]
	edges   map[string]string
	routers map[string]route[S]
	reduce  Reducer[S, U]
}

// Entry returns the first node.
func (g *Graph[S, U]) Entry() string {
	return g.entry
}

// Nodes returns node names in registration order.
func (g *Graph[S, U]) Nodes() []string {
	return slices.Clone(g.order)
}

// Has reports whether name is a node of the graph.
func (g *Graph[S, U]) Has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Node returns the function for a node.
func (g *Graph[S, U]) Node(name string) (NodeFunc[S, U], bool) {
	fn, ok := g.nodes[name]
	return fn, ok
}

// Reduce applies update to state.
func (g *Graph[S, U]) Reduce(state S, update U) S {
	return g.reduce(state, update)
}

// Next resolves the successor of from for the given state.
func (g *Graph[S, U]) Next(from string, state S) (string, error) {
	if to, ok := g.edges[from]; ok {
		return to, nil
	}
	r, ok := g.routers[from]
	if !ok {
		return "", fmt.Errorf("node %q has no outgoing edge", from)
	}
	to := r.fn(state)
	if !slices.Contains(r.targets, to) {
		return "", fmt.Errorf("router after %q chose undeclared target %q", from, to)
	}
	return to, nil
}

// Targets returns the possible successors of a node.
func (g *Graph[S, U]) Targets(from string) []string {
	if to, ok := g.edges[from]; ok {
		return []string{to}
	}
	if r, ok := g.routers[from]; ok {
		return slices.Clone(r.targets)
	}
	return nil
}

// Mermaid renders the topology as a mermaid flowchart.
func (g *Graph[S, U]) Mermaid() string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	fmt.Fprintf(&b, "    __start__ --> %s\n", g.entry)
	for _, name := range g.order {
		if to, ok := g.edges[name]; ok {
			fmt.Fprintf(&b, "    %s --> %s\n", name, to)
			continue
		}
		targets := g.Targets(name)
		sort.Strings(targets)
		for _, to := range targets {
			fmt.Fprintf(&b, "    %s -.-> %s\n", name, to)
		}
	}
	return b.String()
}
