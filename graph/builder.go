package graph

import (
	"errors"
	"fmt"
)

// Builder assembles a Graph. Errors are collected and reported by Build.
type Builder[S, U any] struct {
	g    *Graph[S, U]
	errs []error
}

// NewBuilder starts a graph using reduce to merge node updates.
func NewBuilder[S, U any](reduce Reducer[S, U]) *Builder[S, U] {
	return &Builder[S, U]{g: &Graph[S, U]{
		nodes:   make(map[string]NodeFunc[S, U]),
		edges:   make(map[string]string),
		routers: make(map[string]route[S]),
		reduce:  reduce,
	}}
}

func (b *Builder[S, U]) fail(format string, args ...any) *Builder[S, U] {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
	return b
}

// AddNode registers a node.
func (b *Builder[S, U]) AddNode(name string, fn NodeFunc[S, U]) *Builder[S, U] {
	switch {
	case name == "" || name == End:
		return b.fail("invalid node name %q", name)
	case fn == nil:
		return b.fail("node %q has nil function", name)
	}
	if _, dup := b.g.nodes[name]; dup {
		return b.fail("duplicate node %q", name)
	}
	b.g.nodes[name] = fn
	b.g.order = append(b.g.order, name)
	return b
}

// AddEdge adds an unconditional transition.
func (b *Builder[S, U]) AddEdge(from, to string) *Builder[S, U] {
	if b.hasOutgoing(from) {
		return b.fail("node %q already has an outgoing edge", from)
	}
	b.g.edges[from] = to
	return b
}

// AddRouter adds a conditional transition limited to targets.
func (b *Builder[S, U]) AddRouter(from string, fn Router[S], targets ...string) *Builder[S, U] {
	if b.hasOutgoing(from) {
		return b.fail("node %q already has an outgoing edge", from)
	}
	if fn == nil || len(targets) == 0 {
		return b.fail("router after %q needs a function and targets", from)
	}
	b.g.routers[from] = route[S]{fn: fn, targets: append([]string(nil), targets...)}
	return b
}

// SetEntry sets the first node.
func (b *Builder[S, U]) SetEntry(name string) *Builder[S, U] {
	b.g.entry = name
	return b
}

func (b *Builder[S, U]) hasOutgoing(from string) bool {
	_, e := b.g.edges[from]
	_, r := b.g.routers[from]
	return e || r
}

// Build validates and returns the graph.
func (b *Builder[S, U]) Build() (*Graph[S, U], error) {
	errs := append([]error(nil), b.errs...)
	g := b.g

	if g.reduce == nil {
		errs = append(errs, errors.New("reducer is required"))
	}
	if g.entry == "" {
		errs = append(errs, errors.New("entry node is required"))
	} else if _, ok := g.nodes[g.entry]; !ok {
		errs = append(errs, fmt.Errorf("entry node %q is not registered", g.entry))
	}

	known := func(name string) bool {
		_, ok := g.nodes[name]
		return ok || name == End
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("edge from unknown node %q", from))
		}
		if !known(to) {
			errs = append(errs, fmt.Errorf("edge %q -> unknown node %q", from, to))
		}
	}
	for from, r := range g.routers {
		if _, ok := g.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("router from unknown node %q", from))
		}
		for _, to := range r.targets {
			if !known(to) {
				errs = append(errs, fmt.Errorf("router %q -> unknown node %q", from, to))
			}
		}
	}
	for _, name := range g.order {
		if !b.hasOutgoing(name) {
			errs = append(errs, fmt.Errorf("node %q has no outgoing edge", name))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	return g, nil
}
