// Package graph implements the dependency graph driving incremental
// rebuilds. Vertices are file paths relative to the search root. A forward
// edge v -> d means v depends on d; the inverse relation is kept alongside
// so that "who depends on d" is a direct lookup.
//
// Two invariants hold whenever the graph is not mid-mutation:
//
//   - inverse consistency: u is a parent of v exactly when v is a child of u
//   - closed vertex set: every vertex named anywhere is a key in both maps
//
// The graph is built once from a full scan and afterwards mutated only
// through Update, one vertex at a time, for the life of the watch session.
package graph

import (
	"fmt"
	"iter"
	"sync"

	stencilerrors "github.com/stencilhq/stencil/internal/errors"
)

// Set is a set of vertex identifiers.
type Set map[string]struct{}

// NewSet builds a Set from its members.
func NewSet(members ...string) Set {
	s := make(Set, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Contains reports whether v is a member.
func (s Set) Contains(v string) bool {
	_, ok := s[v]
	return ok
}

// Add inserts v.
func (s Set) Add(v string) {
	s[v] = struct{}{}
}

// Equal reports whether both sets have the same members. A nil Set equals
// an empty one.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for v := range s {
		if _, ok := other[v]; !ok {
			return false
		}
	}
	return true
}

// Members returns the members as a slice, in map order.
func (s Set) Members() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	return out
}

func (s Set) clone() Set {
	out := make(Set, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// Direction selects which adjacency a traversal follows.
type Direction int

const (
	// DirectionDescendants follows reverse edges: vertices that depend,
	// directly or transitively, on the start vertex.
	DirectionDescendants Direction = iota
	// DirectionAncestors follows forward edges: vertices the start vertex
	// depends on.
	DirectionAncestors
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionDescendants:
		return "descendants"
	case DirectionAncestors:
		return "ancestors"
	default:
		return "unknown"
	}
}

// Graph is a directed graph over file identifiers with forward ("depends
// on") and reverse ("depended on by") adjacency. Safe for concurrent
// readers; Update calls must be serialized by the caller, which the change
// reactor does by processing one event at a time.
type Graph struct {
	mu       sync.RWMutex
	parents  map[string]Set
	children map[string]Set
}

// FromParents builds a graph from a complete forward-edge mapping by
// deriving the reverse relation. Every vertex named inside an edge set must
// itself be a key of the mapping; a dangling reference aborts construction
// with an UnknownVertexError.
func FromParents(parents map[string]Set) (*Graph, error) {
	ps := make(map[string]Set, len(parents))
	children := make(map[string]Set, len(parents))
	for v := range parents {
		children[v] = make(Set)
	}
	for v, deps := range parents {
		for d := range deps {
			c, ok := children[d]
			if !ok {
				return nil, &stencilerrors.UnknownVertexError{Vertex: d, ReferencedBy: v}
			}
			c.Add(v)
		}
		ps[v] = deps.clone()
	}
	return &Graph{parents: ps, children: children}, nil
}

// HasVertex reports whether v is a key of the graph.
func (g *Graph) HasVertex(v string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.parents[v]
	return ok
}

// Len returns the number of vertices.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.parents)
}

// Parents returns a copy of the set of files v depends on.
func (g *Graph) Parents(v string) Set {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.parents[v].clone()
}

// Children returns a copy of the set of files depending on v.
func (g *Graph) Children(v string) Set {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.children[v].clone()
}

// Reach returns a lazy sequence of every vertex reachable from start in the
// given direction, excluding start itself, each yielded exactly once. An
// unknown direction is a caller error reported synchronously. Each ranging
// of the sequence runs a fresh traversal.
func (g *Graph) Reach(dir Direction, start string) (iter.Seq[string], error) {
	var adjacent func(string) []string
	switch dir {
	case DirectionDescendants:
		adjacent = g.childrenOf
	case DirectionAncestors:
		adjacent = g.parentsOf
	default:
		return nil, fmt.Errorf("direction should be either descendants or ancestors, got %d", dir)
	}

	return func(yield func(string) bool) {
		// Depth-first with an explicit stack of sibling cursors, so
		// traversal depth is bounded by memory rather than the call
		// stack. The visited set is seeded with start, which also
		// guards self-loops and cycles.
		seen := Set{start: {}}
		stack := [][]string{adjacent(start)}
		for len(stack) > 0 {
			siblings := &stack[len(stack)-1]
			if len(*siblings) == 0 {
				stack = stack[:len(stack)-1]
				continue
			}
			next := (*siblings)[0]
			*siblings = (*siblings)[1:]
			if seen.Contains(next) {
				continue
			}
			seen.Add(next)
			if !yield(next) {
				return
			}
			stack = append(stack, adjacent(next))
		}
	}, nil
}

// Descendants returns all vertices that transitively depend on start.
func (g *Graph) Descendants(start string) iter.Seq[string] {
	seq, _ := g.Reach(DirectionDescendants, start)
	return seq
}

// Ancestors returns all vertices start transitively depends on.
func (g *Graph) Ancestors(start string) iter.Seq[string] {
	seq, _ := g.Reach(DirectionAncestors, start)
	return seq
}

func (g *Graph) childrenOf(v string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.children[v].Members()
}

func (g *Graph) parentsOf(v string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.parents[v].Members()
}

// Update replaces the dependency set of v, adjusting the reverse relation
// edge by edge. Updating with the current set is a no-op. Unlike
// FromParents, vertices not yet known to the graph are created on the fly:
// a file's reference list can grow across edits, and a brand-new file was
// never part of the initial scan. This is the only mutation path after
// construction.
func (g *Graph) Update(v string, newParents Set) {
	g.mu.Lock()
	defer g.mu.Unlock()

	old := g.parents[v]
	if old.Equal(newParents) {
		return
	}

	g.ensure(v)
	for d := range old {
		if !newParents.Contains(d) {
			delete(g.children[d], v)
		}
	}
	for d := range newParents {
		if old.Contains(d) {
			continue
		}
		g.ensure(d)
		g.children[d].Add(v)
	}
	g.parents[v] = newParents.clone()
}

// ensure creates empty entries for a previously-unseen vertex. Callers hold
// the write lock.
func (g *Graph) ensure(v string) {
	if _, ok := g.parents[v]; !ok {
		g.parents[v] = make(Set)
		g.children[v] = make(Set)
	}
}
