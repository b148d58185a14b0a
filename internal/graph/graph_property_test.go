//go:build property

package graph

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// inverseConsistent re-derives the children relation from parents and
// compares, without assuming anything about how the graph maintains it.
func inverseConsistent(g *Graph) bool {
	if len(g.parents) != len(g.children) {
		return false
	}
	derived := make(map[string]Set, len(g.parents))
	for v := range g.parents {
		if _, ok := g.children[v]; !ok {
			return false
		}
		derived[v] = make(Set)
	}
	for v, deps := range g.parents {
		for d := range deps {
			c, ok := derived[d]
			if !ok {
				return false
			}
			c.Add(v)
		}
	}
	for v, want := range derived {
		if !g.children[v].Equal(want) {
			return false
		}
	}
	return true
}

func vertexName(i int) string {
	return fmt.Sprintf("v%d.html", i)
}

// TestGraphProperties validates the graph invariants under random update
// sequences.
func TestGraphProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4321)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	// Operations are decoded from a flat int slice in chunks of three:
	// one target vertex and two parents, all drawn from a small universe
	// so edges collide and get added and removed often.
	properties.Property("updates preserve inverse consistency", prop.ForAll(
		func(ops []int) bool {
			g, err := FromParents(map[string]Set{
				vertexName(0): NewSet(vertexName(1)),
				vertexName(1): {},
			})
			if err != nil {
				return false
			}
			for i := 0; i+2 < len(ops); i += 3 {
				target := vertexName(ops[i])
				parents := NewSet(vertexName(ops[i+1]), vertexName(ops[i+2]))
				g.Update(target, parents)
				if !inverseConsistent(g) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 9)),
	))

	properties.Property("update with current parents is a no-op", prop.ForAll(
		func(target int, parentIdx []int) bool {
			g, err := FromParents(map[string]Set{
				vertexName(0): {},
				vertexName(1): {},
			})
			if err != nil {
				return false
			}
			name := vertexName(target)
			parents := make(Set)
			for _, p := range parentIdx {
				parents.Add(vertexName(p))
			}
			g.Update(name, parents)

			before := g.Parents(name)
			childrenBefore := make(map[string]Set)
			for v := range g.parents {
				childrenBefore[v] = g.Children(v)
			}

			g.Update(name, g.Parents(name))

			if !before.Equal(g.Parents(name)) {
				return false
			}
			for v, want := range childrenBefore {
				if !g.Children(v).Equal(want) {
					return false
				}
			}
			return inverseConsistent(g)
		},
		gen.IntRange(0, 9),
		gen.SliceOf(gen.IntRange(0, 9)),
	))

	properties.Property("descendants terminate on cyclic graphs", prop.ForAll(
		func(size int) bool {
			parents := make(map[string]Set, size)
			for i := 0; i < size; i++ {
				parents[vertexName(i)] = NewSet(vertexName((i + 1) % size))
			}
			g, err := FromParents(parents)
			if err != nil {
				return false
			}
			count := 0
			for range g.Descendants(vertexName(0)) {
				count++
				if count > size {
					return false
				}
			}
			return count == size-1
		},
		gen.IntRange(2, 50),
	))

	properties.TestingRun(t)
}
