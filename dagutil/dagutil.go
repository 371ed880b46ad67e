// Package dagutil validates that a model's declared nodes and their
// parent references form a DAG. It is the adapted, narrowed descendant
// of the teacher repo's core.Graph: the same functional-options-free,
// sentinel-error, "validate once at construction" discipline, but
// purpose-built for one question — does this node table have a cycle —
// rather than the teacher's general-purpose weighted/multigraph/loop
// toolbox, none of which the model graph needs.
//
// Declared-order references (a parent's Ref must be less than its
// child's) already rule out cycles for every rule except a
// Deterministic node's Closure, whose hidden reads dagutil cannot see
// by construction; Check exists for the cases where a caller wants the
// stronger, explicit guarantee backed by gonum's topological sorter.
package dagutil

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// ErrCycle is returned by Check when the supplied edges contain a cycle.
var ErrCycle = errors.New("dagutil: node graph contains a cycle")

// Edge is a directed parent -> child dependency between two node
// indices, exactly as declared in a model's node table.
type Edge struct {
	From, To int64
}

// Check builds a gonum directed graph over n nodes (IDs 0..n-1) and the
// given edges, then verifies it is acyclic via topo.Sort. It returns
// ErrCycle, wrapping the unorderable components gonum reports, if not.
func Check(n int, edges []Edge) error {
	g := simple.NewDirectedGraph()
	for i := int64(0); i < int64(n); i++ {
		g.AddNode(simple.Node(i))
	}
	for _, e := range edges {
		g.SetEdge(simple.Edge{F: simple.Node(e.From), T: simple.Node(e.To)})
	}

	if _, err := topo.Sort(g); err != nil {
		var unorderable topo.Unorderable
		if errors.As(err, &unorderable) {
			return fmt.Errorf("%w: %d cyclic component(s)", ErrCycle, len(unorderable))
		}
		return fmt.Errorf("%w: %v", ErrCycle, err)
	}
	return nil
}

// Order returns the node IDs in a valid topological order — parents
// before children — for diagnostic use (e.g. logging the recomputation
// order a Closure-based deterministic node actually depends on). It
// returns ErrCycle under the same conditions as Check.
func Order(n int, edges []Edge) ([]int64, error) {
	g := simple.NewDirectedGraph()
	for i := int64(0); i < int64(n); i++ {
		g.AddNode(simple.Node(i))
	}
	for _, e := range edges {
		g.SetEdge(simple.Edge{F: simple.Node(e.From), T: simple.Node(e.To)})
	}

	sorted, err := topo.Sort(g)
	if err != nil {
		return nil, fmt.Errorf("%w", ErrCycle)
	}
	out := make([]int64, len(sorted))
	for i, nd := range sorted {
		out[i] = idOf(nd)
	}
	return out, nil
}

func idOf(n graph.Node) int64 { return n.ID() }
