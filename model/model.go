// Package model holds a declared graph of nodes — the arena-and-index
// node table spec.md section 3.4 describes — and the joint log-density
// and history bookkeeping the sampler drives. A Model is built up by
// AddObserved/AddStochastic/AddDeterministic calls, each returning a
// stable node.Ref, then frozen by Build once the caller is done
// declaring structure.
package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/katalvlaran/mhgraph/carrier"
	"github.com/katalvlaran/mhgraph/dagutil"
	"github.com/katalvlaran/mhgraph/logd"
	"github.com/katalvlaran/mhgraph/node"
)

// Sentinel errors wrapped by ConfigError.
var (
	ErrUnknownNode   = errors.New("model: reference to unknown node")
	ErrShapeMismatch = errors.New("model: distribution parameter shape mismatch")
	ErrCycle         = errors.New("model: node graph contains a cycle")
	ErrBadDistParam  = errors.New("model: distribution parameter references a later node")
	ErrAlreadyBuilt  = errors.New("model: model already built")
	ErrNotBuilt      = errors.New("model: model not yet built")
)

// ConfigError wraps a configuration-time failure: a bad Ref, an
// incompatible parameter shape, or a cycle in the declared graph. It is
// returned by Add* and Build, never by anything in the sampling hot
// loop (spec.md section 4.8 draws this line between configuration and
// runtime errors).
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("model: %s: %v", e.Op, e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// Model is the declared DAG of nodes plus the bookkeeping the sampler
// needs to drive it: a joint log-density, per-node history buffers, and
// an optional user update closure for Deterministic nodes declared with
// node.RuleClosure.
type Model struct {
	nodes   []*node.Node
	edges   []dagutil.Edge
	history [][]*carrier.Snapshot

	built   bool
	closure func(*Model) error
}

// New constructs an empty Model. Nodes are declared against it via
// AddObserved/AddStochastic/AddDeterministic until Build is called.
func New() *Model {
	return &Model{}
}

// AddObserved declares a constant node over c with distribution d. Its
// value never changes once added.
func (m *Model) AddObserved(c *carrier.Carrier, d node.Spec) (node.Ref, error) {
	return m.add(node.Observed, c, d, node.UpdateRule{})
}

// AddStochastic declares a mutable, samplable parameter node over c
// with distribution d. Its initial value is c's current value; its
// proposal scale starts at 1.0.
func (m *Model) AddStochastic(c *carrier.Carrier, d node.Spec) (node.Ref, error) {
	return m.add(node.Stochastic, c, d, node.UpdateRule{})
}

// AddDeterministic declares a node over c recomputed by rule r every
// iteration. r's parameter Refs (X, B, G) must reference nodes already
// declared, same as a distribution's parameters.
func (m *Model) AddDeterministic(c *carrier.Carrier, r node.UpdateRule) (node.Ref, error) {
	return m.add(node.Deterministic, c, node.Spec{}, r)
}

func (m *Model) add(role node.Role, c *carrier.Carrier, d node.Spec, r node.UpdateRule) (node.Ref, error) {
	if m.built {
		return 0, &ConfigError{Op: "add", Err: ErrAlreadyBuilt}
	}
	ref := node.Ref(len(m.nodes))

	for _, p := range m.paramRefs(role, d, r) {
		if int(p) >= len(m.nodes) {
			return 0, &ConfigError{Op: "add", Err: fmt.Errorf("%w: ref %d", ErrBadDistParam, p)}
		}
		// Shape broadcasting only applies to a distribution's own
		// parameters (spec.md section 4.1's broadcast rule); a
		// Deterministic rule's X/B/G are design-matrix/coefficient refs
		// with their own, unrelated shapes, checked by the rule itself.
		if role != node.Deterministic {
			if err := m.checkParamShape(c, p); err != nil {
				return 0, &ConfigError{Op: "add", Err: err}
			}
		}
		m.edges = append(m.edges, dagutil.Edge{From: int64(p), To: int64(ref)})
	}

	var n *node.Node
	switch role {
	case node.Observed:
		n = node.NewObserved(ref, c, d)
	case node.Stochastic:
		n = node.NewStochastic(ref, c, d)
	case node.Deterministic:
		n = node.NewDeterministic(ref, c, r)
	}
	m.nodes = append(m.nodes, n)
	return ref, nil
}

// paramRefs lists the node.Ref values a declaration depends on, for DAG
// edge bookkeeping: a distribution's parameters for Observed/Stochastic,
// an UpdateRule's X/B/G for Deterministic (RuleClosure contributes none,
// since its reads are hidden inside the closure — Build's cycle check
// cannot see them, which is exactly why Build also exists as a stronger,
// explicit guarantee for the rest of the graph).
func (m *Model) paramRefs(role node.Role, d node.Spec, r node.UpdateRule) []node.Ref {
	if role == node.Deterministic {
		switch r.Kind {
		case node.RuleLinear, node.RuleLogistic:
			return []node.Ref{r.X, r.B}
		case node.RuleLinearGrouped:
			return []node.Ref{r.X, r.B, r.G}
		default:
			return nil
		}
	}
	switch d.Family {
	case node.None:
		return nil
	case node.Bernoulli:
		return []node.Ref{d.P1}
	default:
		return []node.Ref{d.P1, d.P2}
	}
}

// checkParamShape rejects a parameter whose carrier shape cannot
// broadcast against c's shape: scalar parameters broadcast against
// anything, but two non-scalar carriers must share a shape.
func (m *Model) checkParamShape(c *carrier.Carrier, p node.Ref) error {
	param := m.nodes[p].Value
	scalar := func(s carrier.Shape) bool { return s == carrier.ScalarReal || s == carrier.ScalarInt }
	if scalar(param.Shape()) {
		return nil
	}
	if param.Shape() != c.Shape() {
		return fmt.Errorf("%w: %s against %s", ErrShapeMismatch, param.Shape(), c.Shape())
	}
	pr, pc := param.Dims()
	cr, cc := c.Dims()
	if pr != cr || pc != cc {
		return fmt.Errorf("%w: %dx%d against %dx%d", ErrShapeMismatch, pr, pc, cr, cc)
	}
	return nil
}

// SetUpdateClosure registers the single function that recomputes every
// Deterministic node declared with node.RuleClosure. RunClosure invokes
// it once per pass, at the position of the first RuleClosure node in
// declared order; the sampler runs such a pass after every proposal and
// again after a rejection restores the proposed node.
func (m *Model) SetUpdateClosure(fn func(*Model) error) {
	m.closure = fn
}

// Build validates the declared graph (every Ref resolves, no cycles)
// and freezes the Model's shape: no further Add* calls are permitted
// afterward. It must be called once before the model is handed to a
// sampler.
func (m *Model) Build() error {
	if m.built {
		return &ConfigError{Op: "build", Err: ErrAlreadyBuilt}
	}
	if err := dagutil.Check(len(m.nodes), m.edges); err != nil {
		return &ConfigError{Op: "build", Err: fmt.Errorf("%w: %v", ErrCycle, err)}
	}
	m.built = true
	m.history = make([][]*carrier.Snapshot, len(m.nodes))
	return nil
}

// Lookup returns the carrier for ref, for use by node.Spec.LogP and by
// a Deterministic node's Closure/Linear/LinearGrouped/Logistic rule.
// Panics if ref is out of range: a Ref only ever comes from this Model's
// own Add* calls, so an invalid one is a programming error, not a
// configuration error.
func (m *Model) Lookup(ref node.Ref) *carrier.Carrier {
	if int(ref) < 0 || int(ref) >= len(m.nodes) {
		panic(fmt.Errorf("%w: ref %d", ErrUnknownNode, ref))
	}
	return m.nodes[ref].Value
}

// Node returns the underlying node.Node for ref, for use by the sampler
// (Propose, Snapshot/Restore, RecordProposal). Panics under the same
// condition as Lookup.
func (m *Model) Node(ref node.Ref) *node.Node {
	if int(ref) < 0 || int(ref) >= len(m.nodes) {
		panic(fmt.Errorf("%w: ref %d", ErrUnknownNode, ref))
	}
	return m.nodes[ref]
}

// NumNodes returns the number of declared nodes.
func (m *Model) NumNodes() int { return len(m.nodes) }

// Nodes returns the declared nodes in declaration order, for the
// sampler's per-iteration node loop.
func (m *Model) Nodes() []*node.Node { return m.nodes }

// RunClosure recomputes every Deterministic node, in declared order:
// RuleClosure nodes are all handled together by a single call to the
// registered update closure (a no-op if none was set); RuleLinear,
// RuleLinearGrouped and RuleLogistic nodes recompute via their built-in
// gonum-backed rule (node.UpdateRule's X/B/G). Called once per proposal
// attempt and again on rejection, after the node's value is restored.
func (m *Model) RunClosure() error {
	closureRun := false
	for _, n := range m.nodes {
		if n.Role != node.Deterministic {
			continue
		}
		switch n.Rule.Kind {
		case node.RuleClosure:
			if closureRun || m.closure == nil {
				continue
			}
			if err := m.closure(m); err != nil {
				return err
			}
			closureRun = true
		case node.RuleLinear:
			applyLinear(n.Value, m.Lookup(n.Rule.X), m.Lookup(n.Rule.B))
		case node.RuleLinearGrouped:
			applyLinearGrouped(n.Value, m.Lookup(n.Rule.X), m.Lookup(n.Rule.B), m.Lookup(n.Rule.G))
		case node.RuleLogistic:
			applyLogistic(n.Value, m.Lookup(n.Rule.X), m.Lookup(n.Rule.B))
		}
	}
	return nil
}

// LogJoint evaluates the sum of every Observed and Stochastic node's
// log-density, short-circuiting at the first -Inf contribution (spec.md
// section 4.3's "reject without evaluating the rest" optimization). It
// does not recompute Deterministic nodes; the caller invokes RunClosure
// beforehand to keep their values current.
func (m *Model) LogJoint() float64 {
	sum := 0.0
	for _, n := range m.nodes {
		if n.Role == node.Deterministic {
			continue
		}
		sum = logd.Coerce(sum + n.LogP(m.Lookup))
		if math.IsInf(sum, -1) {
			return math.Inf(-1)
		}
	}
	return sum
}

// Record appends the current value of ref's carrier to its history
// buffer, used by the sampler once per retained (post-burn-in,
// post-thinning) iteration. Panics on an unbuilt model or out-of-range
// ref, both programming errors from the sampler's point of view.
func (m *Model) Record(ref node.Ref) {
	if !m.built {
		panic(ErrNotBuilt)
	}
	m.history[ref] = append(m.history[ref], m.nodes[ref].Value.Save(nil))
}

// History returns the recorded values for ref across every retained
// iteration, in recording order. The slice and its Snapshots are the
// caller's to read; the Model does not mutate them afterward.
func (m *Model) History(ref node.Ref) []*carrier.Snapshot {
	if !m.built {
		panic(ErrNotBuilt)
	}
	if int(ref) < 0 || int(ref) >= len(m.history) {
		panic(fmt.Errorf("%w: ref %d", ErrUnknownNode, ref))
	}
	return m.history[ref]
}

// ReserveHistory pre-sizes ref's history buffer to n entries, avoiding
// reallocation churn across a long run when the sampler knows the
// retained-iteration count up front: (iterations-burnIn)/thin, rounded up.
func (m *Model) ReserveHistory(ref node.Ref, n int) {
	if cap(m.history[ref]) < n {
		buf := make([]*carrier.Snapshot, len(m.history[ref]), n)
		copy(buf, m.history[ref])
		m.history[ref] = buf
	}
}
