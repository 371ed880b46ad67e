// Package node implements the tagged-variant graph vertex: a node is
// Observed (constant), Stochastic (mutable, samplable, with a proposal
// scale) or Deterministic (recomputed from upstream nodes). This mirrors
// the source cppbugs library's per-distribution template specialization
// (Stochastic<Normal>, Stochastic<Bernoulli>, ...) collapsed into a
// value-typed Spec field on a single Node type, per the design note in
// spec.md's discussion of the "heap-allocated likelihood functor" the
// original stores behind a base-class pointer.
package node

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/katalvlaran/mhgraph/carrier"
	"github.com/katalvlaran/mhgraph/logd"
)

// Role classifies a Node.
type Role int

const (
	// Observed nodes hold fixed data; they never propose and contribute
	// to the joint log-density via their distribution Spec.
	Observed Role = iota
	// Stochastic nodes are unobserved parameters: mutable, samplable,
	// carrying a proposal scale.
	Stochastic
	// Deterministic nodes are pure functions of their parents,
	// recomputed by the model's update closure every iteration.
	Deterministic
)

func (r Role) String() string {
	switch r {
	case Observed:
		return "Observed"
	case Stochastic:
		return "Stochastic"
	case Deterministic:
		return "Deterministic"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Ref is a stable handle to a node inside a model's node table: an index,
// not a pointer, per spec.md's "arena + index pattern" design note for
// expressing cyclic references between stochastic nodes and their
// parent parameter nodes without ownership hazards.
type Ref int

// Family names a supported distribution, used by Spec to dispatch to the
// right logd formula and proposal kernel.
type Family int

const (
	// None is the zero value of Family: no distribution at all. A node
	// declared with Spec{} (or an explicit Family: None) contributes 0 to
	// the joint log-density regardless of Role — the idiom for a plain
	// constant or fixed hyperparameter container that itself carries no
	// prior, as opposed to an Observed node whose value is data under a
	// real likelihood.
	None Family = iota
	Normal
	Uniform
	Gamma
	Beta
	Bernoulli
	Binomial
)

func (f Family) String() string {
	switch f {
	case None:
		return "None"
	case Normal:
		return "Normal"
	case Uniform:
		return "Uniform"
	case Gamma:
		return "Gamma"
	case Beta:
		return "Beta"
	case Bernoulli:
		return "Bernoulli"
	case Binomial:
		return "Binomial"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

// Spec is a distribution specification: a Family plus references to the
// nodes whose carriers supply its parameters. Two-parameter families
// (Normal, Uniform, Gamma, Beta, Bernoulli-with-n-omitted) use P1/P2; the
// unused field for Bernoulli is ignored.
type Spec struct {
	Family Family
	P1, P2 Ref // e.g. (mu, tau) for Normal, (lo, hi) for Uniform, (p, _) for Bernoulli, (n, p) for Binomial
}

// LogP evaluates the Spec's log-density for carrier x, resolving P1/P2
// through the supplied lookup of a Ref's carrier.
func (s Spec) LogP(x *carrier.Carrier, lookup func(Ref) *carrier.Carrier) float64 {
	switch s.Family {
	case None:
		return 0
	case Normal:
		return logd.NormalLogP(x, lookup(s.P1), lookup(s.P2))
	case Uniform:
		return logd.UniformLogP(x, lookup(s.P1), lookup(s.P2))
	case Gamma:
		return logd.GammaLogP(x, lookup(s.P1), lookup(s.P2))
	case Beta:
		return logd.BetaLogP(x, lookup(s.P1), lookup(s.P2))
	case Bernoulli:
		return logd.BernoulliLogP(x, lookup(s.P1))
	case Binomial:
		return logd.BinomialLogP(x, lookup(s.P1), lookup(s.P2))
	default:
		panic(fmt.Sprintf("node: unknown distribution family %v", s.Family))
	}
}

// UpdateRule is the tagged variant for a Deterministic node's
// recomputation (spec.md section 4.2). X/B/G are meaningful for every
// Kind except RuleClosure, whose recomputation instead happens inside
// the model's single registered update closure (model.SetUpdateClosure)
// alongside every other RuleClosure node — the Go equivalent of
// cppbugs's one-lambda-computes-several-derived-values pattern (see
// herd.fast.cpp's model lambda, which recomputes phi, sigma_overdisp
// and sigma_b_herd together in one block).
type UpdateRule struct {
	Kind RuleKind

	X, B, G Ref // Linear: X, B. LinearGrouped: X, B, G. Logistic: X, B.
}

// RuleKind tags which deterministic recomputation an UpdateRule performs.
type RuleKind int

const (
	// RuleClosure marks a node recomputed by the model's registered
	// update closure rather than by a built-in rule below.
	RuleClosure RuleKind = iota
	// RuleLinear computes X*b (mat.VecDense.MulVec).
	RuleLinear
	// RuleLinearGrouped computes row i = X[i,:]*B[g[i],:] for a grouping
	// vector G, the pattern grounding a hierarchical random-effect term.
	RuleLinearGrouped
	// RuleLogistic computes 1/(1+exp(-X*b)) elementwise.
	RuleLogistic
)

// Node is one vertex in the model graph.
type Node struct {
	ID    Ref
	Role  Role
	Value *carrier.Carrier

	Dist Spec // valid when Role != Deterministic
	Rule UpdateRule // valid when Role == Deterministic

	Scale float64 // proposal sigma, Stochastic only; starts at 1.0

	proposals int
	accepts   int
	snap      *carrier.Snapshot
}

// NewObserved constructs an Observed node over c with distribution d.
func NewObserved(id Ref, c *carrier.Carrier, d Spec) *Node {
	return &Node{ID: id, Role: Observed, Value: c, Dist: d}
}

// NewStochastic constructs a Stochastic node over c with distribution d
// and the default proposal scale of 1.0.
func NewStochastic(id Ref, c *carrier.Carrier, d Spec) *Node {
	return &Node{ID: id, Role: Stochastic, Value: c, Dist: d, Scale: 1.0}
}

// NewDeterministic constructs a Deterministic node over c with rule r.
func NewDeterministic(id Ref, c *carrier.Carrier, r UpdateRule) *Node {
	return &Node{ID: id, Role: Deterministic, Value: c, Rule: r}
}

// LogP evaluates the node's own log-density contribution. Deterministic
// nodes contribute 0: they are not stochastic and have no distribution.
func (n *Node) LogP(lookup func(Ref) *carrier.Carrier) float64 {
	if n.Role == Deterministic {
		return 0
	}
	return n.Dist.LogP(n.Value, lookup)
}

// Snapshot saves the node's current value into its reusable scratch
// buffer, sized once on first use to the node's value shape.
func (n *Node) Snapshot() {
	n.snap = n.Value.Save(n.snap)
}

// Restore writes the node's scratch buffer back into its value. Must
// only be called after Snapshot.
func (n *Node) Restore() {
	n.Value.Restore(n.snap)
}

// Propose draws a new value for a Stochastic node in place, per spec.md
// section 4.4:
//
//   - Normal/Uniform/Gamma/Beta: additive Gaussian jump, x += sigma*N(0,1)
//     per element.
//   - Bernoulli: each element flips independently with probability
//     1 - 0.5^sigma.
//   - Binomial and Observed nodes never propose; Propose is a no-op for
//     them so callers can loop over every node uniformly.
//
// rng supplies the randomness; it is shared across all nodes in a model
// so that a fixed seed reproduces an entire run.
func (n *Node) Propose(rng *rand.Rand) {
	if n.Role != Stochastic {
		return
	}
	switch n.Dist.Family {
	case Bernoulli:
		jumpBernoulli(n.Value, n.Scale, rng)
	case Binomial:
		// no proposal: spec.md marks Binomial as non-proposing.
	default:
		// None, Normal, Uniform, Gamma, Beta: a real-valued parameter,
		// whether under a proper prior or an improper/flat one (None),
		// still takes the additive Gaussian jump.
		jumpContinuous(n.Value, n.Scale, rng)
	}
}

func jumpContinuous(c *carrier.Carrier, sigma float64, rng *rand.Rand) {
	z := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	switch c.Shape() {
	case carrier.ScalarReal:
		c.SetFloat(c.Float() + sigma*z.Rand())
	case carrier.VectorReal:
		v := c.Vec()
		for i := 0; i < v.Len(); i++ {
			v.SetVec(i, v.AtVec(i)+sigma*z.Rand())
		}
	case carrier.MatrixReal:
		m := c.Mat()
		r, cc := m.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < cc; j++ {
				m.Set(i, j, m.At(i, j)+sigma*z.Rand())
			}
		}
	default:
		panic(fmt.Sprintf("node: continuous proposal on non-real carrier shape %s", c.Shape()))
	}
}

func jumpBernoulli(c *carrier.Carrier, sigma float64, rng *rand.Rand) {
	flipProb := 1 - math.Pow(0.5, sigma)
	u := distuv.Uniform{Min: 0, Max: 1, Src: rng}
	flip := func(v float64) float64 {
		if u.Rand() < flipProb {
			if v == 0 {
				return 1
			}
			return 0
		}
		return v
	}
	switch c.Shape() {
	case carrier.ScalarReal:
		c.SetFloat(flip(c.Float()))
	case carrier.VectorReal:
		v := c.Vec()
		for i := 0; i < v.Len(); i++ {
			v.SetVec(i, flip(v.AtVec(i)))
		}
	case carrier.MatrixReal:
		m := c.Mat()
		r, cc := m.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < cc; j++ {
				m.Set(i, j, flip(m.At(i, j)))
			}
		}
	default:
		panic(fmt.Sprintf("node: bernoulli proposal on non-real carrier shape %s", c.Shape()))
	}
}

// RecordProposal updates the node's running acceptance counters, used by
// the sampler's adaptation window (spec.md section 4.5) and by the
// per-node diagnostic in SPEC_FULL.md section 9.
func (n *Node) RecordProposal(accepted bool) {
	n.proposals++
	if accepted {
		n.accepts++
	}
}

// AcceptRatio returns the node's lifetime acceptance ratio, or 0 if it
// has never proposed.
func (n *Node) AcceptRatio() float64 {
	if n.proposals == 0 {
		return 0
	}
	return float64(n.accepts) / float64(n.proposals)
}
