package node_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/katalvlaran/mhgraph/carrier"
	"github.com/katalvlaran/mhgraph/node"
)

func scalarRef(m map[node.Ref]*carrier.Carrier, ref node.Ref, v float64) {
	m[ref] = carrier.NewScalarReal(v)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	require := require.New(t)

	c := carrier.NewScalarReal(2.0)
	n := node.NewStochastic(0, c, node.Spec{Family: node.Normal, P1: 1, P2: 2})

	n.Snapshot()
	c.SetFloat(999)
	n.Restore()

	require.Equal(2.0, c.Float())
}

func TestProposeContinuousChangesValue(t *testing.T) {
	require := require.New(t)

	c := carrier.NewScalarReal(0.0)
	n := node.NewStochastic(0, c, node.Spec{Family: node.Normal, P1: 1, P2: 2})
	n.Scale = 1.0

	rng := rand.New(rand.NewSource(42))
	n.Propose(rng)

	require.NotEqual(0.0, c.Float())
}

func TestProposeBinomialIsNoOp(t *testing.T) {
	require := require.New(t)

	c := carrier.NewScalarReal(3.0)
	n := node.NewStochastic(0, c, node.Spec{Family: node.Binomial, P1: 1, P2: 2})
	rng := rand.New(rand.NewSource(1))

	n.Propose(rng)
	require.Equal(3.0, c.Float())
}

func TestProposeObservedIsNoOp(t *testing.T) {
	require := require.New(t)

	c := carrier.NewScalarReal(5.0)
	n := node.NewObserved(0, c, node.Spec{Family: node.Normal, P1: 1, P2: 2})
	rng := rand.New(rand.NewSource(1))

	n.Propose(rng)
	require.Equal(5.0, c.Float())
}

func TestLogPSupportRejection(t *testing.T) {
	require := require.New(t)

	params := map[node.Ref]*carrier.Carrier{}
	scalarRef(params, 1, 2.0)  // gamma node for Gamma(alpha=2, beta=1)
	scalarRef(params, 2, 1.0)

	c := carrier.NewScalarReal(-1.0) // out of support
	n := node.NewStochastic(0, c, node.Spec{Family: node.Gamma, P1: 1, P2: 2})

	lp := n.LogP(func(r node.Ref) *carrier.Carrier { return params[r] })
	require.True(math.IsInf(lp, -1))
}

func TestAcceptRatioTracksProposals(t *testing.T) {
	require := require.New(t)

	c := carrier.NewScalarReal(0)
	n := node.NewStochastic(0, c, node.Spec{Family: node.Normal, P1: 1, P2: 2})

	require.Equal(0.0, n.AcceptRatio())
	n.RecordProposal(true)
	n.RecordProposal(false)
	n.RecordProposal(true)
	require.InDelta(2.0/3.0, n.AcceptRatio(), 1e-9)
}

func TestDeterministicLogPIsZero(t *testing.T) {
	require := require.New(t)

	c := carrier.NewScalarReal(0)
	n := node.NewDeterministic(0, c, node.UpdateRule{Kind: node.RuleClosure})
	lp := n.LogP(func(node.Ref) *carrier.Carrier { return nil })
	require.Equal(0.0, lp)
}
