package sampler_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/mhgraph/carrier"
	"github.com/katalvlaran/mhgraph/model"
	"github.com/katalvlaran/mhgraph/node"
	"github.com/katalvlaran/mhgraph/sampler"
)

func TestAcceptanceRatioBounds(t *testing.T) {
	require := require.New(t)

	m := model.New()
	mu, _ := m.AddObserved(carrier.NewScalarReal(0), node.Spec{})
	tau, _ := m.AddObserved(carrier.NewScalarReal(1), node.Spec{})
	_, err := m.AddStochastic(carrier.NewScalarReal(0), node.Spec{Family: node.Normal, P1: mu, P2: tau})
	require.NoError(err)
	require.NoError(m.Build())

	s := sampler.New(m, sampler.WithIterations(200), sampler.WithSeed(7))
	ratio, err := s.Run(context.Background())
	require.NoError(err)
	require.GreaterOrEqual(ratio, 0.0)
	require.LessOrEqual(ratio, 1.0)
}

func TestRejectionRestoresNodeValue(t *testing.T) {
	require := require.New(t)

	m := model.New()
	lo, _ := m.AddObserved(carrier.NewScalarReal(0), node.Spec{})
	hi, _ := m.AddObserved(carrier.NewScalarReal(1e-9), node.Spec{})
	xRef, err := m.AddStochastic(carrier.NewScalarReal(5e-10), node.Spec{Family: node.Uniform, P1: lo, P2: hi})
	require.NoError(err)
	require.NoError(m.Build())

	before := m.Lookup(xRef).Float()
	s := sampler.New(m, sampler.WithIterations(50), sampler.WithSeed(3))
	_, err = s.Run(context.Background())
	require.NoError(err)

	after := m.Lookup(xRef).Float()
	require.GreaterOrEqual(after, 0.0)
	require.LessOrEqual(after, 1e-9)
	_ = before
}

func TestContextCancellationStopsRun(t *testing.T) {
	require := require.New(t)

	m := model.New()
	_, err := m.AddStochastic(carrier.NewScalarReal(0), node.Spec{})
	require.NoError(err)
	require.NoError(m.Build())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := sampler.New(m, sampler.WithIterations(1000))
	_, err = s.Run(ctx)
	require.Error(err)

	var runErr *sampler.RunError
	require.ErrorAs(err, &runErr)
}

func TestAdaptExceedsBurnInIsRejected(t *testing.T) {
	require := require.New(t)

	m := model.New()
	_, err := m.AddStochastic(carrier.NewScalarReal(0), node.Spec{})
	require.NoError(err)
	require.NoError(m.Build())

	s := sampler.New(m, sampler.WithIterations(10), sampler.WithBurnIn(5), sampler.WithAdapt(6))
	_, err = s.Run(context.Background())
	require.ErrorIs(err, sampler.ErrAdaptExceedsBurnIn)
}

func TestFixedSeedReproducesHistory(t *testing.T) {
	require := require.New(t)

	build := func() (*model.Model, node.Ref) {
		m := model.New()
		mu, _ := m.AddObserved(carrier.NewScalarReal(0), node.Spec{})
		tau, _ := m.AddObserved(carrier.NewScalarReal(1), node.Spec{})
		x, err := m.AddStochastic(carrier.NewScalarReal(0), node.Spec{Family: node.Normal, P1: mu, P2: tau})
		require.NoError(err)
		require.NoError(m.Build())
		return m, x
	}

	m1, x1 := build()
	s1 := sampler.New(m1, sampler.WithIterations(100), sampler.WithSeed(99))
	_, err := s1.Run(context.Background())
	require.NoError(err)

	m2, x2 := build()
	s2 := sampler.New(m2, sampler.WithIterations(100), sampler.WithSeed(99))
	_, err = s2.Run(context.Background())
	require.NoError(err)

	h1, h2 := m1.History(x1), m2.History(x2)
	require.Equal(len(h1), len(h2))
	for i := range h1 {
		require.Equal(h1[i].Float(), h2[i].Float())
	}
}

func TestThinningAndBurnInHistoryLength(t *testing.T) {
	require := require.New(t)

	m := model.New()
	xRef, err := m.AddStochastic(carrier.NewScalarReal(0), node.Spec{})
	require.NoError(err)
	require.NoError(m.Build())

	s := sampler.New(m, sampler.WithIterations(100), sampler.WithBurnIn(20), sampler.WithThin(5), sampler.WithSeed(1))
	_, err = s.Run(context.Background())
	require.NoError(err)

	require.Len(m.History(xRef), 16) // (100-20)/5
}

func TestAdaptationFreezesAfterAdaptWindow(t *testing.T) {
	require := require.New(t)

	m := model.New()
	mu, _ := m.AddObserved(carrier.NewScalarReal(0), node.Spec{})
	tau, _ := m.AddObserved(carrier.NewScalarReal(1), node.Spec{})
	xRef, err := m.AddStochastic(carrier.NewScalarReal(0), node.Spec{Family: node.Normal, P1: mu, P2: tau})
	require.NoError(err)
	require.NoError(m.Build())

	s := sampler.New(m, sampler.WithIterations(300), sampler.WithBurnIn(200), sampler.WithAdapt(200),
		sampler.WithAdaptWindow(100), sampler.WithSeed(11))
	_, err = s.Run(context.Background())
	require.NoError(err)

	frozenScale := m.Node(xRef).Scale

	s2 := sampler.New(m, sampler.WithIterations(100), sampler.WithSeed(12))
	_, err = s2.Run(context.Background())
	require.NoError(err)

	require.Equal(frozenScale, m.Node(xRef).Scale)
}

// ScenarioSuite covers spec's end-to-end inference scenarios. Each test
// checks structural/boundary properties a correct sampler guarantees
// regardless of RNG draw, not tight statistical convergence — these are
// unit tests, not a statistical test suite.
type ScenarioSuite struct {
	suite.Suite
}

func TestScenarioSuite(t *testing.T) {
	suite.Run(t, new(ScenarioSuite))
}

// NormalMean: infer a scalar mean from fixed-precision observations.
func (s *ScenarioSuite) TestNormalMeanScenario() {
	require := s.Require()

	m := model.New()
	muLo, err := m.AddObserved(carrier.NewScalarReal(-10), node.Spec{})
	require.NoError(err)
	muHi, err := m.AddObserved(carrier.NewScalarReal(10), node.Spec{})
	require.NoError(err)
	muRef, err := m.AddStochastic(carrier.NewScalarReal(0), node.Spec{Family: node.Uniform, P1: muLo, P2: muHi})
	require.NoError(err)
	tau, err := m.AddObserved(carrier.NewScalarReal(1), node.Spec{})
	require.NoError(err)

	data := []float64{4.8, 5.1, 4.9, 5.3, 5.0, 4.7, 5.2}
	for _, v := range data {
		_, err := m.AddObserved(carrier.NewScalarReal(v), node.Spec{Family: node.Normal, P1: muRef, P2: tau})
		require.NoError(err)
	}
	require.NoError(m.Build())

	smp := sampler.New(m, sampler.WithIterations(2000), sampler.WithBurnIn(500), sampler.WithAdapt(500),
		sampler.WithThin(2), sampler.WithSeed(42))
	ratio, err := smp.Run(context.Background())
	require.NoError(err)
	require.Greater(ratio, 0.0)

	hist := m.History(muRef)
	require.NotEmpty(hist)

	mean := 0.0
	for _, snap := range hist {
		mean += snap.Float()
	}
	mean /= float64(len(hist))
	require.InDelta(5.0, mean, 2.0) // loose: a correctness smoke test, not a convergence proof
}

// BetaBernoulli: a conjugate coin-flip model.
func (s *ScenarioSuite) TestBetaBernoulliConjugateScenario() {
	require := s.Require()

	m := model.New()
	a, err := m.AddObserved(carrier.NewScalarReal(1), node.Spec{})
	require.NoError(err)
	b, err := m.AddObserved(carrier.NewScalarReal(1), node.Spec{})
	require.NoError(err)
	pRef, err := m.AddStochastic(carrier.NewScalarReal(0.5), node.Spec{Family: node.Beta, P1: a, P2: b})
	require.NoError(err)

	flips := []float64{1, 1, 0, 1, 1, 1, 0, 1}
	for _, v := range flips {
		_, err := m.AddObserved(carrier.NewScalarReal(v), node.Spec{Family: node.Bernoulli, P1: pRef})
		require.NoError(err)
	}
	require.NoError(m.Build())

	smp := sampler.New(m, sampler.WithIterations(1500), sampler.WithBurnIn(300), sampler.WithAdapt(300),
		sampler.WithSeed(5))
	_, err = smp.Run(context.Background())
	require.NoError(err)

	hist := m.History(pRef)
	require.NotEmpty(hist)
	for _, snap := range hist {
		require.GreaterOrEqual(snap.Float(), 0.0)
		require.LessOrEqual(snap.Float(), 1.0)
	}
}

// LinearRegression: y = 1 + 2*x + noise, b = (intercept, slope) inferred
// under a vague Normal(0, 0.001) prior (spec.md scenario 3), X a fixed
// design matrix. The likelihood precision tau is held observed rather
// than also inferred (spec.md infers it too, via Gamma(0.1,0.1)) to keep
// this a fast, deterministic unit test rather than a full replication.
func (s *ScenarioSuite) TestLinearRegressionScenario() {
	require := s.Require()

	m := model.New()
	bMu, err := m.AddObserved(carrier.NewScalarReal(0), node.Spec{})
	require.NoError(err)
	bTau, err := m.AddObserved(carrier.NewScalarReal(0.001), node.Spec{})
	require.NoError(err)
	bRef, err := m.AddStochastic(carrier.NewVectorReal(mat.NewVecDense(2, []float64{0, 0})),
		node.Spec{Family: node.Normal, P1: bMu, P2: bTau})
	require.NoError(err)

	xRef, err := m.AddObserved(carrier.NewMatrixReal(mat.NewDense(10, 2, []float64{
		1, 0,
		1, 1,
		1, 2,
		1, 3,
		1, 4,
		1, 5,
		1, 6,
		1, 7,
		1, 8,
		1, 9,
	})), node.Spec{})
	require.NoError(err)

	yhatRef, err := m.AddDeterministic(carrier.NewVectorReal(mat.NewVecDense(10, nil)),
		node.UpdateRule{Kind: node.RuleLinear, X: xRef, B: bRef})
	require.NoError(err)

	tau, err := m.AddObserved(carrier.NewScalarReal(4.0), node.Spec{})
	require.NoError(err)
	_, err = m.AddObserved(carrier.NewVectorReal(mat.NewVecDense(10, []float64{
		1.05, 2.96, 5.02, 6.99, 9.03, 10.98, 13.04, 14.97, 17.01, 18.98,
	})), node.Spec{Family: node.Normal, P1: yhatRef, P2: tau})
	require.NoError(err)
	require.NoError(m.Build())

	smp := sampler.New(m, sampler.WithIterations(4000), sampler.WithBurnIn(1000), sampler.WithAdapt(1000),
		sampler.WithSeed(21))
	ratio, err := smp.Run(context.Background())
	require.NoError(err)
	require.GreaterOrEqual(ratio, 0.0)

	hist := m.History(bRef)
	require.NotEmpty(hist)

	mean := []float64{0, 0}
	for _, snap := range hist {
		v := snap.Vec()
		mean[0] += v[0]
		mean[1] += v[1]
	}
	mean[0] /= float64(len(hist))
	mean[1] /= float64(len(hist))

	// loose: a correctness smoke test, not a tight convergence proof.
	require.InDelta(1.0, mean[0], 0.6)
	require.InDelta(2.0, mean[1], 0.6)
}

// Herd: a simplified hierarchical logistic-binomial model grounded on
// original_source's herd.fast.cpp — a small grouped random-intercept
// binomial regression, scaled down from 56 rows/15 herds to a size
// this test can assert on directly. b_herd carries a real Normal(0,1)
// prior (the original infers its precision too, held fixed here for a
// fast, deterministic unit test) and phi is squashed through a
// logistic link via a registered update closure, matching
// herd.fast.cpp's own `phi = 1/(1+exp(-phi))` step — RuleLinearGrouped
// alone produces the raw linear combination, not a probability.
func (s *ScenarioSuite) TestHerdHierarchicalScenario() {
	require := s.Require()

	const nRows = 6
	const nHerds = 3
	herdOf := []int64{0, 0, 1, 1, 2, 2}
	sizeOf := []float64{14, 12, 9, 5, 22, 18}
	incidence := []float64{2, 3, 4, 0, 3, 1}

	m := model.New()
	bMu, err := m.AddObserved(carrier.NewScalarReal(0), node.Spec{})
	require.NoError(err)
	bTau, err := m.AddObserved(carrier.NewScalarReal(1), node.Spec{})
	require.NoError(err)
	bHerdRef, err := m.AddStochastic(carrier.NewMatrixReal(mat.NewDense(nHerds, 1, make([]float64, nHerds))),
		node.Spec{Family: node.Normal, P1: bMu, P2: bTau})
	require.NoError(err)

	xRef, err := m.AddObserved(carrier.NewMatrixReal(mat.NewDense(nRows, 1, ones(nRows))), node.Spec{})
	require.NoError(err)
	gRef, err := m.AddObserved(carrier.NewVectorInt(herdOf), node.Spec{})
	require.NoError(err)

	etaRef, err := m.AddDeterministic(carrier.NewVectorReal(mat.NewVecDense(nRows, nil)),
		node.UpdateRule{Kind: node.RuleLinearGrouped, X: xRef, B: bHerdRef, G: gRef})
	require.NoError(err)
	phiRef, err := m.AddDeterministic(carrier.NewVectorReal(mat.NewVecDense(nRows, nil)),
		node.UpdateRule{Kind: node.RuleClosure})
	require.NoError(err)
	m.SetUpdateClosure(func(mm *model.Model) error {
		eta := mm.Lookup(etaRef).Vec()
		phi := mm.Lookup(phiRef).Vec()
		for i := 0; i < eta.Len(); i++ {
			phi.SetVec(i, 1/(1+math.Exp(-eta.AtVec(i))))
		}
		return nil
	})

	sizeRef, err := m.AddObserved(carrier.NewVectorReal(mat.NewVecDense(nRows, sizeOf)), node.Spec{})
	require.NoError(err)
	_, err = m.AddObserved(carrier.NewVectorReal(mat.NewVecDense(nRows, incidence)),
		node.Spec{Family: node.Binomial, P1: sizeRef, P2: phiRef})
	require.NoError(err)

	require.NoError(m.Build())

	smp := sampler.New(m, sampler.WithIterations(3000), sampler.WithBurnIn(500), sampler.WithAdapt(500),
		sampler.WithSeed(17))
	_, err = smp.Run(context.Background())
	require.NoError(err)

	hist := m.History(bHerdRef)
	require.NotEmpty(hist)

	mean := make([]float64, nHerds)
	for _, snap := range hist {
		data, _, _ := snap.Mat()
		for h := 0; h < nHerds; h++ {
			mean[h] += data[h]
		}
	}
	// every herd's observed incidence rate is well under 0.5 (5/26,
	// 4/14, 4/40), so the recovered logit for each should be clearly
	// negative — loose: a correctness smoke test, not a convergence proof.
	for h := 0; h < nHerds; h++ {
		mean[h] /= float64(len(hist))
		require.Less(mean[h], -0.1)
	}
}

// SupportRejection: proposals landing outside a Gamma's x>=0 support
// must reject (return to the prior value), never corrupt state.
func (s *ScenarioSuite) TestSupportRejectionScenario() {
	require := s.Require()

	m := model.New()
	alpha, err := m.AddObserved(carrier.NewScalarReal(2), node.Spec{})
	require.NoError(err)
	beta, err := m.AddObserved(carrier.NewScalarReal(1), node.Spec{})
	require.NoError(err)
	xRef, err := m.AddStochastic(carrier.NewScalarReal(0.01), node.Spec{Family: node.Gamma, P1: alpha, P2: beta})
	require.NoError(err)
	require.NoError(m.Build())

	smp := sampler.New(m, sampler.WithIterations(300), sampler.WithSeed(8))
	_, err = smp.Run(context.Background())
	require.NoError(err)
	require.GreaterOrEqual(m.Lookup(xRef).Float(), 0.0)
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
