// Package logd implements the log-density formulas for the supported
// distribution family: Normal, Uniform, Gamma, Beta, Bernoulli and
// Binomial. Each function broadcasts a scalar or elementwise parameter
// set over a value carrier and returns math.Inf(-1) outside the
// distribution's support, never an error — callers (node, sampler) treat
// that as an automatic rejection.
//
// The formulas are ported from cppbugs' mcmc.math.hpp, which this
// module's host spec is itself distilled from; the additive-constant
// form of the Normal density (0.5*log(0.5*tau/pi) rather than the
// textbook 0.5*log(tau/(2*pi))) is kept because the sampler only ever
// compares differences of the joint log-density, so the constant
// cancels and consistency matters more than the particular textbook
// form.
package logd

import (
	"math"

	"github.com/katalvlaran/mhgraph/carrier"
)

// negInf is the sentinel support-violation value.
var negInf = math.Inf(-1)

// values extracts a flat []float64 view of a carrier for broadcasting.
// Only ScalarReal, VectorReal and MatrixReal (flattened row-major) are
// accepted; any other shape panics.
func values(c *carrier.Carrier) []float64 {
	switch c.Shape() {
	case carrier.ScalarReal:
		return []float64{c.Float()}
	case carrier.VectorReal:
		v := c.Vec()
		out := make([]float64, v.Len())
		for i := range out {
			out[i] = v.AtVec(i)
		}
		return out
	case carrier.MatrixReal:
		m := c.Mat()
		r, cc := m.Dims()
		out := make([]float64, 0, r*cc)
		for i := 0; i < r; i++ {
			for j := 0; j < cc; j++ {
				out = append(out, m.At(i, j))
			}
		}
		return out
	default:
		panic("logd: unsupported carrier shape for a continuous distribution parameter")
	}
}

// broadcastTriple checks that a and b each either hold one element
// (broadcast against x) or match x's length, and returns the element
// count to iterate over with at. Panics (a configuration error
// caught earlier, at model build time) if non-scalar shapes disagree in
// length.
func broadcastTriple(x, a, b []float64) int {
	n := len(x)
	if len(a) != 1 && len(a) != n {
		panic("logd: parameter shape does not broadcast against value shape")
	}
	if len(b) != 1 && len(b) != n {
		panic("logd: parameter shape does not broadcast against value shape")
	}
	return n
}

func at(s []float64, i int) float64 {
	if len(s) == 1 {
		return s[0]
	}
	return s[i]
}

// broadcastPair is broadcastTriple for a single parameter array.
func broadcastPair(x, a []float64) int {
	n := len(x)
	if len(a) != 1 && len(a) != n {
		panic("logd: parameter shape does not broadcast against value shape")
	}
	return n
}

// NormalLogP computes Sum 0.5*log(0.5*tau/pi) - 0.5*tau*(x-mu)^2.
// Returns -Inf if tau <= 0 anywhere.
func NormalLogP(x, mu, tau *carrier.Carrier) float64 {
	xs, mus, taus := values(x), values(mu), values(tau)
	n := broadcastTriple(xs, mus, taus)
	total := 0.0
	for i := 0; i < n; i++ {
		t := at(taus, i)
		if t <= 0 {
			return negInf
		}
		m := at(mus, i)
		d := xs[i] - m
		total += 0.5*math.Log(0.5*t/math.Pi) - 0.5*t*d*d
	}
	return total
}

// UniformLogP computes -Sum log(hi-lo). Returns -Inf if any x < lo or
// x > hi.
func UniformLogP(x, lo, hi *carrier.Carrier) float64 {
	xs, los, his := values(x), values(lo), values(hi)
	n := broadcastTriple(xs, los, his)
	total := 0.0
	for i := 0; i < n; i++ {
		l, h := at(los, i), at(his, i)
		if xs[i] < l || xs[i] > h {
			return negInf
		}
		total -= math.Log(h - l)
	}
	return total
}

// GammaLogP computes Sum (alpha-1)*log(x) - beta*x - lgamma(alpha) +
// alpha*log(beta). Returns -Inf if any x < 0.
func GammaLogP(x, alpha, beta *carrier.Carrier) float64 {
	xs, as, bs := values(x), values(alpha), values(beta)
	n := broadcastTriple(xs, as, bs)
	total := 0.0
	for i := 0; i < n; i++ {
		if xs[i] < 0 {
			return negInf
		}
		a, b := at(as, i), at(bs, i)
		lg, _ := math.Lgamma(a)
		total += (a-1)*math.Log(xs[i]) - b*xs[i] - lg + a*math.Log(b)
	}
	return total
}

// BetaLogP computes Sum (alpha-1)*log(x) + (beta-1)*log(1-x) +
// lgamma(alpha+beta) - lgamma(alpha) - lgamma(beta). Returns -Inf if any
// x < 0 or x > 1.
func BetaLogP(x, alpha, beta *carrier.Carrier) float64 {
	xs, as, bs := values(x), values(alpha), values(beta)
	n := broadcastTriple(xs, as, bs)
	total := 0.0
	for i := 0; i < n; i++ {
		if xs[i] < 0 || xs[i] > 1 {
			return negInf
		}
		a, b := at(as, i), at(bs, i)
		lgAB, _ := math.Lgamma(a + b)
		lgA, _ := math.Lgamma(a)
		lgB, _ := math.Lgamma(b)
		total += (a-1)*math.Log(xs[i]) + (b-1)*math.Log(1-xs[i]) + lgAB - lgA - lgB
	}
	return total
}

// BernoulliLogP computes Sum x*log(p) + (1-x)*log(1-p). Returns -Inf if
// any p <= 0, p >= 1, or x not in {0, 1}.
func BernoulliLogP(x, p *carrier.Carrier) float64 {
	xs, ps := values(x), values(p)
	n := broadcastPair(xs, ps)
	total := 0.0
	for i := 0; i < n; i++ {
		pi := at(ps, i)
		xi := xs[i]
		if pi <= 0 || pi >= 1 || (xi != 0 && xi != 1) {
			return negInf
		}
		total += xi*math.Log(pi) + (1-xi)*math.Log(1-pi)
	}
	return total
}

// logChooseN returns lgamma(n+1) - lgamma(k+1) - lgamma(n-k+1), the log
// binomial coefficient log C(n, k).
func logChooseN(n, k float64) float64 {
	lgN, _ := math.Lgamma(n + 1)
	lgK, _ := math.Lgamma(k + 1)
	lgNK, _ := math.Lgamma(n - k + 1)
	return lgN - lgK - lgNK
}

// BinomialLogP computes Sum x*log(p) + (n-x)*log(1-p) + logC(n,x).
// Returns -Inf if any p <= 0, p >= 1, x < 0, or x > n.
func BinomialLogP(x, n, p *carrier.Carrier) float64 {
	xs, ns, ps := values(x), values(n), values(p)
	cnt := broadcastTriple(xs, ns, ps)
	total := 0.0
	for i := 0; i < cnt; i++ {
		ni, pi := at(ns, i), at(ps, i)
		xi := xs[i]
		if pi <= 0 || pi >= 1 || xi < 0 || xi > ni {
			return negInf
		}
		total += xi*math.Log(pi) + (ni-xi)*math.Log(1-pi) + logChooseN(ni, xi)
	}
	return total
}

// IsRejected reports whether a log-density value represents an
// automatic rejection: -Inf or NaN. Per spec, NaN is treated as -Inf.
func IsRejected(logp float64) bool {
	return math.IsInf(logp, -1) || math.IsNaN(logp)
}

// Coerce maps NaN to -Inf and leaves every other value untouched, the
// single place the sampler needs to apply spec's "NaN in a log-density
// is treated as -Inf" rule after summing contributions from several
// nodes.
func Coerce(logp float64) float64 {
	if math.IsNaN(logp) {
		return negInf
	}
	return logp
}
