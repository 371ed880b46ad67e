package model

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/katalvlaran/mhgraph/carrier"
)

// applyLinear writes dst = x*b, the built-in RuleLinear recomputation:
// x is an N x k MatrixReal, b a length-k VectorReal, dst a length-N
// VectorReal.
func applyLinear(dst, x, b *carrier.Carrier) {
	dst.Vec().MulVec(x.Mat(), b.Vec())
}

// applyLinearGrouped writes dst[i] = x[i,:]*b[g[i],:], the built-in
// RuleLinearGrouped recomputation grounding a grouped random-effect
// term (herd.fast.cpp's b_herd.elem(herd) pattern generalized from a
// per-group scalar intercept to a per-group coefficient row): x is an
// N x k MatrixReal, b a numGroups x k MatrixReal, g a length-N
// VectorInt of group indices, dst a length-N VectorReal.
func applyLinearGrouped(dst, x, b, g *carrier.Carrier) {
	xm, bm, gv, dv := x.Mat(), b.Mat(), g.IntVec(), dst.Vec()
	_, k := xm.Dims()
	for i := 0; i < dv.Len(); i++ {
		group := gv[i]
		sum := 0.0
		for j := 0; j < k; j++ {
			sum += xm.At(i, j) * bm.At(int(group), j)
		}
		dv.SetVec(i, sum)
	}
}

// applyLogistic writes dst = 1/(1+exp(-x*b)) elementwise, the built-in
// RuleLogistic recomputation.
func applyLogistic(dst, x, b *carrier.Carrier) {
	dv := dst.Vec()
	dv.MulVec(x.Mat(), b.Vec())
	raw := make([]float64, dv.Len())
	for i := range raw {
		raw[i] = dv.AtVec(i)
	}
	floats.Apply(func(v float64) float64 { return 1 / (1 + math.Exp(-v)) }, raw)
	for i, v := range raw {
		dv.SetVec(i, v)
	}
}
