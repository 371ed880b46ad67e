package sampler

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/katalvlaran/mhgraph/logd"
	"github.com/katalvlaran/mhgraph/node"
)

// metropolisAccept applies the standard MH acceptance rule to a
// log-density difference: always accept when the proposal does not
// decrease the joint log-density, otherwise accept with probability
// exp(after-before). A -Inf after (support rejection) always rejects;
// a -Inf before with a finite after always accepts, matching the
// ratio's limiting behavior.
func metropolisAccept(before, after float64, rng *rand.Rand) bool {
	if logd.IsRejected(after) {
		return false
	}
	if logd.IsRejected(before) {
		return true
	}
	diff := after - before
	if diff >= 0 {
		return true
	}
	uni := distuv.Uniform{Min: 0, Max: 1, Src: rng}
	u := uni.Rand()
	return math.Log(u) < diff
}

// adaptWindowTick runs once per adapting iteration. Every adaptWindow
// iterations (spec section 4.5's 100-iteration sub-windows) it computes
// each stochastic node's acceptance ratio over the just-completed
// window and rescales its proposal sigma: below adaptLowThresh
// multiplies by adaptLowFactor (shrink), above adaptHighThresh
// multiplies by adaptHighFactor (grow), clamped to
// [adaptMinScale, adaptMaxScale]. Window counters reset after each
// adjustment; adaptation stops entirely once iter reaches cfg.adapt.
func (s *Sampler) adaptWindowTick(iter int) {
	if (iter+1)%s.cfg.adaptWindow != 0 {
		return
	}
	for _, ref := range s.stochastic {
		proposals := s.windowProposals[ref]
		if proposals == 0 {
			continue
		}
		ratio := float64(s.windowAccepts[ref]) / float64(proposals)
		s.rescale(ref, ratio)
		s.windowProposals[ref] = 0
		s.windowAccepts[ref] = 0
	}
}

func (s *Sampler) rescale(ref node.Ref, ratio float64) {
	n := s.m.Node(ref)
	switch {
	case ratio < s.cfg.adaptLowThresh:
		n.Scale *= s.cfg.adaptLowFactor
	case ratio > s.cfg.adaptHighThresh:
		n.Scale *= s.cfg.adaptHighFactor
	default:
		return
	}
	if n.Scale < s.cfg.adaptMinScale {
		n.Scale = s.cfg.adaptMinScale
	}
	if n.Scale > s.cfg.adaptMaxScale {
		n.Scale = s.cfg.adaptMaxScale
	}
	s.cfg.logger.Debug("adapted proposal scale", "node", int(ref), "ratio", ratio, "scale", n.Scale)
}
