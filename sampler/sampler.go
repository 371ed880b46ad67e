// Package sampler drives the component-wise Metropolis-Hastings loop
// over a built model.Model: propose, evaluate, accept-or-restore, one
// unobserved node at a time, with proposal-scale adaptation during an
// initial slice of burn-in and optional history thinning afterward.
package sampler

import (
	"context"
	"errors"
	"fmt"

	"github.com/katalvlaran/mhgraph/model"
	"github.com/katalvlaran/mhgraph/node"
)

// ErrAdaptExceedsBurnIn is returned by Run when the configured adapt
// window is longer than burn-in, a configuration error caught before
// the hot loop starts.
var ErrAdaptExceedsBurnIn = errors.New("sampler: adapt window exceeds burn-in")

// RunError wraps a failure raised during Run: a panicking update
// closure (spec section 4.8) or a cancelled context. History
// accumulated before the failure remains valid and readable through
// the model.
type RunError struct {
	Iteration int
	Err       error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("sampler: run failed at iteration %d: %v", e.Iteration, e.Err)
}
func (e *RunError) Unwrap() error { return e.Err }

// state names the sampler's coarse phase, used only for logging —
// spec section 4.7 calls for no suspension points in the hot loop, so
// this never drives control flow.
type state int

const (
	fresh state = iota
	adapting
	burningIn
	sampling
	done
)

func (s state) String() string {
	switch s {
	case fresh:
		return "fresh"
	case adapting:
		return "adapting"
	case burningIn:
		return "burning_in"
	case sampling:
		return "sampling"
	case done:
		return "done"
	default:
		return "unknown"
	}
}

// Sampler drives a model.Model through a configured number of MH
// iterations. It owns the single *rand.Rand shared by every node's
// proposal, per spec section 5's sequential-only concurrency model.
type Sampler struct {
	m   *model.Model
	cfg *config

	stochastic []node.Ref

	windowProposals map[node.Ref]int
	windowAccepts   map[node.Ref]int

	totalProposals int
	totalAccepts   int
}

// New builds a Sampler for m, applying opts over the package defaults
// (1000 iterations, no burn-in/adapt, thin 1, seed 1). m must already
// be built (model.Model.Build called). New does not check this itself;
// Run on an unbuilt model that has stochastic nodes fails with a
// *RunError at its first history access.
func New(m *model.Model, opts ...Option) *Sampler {
	cfg := newConfig(opts...)

	s := &Sampler{
		m:               m,
		cfg:             cfg,
		windowProposals: make(map[node.Ref]int),
		windowAccepts:   make(map[node.Ref]int),
	}
	for i, n := range m.Nodes() {
		ref := node.Ref(i)
		if n.Role == node.Stochastic {
			s.stochastic = append(s.stochastic, ref)
		}
	}
	return s
}

// NodeAcceptRatio returns node ref's lifetime acceptance ratio, a
// supplemental per-node diagnostic beyond the overall ratio Run returns.
// The counters live on the node itself, so they include proposals made
// by any Sampler that has run over the same model.
func (s *Sampler) NodeAcceptRatio(ref node.Ref) float64 {
	return s.m.Node(ref).AcceptRatio()
}

// Run executes the configured number of MH iterations against the
// Sampler's model, recording history for every retained iteration and
// returning the overall acceptance ratio across all stochastic nodes'
// proposals. ctx is checked once per iteration (spec section 5's "host
// may check a flag between iterations" hook, expressed idiomatically);
// a cancelled context stops the loop and returns the history
// accumulated so far alongside a *RunError wrapping ctx.Err().
//
// A panic from the model's update closure is recovered and returned as
// a *RunError; history accumulated before the panic remains valid.
func (s *Sampler) Run(ctx context.Context) (acceptRatio float64, err error) {
	if s.cfg.adapt > s.cfg.burnIn {
		return 0, ErrAdaptExceedsBurnIn
	}

	iter := 0
	defer func() {
		if r := recover(); r != nil {
			var e error
			if asErr, ok := r.(error); ok {
				e = asErr
			} else {
				e = fmt.Errorf("%v", r)
			}
			acceptRatio = s.ratio()
			err = &RunError{Iteration: iter, Err: e}
		}
	}()

	retained := 0
	if s.cfg.iterations > s.cfg.burnIn {
		retained = (s.cfg.iterations - s.cfg.burnIn + s.cfg.thin - 1) / s.cfg.thin
	}
	for _, ref := range s.stochastic {
		s.m.ReserveHistory(ref, retained)
	}

	s.logState(fresh)
	prev := fresh
	for ; iter < s.cfg.iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return s.ratio(), &RunError{Iteration: iter, Err: err}
		}

		if st := s.phaseOf(iter); st != prev {
			s.logState(st)
			prev = st
		}
		s.stepAllNodes()

		if iter < s.cfg.adapt {
			s.adaptWindowTick(iter)
		}
		if iter >= s.cfg.burnIn && (iter-s.cfg.burnIn)%s.cfg.thin == 0 {
			for _, ref := range s.stochastic {
				s.m.Record(ref)
			}
		}
		s.maybeReportProgress(iter)
	}
	s.logState(done)
	return s.ratio(), nil
}

func (s *Sampler) phaseOf(iter int) state {
	switch {
	case iter < s.cfg.adapt:
		return adapting
	case iter < s.cfg.burnIn:
		return burningIn
	default:
		return sampling
	}
}

// stepAllNodes runs one MH step per stochastic node, in declared
// order: snapshot, propose, recompute deterministic dependents via the
// model's update closure, evaluate the joint log-density, and accept
// or restore. Observed and Deterministic nodes never propose, so they
// are not stepped individually here — the closure recomputes every
// Deterministic node's value once per accepted or attempted proposal.
func (s *Sampler) stepAllNodes() {
	for _, ref := range s.stochastic {
		n := s.m.Node(ref)

		before := s.m.LogJoint()
		n.Snapshot()
		n.Propose(s.cfg.rng)

		if err := s.m.RunClosure(); err != nil {
			panic(err)
		}

		after := s.m.LogJoint()
		accepted := metropolisAccept(before, after, s.cfg.rng)

		if !accepted {
			n.Restore()
			if err := s.m.RunClosure(); err != nil {
				panic(err)
			}
		}

		n.RecordProposal(accepted)
		s.totalProposals++
		if accepted {
			s.totalAccepts++
		}
		s.windowProposals[ref]++
		if accepted {
			s.windowAccepts[ref]++
		}
	}
}

func (s *Sampler) ratio() float64 {
	if s.totalProposals == 0 {
		return 0
	}
	return float64(s.totalAccepts) / float64(s.totalProposals)
}

func (s *Sampler) maybeReportProgress(iter int) {
	if s.cfg.progress == nil {
		return
	}
	last := iter == s.cfg.iterations-1
	if last || (s.cfg.progressStep > 0 && iter%s.cfg.progressStep == 0) {
		s.cfg.progress(iter+1, s.cfg.iterations, s.ratio())
	}
}

func (s *Sampler) logState(st state) {
	s.cfg.logger.Debug("sampler state", "state", st.String())
}
