package sampler

import (
	"golang.org/x/exp/rand"

	"github.com/katalvlaran/mhgraph/mhlog"
)

// Option customizes a Sampler's configuration before Run, in the
// teacher's functional-options idiom (builder.BuilderOption,
// generalized from graph construction to run configuration).
type Option func(cfg *config)

// config holds the sampler's resolved settings. Not safe for
// concurrent mutation; a fresh config is built once per sampler.New.
type config struct {
	iterations int
	burnIn     int
	adapt      int
	thin       int

	rng    *rand.Rand
	logger *mhlog.Logger

	adaptWindow      int
	adaptLowThresh   float64
	adaptHighThresh  float64
	adaptLowFactor   float64
	adaptHighFactor  float64
	adaptMinScale    float64
	adaptMaxScale    float64

	progress     func(iter, total int, acceptRatio float64)
	progressStep int
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		iterations: 1000,
		burnIn:     0,
		adapt:      0,
		thin:       1,

		rng:    rand.New(rand.NewSource(1)),
		logger: mhlog.Nop(),

		adaptWindow:     100,
		adaptLowThresh:  0.2,
		adaptHighThresh: 0.5,
		adaptLowFactor:  0.8,
		adaptHighFactor: 1.2,
		adaptMinScale:   1e-12,
		adaptMaxScale:   1e12,

		progressStep: 0,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithIterations sets the total number of MH iterations to run,
// including burn-in.
func WithIterations(n int) Option {
	return func(cfg *config) { cfg.iterations = n }
}

// WithBurnIn sets the number of leading iterations excluded from
// history.
func WithBurnIn(n int) Option {
	return func(cfg *config) { cfg.burnIn = n }
}

// WithAdapt sets the number of leading burn-in iterations during which
// proposal scales are adjusted; must be <= the burn-in length.
func WithAdapt(n int) Option {
	return func(cfg *config) { cfg.adapt = n }
}

// WithThin sets the history-recording stride: every thin-th post-burn-in
// iteration is retained. Thin <= 1 retains every iteration.
func WithThin(n int) Option {
	return func(cfg *config) {
		if n < 1 {
			n = 1
		}
		cfg.thin = n
	}
}

// WithSeed creates a new deterministic RNG seeded with seed, overriding
// any RNG set by an earlier WithRNG.
func WithSeed(seed uint64) Option {
	return func(cfg *config) { cfg.rng = rand.New(rand.NewSource(seed)) }
}

// WithRNG installs a caller-supplied RNG, overriding any seed set by an
// earlier WithSeed. A nil rng is ignored.
func WithRNG(rng *rand.Rand) Option {
	return func(cfg *config) {
		if rng != nil {
			cfg.rng = rng
		}
	}
}

// WithLogger installs a structured logger for state-transition and
// adaptation events. A nil logger is ignored.
func WithLogger(logger *mhlog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithAdaptWindow overrides the adaptation sub-window length (default
// 100, per spec).
func WithAdaptWindow(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.adaptWindow = n
		}
	}
}

// WithAdaptThresholds overrides the low/high acceptance-ratio
// thresholds (default 0.2/0.5) and their corresponding scale
// multipliers (default 0.8/1.2) that drive each adaptation window.
func WithAdaptThresholds(lowThresh, highThresh, lowFactor, highFactor float64) Option {
	return func(cfg *config) {
		cfg.adaptLowThresh = lowThresh
		cfg.adaptHighThresh = highThresh
		cfg.adaptLowFactor = lowFactor
		cfg.adaptHighFactor = highFactor
	}
}

// WithProgress registers a callback invoked every step iterations (and
// always at the final iteration) with the number of iterations completed
// so far, total iteration count, and running acceptance ratio. The default is
// no callback. This is the sampler's only sanctioned I/O suspension
// point.
func WithProgress(step int, fn func(iter, total int, acceptRatio float64)) Option {
	return func(cfg *config) {
		cfg.progress = fn
		cfg.progressStep = step
	}
}
