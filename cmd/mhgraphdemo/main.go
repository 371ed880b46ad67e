// Command mhgraphdemo is a thin, illustrative driver over the mhgraph
// library: it declares a single Normal-mean inference model, runs the
// sampler, and prints the posterior mean. It is not a scripting-host
// bridge — a real host embeds the package directly rather than
// shelling out to this binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/katalvlaran/mhgraph/carrier"
	"github.com/katalvlaran/mhgraph/mhlog"
	"github.com/katalvlaran/mhgraph/model"
	"github.com/katalvlaran/mhgraph/node"
	"github.com/katalvlaran/mhgraph/sampler"
)

func main() {
	iterations := flag.Int("iterations", 5000, "total MH iterations")
	burnIn := flag.Int("burn-in", 1000, "leading iterations excluded from history")
	adapt := flag.Int("adapt", 1000, "leading burn-in iterations with proposal-scale adaptation")
	thin := flag.Int("thin", 1, "history-recording stride")
	seed := flag.Uint64("seed", 1, "RNG seed")
	verbose := flag.Bool("v", false, "log sampler state transitions to stderr")
	flag.Parse()

	logger := mhlog.Nop()
	if *verbose {
		logger = mhlog.New(os.Stderr, mhlog.DebugLevel)
	}

	if err := run(*iterations, *burnIn, *adapt, *thin, *seed, logger); err != nil {
		fmt.Fprintln(os.Stderr, "mhgraphdemo:", err)
		os.Exit(1)
	}
}

// run declares a scalar Normal-mean model over a small fixed dataset
// and samples its posterior, printing the retained mean.
func run(iterations, burnIn, adapt, thin int, seed uint64, logger *mhlog.Logger) error {
	m := model.New()
	muLo, err := m.AddObserved(carrier.NewScalarReal(-10), node.Spec{})
	if err != nil {
		return fmt.Errorf("declare mu prior bound: %w", err)
	}
	muHi, err := m.AddObserved(carrier.NewScalarReal(10), node.Spec{})
	if err != nil {
		return fmt.Errorf("declare mu prior bound: %w", err)
	}
	muRef, err := m.AddStochastic(carrier.NewScalarReal(0), node.Spec{Family: node.Uniform, P1: muLo, P2: muHi})
	if err != nil {
		return fmt.Errorf("declare mu: %w", err)
	}
	tauRef, err := m.AddObserved(carrier.NewScalarReal(1), node.Spec{})
	if err != nil {
		return fmt.Errorf("declare tau: %w", err)
	}

	data := []float64{4.8, 5.1, 4.9, 5.3, 5.0, 4.7, 5.2}
	for _, v := range data {
		if _, err := m.AddObserved(carrier.NewScalarReal(v), node.Spec{Family: node.Normal, P1: muRef, P2: tauRef}); err != nil {
			return fmt.Errorf("declare observation: %w", err)
		}
	}
	if err := m.Build(); err != nil {
		return fmt.Errorf("build model: %w", err)
	}

	smp := sampler.New(m,
		sampler.WithIterations(iterations),
		sampler.WithBurnIn(burnIn),
		sampler.WithAdapt(adapt),
		sampler.WithThin(thin),
		sampler.WithSeed(seed),
		sampler.WithLogger(logger),
	)

	ratio, err := smp.Run(context.Background())
	if err != nil {
		return fmt.Errorf("run sampler: %w", err)
	}

	hist := m.History(muRef)
	mean := 0.0
	for _, snap := range hist {
		mean += snap.Float()
	}
	if len(hist) > 0 {
		mean /= float64(len(hist))
	}

	fmt.Printf("retained samples: %d\n", len(hist))
	fmt.Printf("acceptance ratio: %.4f\n", ratio)
	fmt.Printf("posterior mean(mu): %.4f\n", mean)
	return nil
}
