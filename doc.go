// Package mhgraph runs Bayesian inference over a user-declared directed
// graph of random variables using a component-wise Metropolis-Hastings
// Markov-chain Monte Carlo sampler.
//
// A model is a DAG of three kinds of nodes:
//
//	Observed      — fixed data, contributes to the joint log-density
//	Stochastic    — unobserved parameters with a tunable proposal scale
//	Deterministic — pure functions recomputed from their parents
//
// Subpackages:
//
//	carrier/ — scalar/vector/matrix value storage, tagged by shape
//	logd/    — log-density formulas for the supported distribution family
//	node/    — the tagged-variant graph vertex and its proposal kernel
//	dagutil/ — dependency-order validation for the node graph
//	model/   — the node table, update closure and history buffers
//	sampler/ — the Metropolis-Hastings loop, adaptation and thinning
//	mhlog/   — structured logging used by sampler
//
// See SPEC_FULL.md for the full design and DESIGN.md for how each package
// is grounded.
package mhgraph
