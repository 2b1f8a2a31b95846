// Package sim provides the organ growth and branching engine.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - growth.go: growth laws mapping organ age to axial length and back
//   - params.go: random parameter sets and their per-organ realizations
//   - organ.go: the per-step state machine (elongation, node placement, lateral emergence)
//   - organism.go: parameter registry, base organs, random streams and deep copies
//
// # Architecture
//
// An Organism owns a tree of Organs. Each Organ holds its realized
// parameters, its polyline of Nodes and its children in creation order.
// Simulate(dt) advances the whole tree; organs created within a step are
// simulated for the remainder of that step, so the total length of the tree
// does not depend on the step size.
//
// Sub-packages build on the engine:
//   - sim/trace/: branching decision records
//   - sim/calibrate/: fitting growth law parameters to length observations
//   - sim/rsml/: turning measured root architectures into length tables
//   - sim/store/: SQLite snapshots of simulation results
//   - sim/plot/: terminal and PNG charts
//
// # Determinism
//
// All randomness flows through a PartitionedRNG keyed by the organism seed
// with one stream for parameter realization and one for branching decisions.
// Same seed, parameters and Simulate calls give bit-identical trees.
package sim
