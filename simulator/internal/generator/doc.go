// Package generator produces synthetic vital signs for the simulator.
//
// Every generator owns its own *rand.Rand, so seeding one never perturbs
// another, and keeps its state per patient id.
package generator
