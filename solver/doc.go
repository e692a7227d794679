// Package solver is the driver loop tying the hybrid solver core
// together: discretize the horizon, linearize through an external
// Linearizer, run the backward and forward Riccati sweeps, expand the
// direction, aggregate step sizes and advance the iterate.
//
// The package deliberately owns no robot model, cost or constraint logic;
// those live behind the Linearizer and the per-stage evaluators. What it
// does own is the iteration state machine, the convergence measurement
// (stacked KKT residual plus the switching-time residual) and the
// iteration budget, reported through Result rather than an error.
package solver
