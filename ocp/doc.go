// Package ocp holds the per-stage data of the hybrid optimal-control
// problem: dense KKT Jacobian/Hessian/residual blocks, Newton directions,
// and the evaluator contract through which external cost, dynamics and
// constraint code plugs into the Riccati sweeps.
//
// The package is deliberately dumb: it owns layout and lifetime (reserved
// arenas for impulse/aux/lift sub-stages, indexed by event ordinal with an
// active count bounded by the grid), never algorithms. Blocks are produced
// and owned by external evaluators; the recursion in package riccati reads
// them for one backward/forward pass and never mutates them except through
// the Evaluator condensation hooks.
//
// Block naming follows the usual multiple-shooting convention:
//
//	Fxx, Fxu — dynamics Jacobians (state-to-state, state-to-control)
//	Qxx, Qxu, Quu — Lagrangian Hessian blocks
//	Lx, Lu — Lagrangian gradient; Fx — state-equation residual
//	Hx, Hu, Qtt, H, Ft — switching-time sensitivity channel (only
//	  populated when the owning phase's duration is a free variable)
//	C, D, E — condensed switching (position-continuity) constraint of an
//	  impulse event, folded back onto the preceding stage
//
// Dimensional agreement between the grid structure and a KKT/direction set
// is a programming contract: mismatches panic eagerly rather than being
// deferred into the sweeps.
package ocp
