// Package hybrid builds the hybrid stage/phase/event structure of a
// finite-horizon optimal-control problem with discrete contact events.
//
// 🚀 What is a hybrid horizon?
//
//	A legged robot's horizon is not a uniform chain of N identical stages.
//	Every time a contact closes (an impulse event: instantaneous velocity
//	jump) or opens (a lift event: no state jump) the horizon gains extra
//	sub-stages, and the stages regroup into contact phases that share one
//	contact status. The Riccati sweep downstream needs O(1) answers to
//	questions like "which phase owns stage i?", "is stage i the last one
//	before an impulse?", "which impulse follows it?".
//
// ✨ Key pieces:
//   - ContactSequence — ordered record of contact-status segments and the
//     event times between them; classifies each transition as Impulse or
//     Lift from the status change itself.
//   - TimeDiscretization — turns a contact sequence plus an initial time
//     into the full grid: per-stage time/step/phase/flags, per-event
//     impulse/aux/lift grid points, and the O(1) query tables.
//
// Two discretization policies are supported:
//   - GridBased: event times snap into the fixed ideal grid, shortening
//     the local step of the stage just before the event.
//   - PhaseBased: the number of stages per phase is fixed between explicit
//     MeshRefinement calls; event times may move continuously within
//     their phase without changing the stage count (required for
//     switching-time optimization).
//
// Malformed sequences (events out of chronological order, two events
// colliding within tolerance, events outside the horizon, more events than
// the reserved capacity) mark the discretization not tractable;
// IsTractable reports false and downstream sweeps must refuse to run.
//
// Complexity: Discretize and MeshRefinement are O(N + E); every query is
// O(1) table lookup.
package hybrid
