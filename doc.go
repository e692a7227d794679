// Package robotoc is a structured solver core for finite-horizon optimal
// control of articulated rigid-body systems whose contact configuration
// changes over time — legged robots making and breaking ground contact,
// manipulators touching and leaving surfaces.
//
// 🚀 What does it solve?
//
//	A multiple-shooting discretization of a hybrid optimal-control problem
//	yields a large, sparse, time-indexed KKT system whose structure is not
//	a uniform chain: impulse events (instantaneous velocity jumps when a
//	contact closes) and lift events (a contact opening) splice extra
//	sub-stages into the horizon. This module turns that system into an
//	efficiently computable Newton step via a hybrid Riccati recursion, and
//	can optimize the timing of the contact events themselves
//	(switching-time optimization, STO).
//
// ✨ What it provides:
//   - hybrid/  — contact sequences and the hybrid time discretization
//     (grid-based and phase-based, with mesh refinement)
//   - ocp/     — per-stage KKT blocks, Newton directions, and the
//     evaluator contract for external cost/dynamics/constraint code
//   - riccati/ — the backward factorization sweep, LQR/STO feedback
//     policies, the forward sweep, parallel direction expansion, and
//     fraction-to-boundary step-size aggregation
//   - sto/     — switching-time-optimization bookkeeping: Hamiltonian
//     continuity residual, dwell-time barriers, event-time integration
//   - solver/  — a thin Newton driver loop over external linearization
//     and line-search collaborators
//
// What it deliberately does NOT do: rigid-body kinematics/dynamics
// evaluation, cost and constraint differentiation, model loading, and the
// line-search merit logic are external collaborators consumed through
// small interfaces.
//
// Dive into the per-package doc.go files for algorithms, contracts and
// complexity notes.
package robotoc
