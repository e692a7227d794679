// Package riccati implements the hybrid Riccati recursion: the structured
// backward/forward sweep that turns the sparse, time-indexed KKT system of
// a hybrid optimal-control problem into a Newton step.
//
// 🚀 Why "hybrid"?
//
//	The horizon is not a uniform chain. Impulse events splice two extra
//	sub-stages (the instantaneous impulse stage and the aux stage opening
//	the new phase) into the backward sweep, lift events one; the sweep
//	must chain two or three block eliminations at those points and, for
//	impulses with a preceding regular stage, fold the position-continuity
//	switching constraint one stage further back. When switching-time
//	optimization (STO) is enabled for a phase, every elimination carries
//	an extra sensitivity row/column for the event times bounding it.
//
// ✨ Structure:
//   - SplitRiccatiFactorization — per sub-stage value-Hessian P, value
//     gradient S, and the STO sensitivity channels (Psi/Phi vectors,
//     Xi/Chi/Rho curvatures, Eta/Iota gradients).
//   - LQRPolicy / STOPolicy — affine feedback of control on state and of
//     switching times on state.
//   - Factorizer — the block-elimination kernels, scratch-buffered so a
//     sweep allocates nothing.
//   - Recursion — the driver: Backward (N→0 with the three-way stage
//     dispatch), Forward (0→N costate/state chain plus event-time
//     directions), ComputeDirection (parallel per-sub-stage expansion and
//     fraction-to-boundary step-size collection), and the min-aggregated
//     MaxPrimalStepSize/MaxDualStepSize.
//
// Numerical degeneracy (a control Hessian or switching Schur complement
// that is not positive definite) surfaces as ErrSingularBlock: the
// current Newton iteration must be abandoned, but the buffers stay
// consistent and a damped retry is safe.
//
// Complexity: one backward+forward pass is O(Nall · (dimx + dimu)^3) with
// Nall = N + 1 + 2·#impulse + #lift; the direction expansion is
// parallelized over a bounded worker pool.
package riccati
