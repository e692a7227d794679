// Package sto carries the switching-time-optimization bookkeeping that
// lives outside the Riccati sweep: the Hamiltonian-continuity KKT
// residual, the integration of event-time steps back into the contact
// sequence, and the interior-point treatment of minimum dwell-time
// constraints.
//
// 🕑 A free switching time is optimal when the phase Hamiltonian is
// continuous across its event; KKTError measures exactly that and is
// identically zero when no event time is free.
//
// Dwell-time constraints keep every phase duration above a configured
// minimum with a log-barrier slack per phase; step sizes follow the
// fraction-to-boundary rule used by the per-stage evaluators.
package sto
