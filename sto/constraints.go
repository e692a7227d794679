package sto

import (
	"math"

	"github.com/ruihuang1124/robotoc/hybrid"
	"github.com/ruihuang1124/robotoc/ocp"
)

const (
	defaultBarrier  = 1.0e-03
	defaultFraction = 0.995
)

// Option configures dwell-time Constraints.
type Option func(*Constraints)

// WithBarrier sets the log-barrier weight. Default 1e-3.
func WithBarrier(b float64) Option {
	return func(c *Constraints) { c.barrier = b }
}

// WithFractionToBoundary sets the fraction-to-boundary margin. Default 0.995.
func WithFractionToBoundary(tau float64) Option {
	return func(c *Constraints) { c.fraction = tau }
}

// Constraints keeps every contact-phase duration above a configured
// minimum dwell time through a per-phase log-barrier slack. Phases past
// the configured minimums are unconstrained.
type Constraints struct {
	minDwell []float64
	barrier  float64
	fraction float64

	n      int // active phase count of the last SetSlack
	slack  []float64
	dual   []float64
	dslack []float64
	ddual  []float64
}

// NewConstraints builds dwell-time constraints from the per-phase minimum
// durations. Configuration errors fail fast.
func NewConstraints(minDwell []float64, opts ...Option) (*Constraints, error) {
	c := &Constraints{
		minDwell: append([]float64(nil), minDwell...),
		barrier:  defaultBarrier,
		fraction: defaultFraction,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.barrier <= 0 {
		return nil, ErrNonPositiveBarrier
	}
	if c.fraction <= 0 || c.fraction >= 1 {
		return nil, ErrInvalidFraction
	}
	for _, m := range minDwell {
		if m < 0 {
			return nil, ErrNegativeDwellTime
		}
	}

	return c, nil
}

// minDwellOf returns the configured minimum for phase p, zero past the
// configured range.
func (c *Constraints) minDwellOf(p int) float64 {
	if p < len(c.minDwell) {
		return c.minDwell[p]
	}

	return 0
}

// durations returns the per-phase durations of the current grid.
func durations(grid *hybrid.TimeDiscretization) []float64 {
	n := grid.NumContactPhases()
	out := make([]float64, n)
	start := grid.T0()
	imp, lft := 0, 0
	for e := 0; e < grid.NumDiscreteEvents(); e++ {
		var te float64
		if grid.EventType(e) == hybrid.ImpulseEvent {
			te = grid.ImpulseTime(imp)
			imp++
		} else {
			te = grid.LiftTime(lft)
			lft++
		}
		out[e] = te - start
		start = te
	}
	out[n-1] = grid.Tf() - start

	return out
}

// SetSlack initializes the slack and dual variables from the current phase
// durations. Slacks are floored at the barrier weight so an initially
// violated dwell time still yields a usable interior point.
func (c *Constraints) SetSlack(grid *hybrid.TimeDiscretization) {
	dur := durations(grid)
	c.n = len(dur)
	c.slack = resize(c.slack, c.n)
	c.dual = resize(c.dual, c.n)
	c.dslack = resize(c.dslack, c.n)
	c.ddual = resize(c.ddual, c.n)
	for p, d := range dur {
		s := d - c.minDwellOf(p)
		if s < c.barrier {
			s = c.barrier
		}
		c.slack[p] = s
		c.dual[p] = c.barrier / s
	}
}

// ActivePhases returns the phase count of the last SetSlack. A caller
// re-discretizing between iterations compares it against the grid's phase
// count to detect a stale slack set.
func (c *Constraints) ActivePhases() int { return c.n }

// ComputeDirection derives the slack and dual Newton steps from the
// event-time direction: the slack of phase p moves with the difference of
// its bounding event-time steps, the dual follows the perturbed
// complementarity condition slack·dual = barrier.
func (c *Constraints) ComputeDirection(grid *hybrid.TimeDiscretization, d *ocp.Direction) {
	steps := eventTimeSteps(grid, d)
	for p := 0; p < c.n; p++ {
		ds := 0.0
		if p < len(steps) {
			ds += steps[p]
		}
		if p > 0 {
			ds -= steps[p-1]
		}
		c.dslack[p] = ds
		c.ddual[p] = (c.barrier-c.slack[p]*c.dual[p])/c.slack[p] - c.dual[p]*ds/c.slack[p]
	}
}

// MaxPrimalStepSize returns the largest step in (0, 1] keeping every slack
// strictly positive under the fraction-to-boundary rule.
func (c *Constraints) MaxPrimalStepSize() float64 {
	return c.maxStep(c.slack, c.dslack)
}

// MaxDualStepSize is the dual counterpart of MaxPrimalStepSize.
func (c *Constraints) MaxDualStepSize() float64 {
	return c.maxStep(c.dual, c.ddual)
}

func (c *Constraints) maxStep(x, dx []float64) float64 {
	step := 1.0
	for p := 0; p < c.n; p++ {
		if dx[p] >= 0 {
			continue
		}
		if s := -c.fraction * x[p] / dx[p]; s < step {
			step = s
		}
	}

	return step
}

// UpdateSlack advances the slacks along their direction.
func (c *Constraints) UpdateSlack(step float64) {
	for p := 0; p < c.n; p++ {
		c.slack[p] += step * c.dslack[p]
	}
}

// UpdateDual advances the duals along their direction.
func (c *Constraints) UpdateDual(step float64) {
	for p := 0; p < c.n; p++ {
		c.dual[p] += step * c.ddual[p]
	}
}

// KKTError returns the norm of the complementarity residuals
// slack·dual − barrier over the active phases.
func (c *Constraints) KKTError() float64 {
	sq := 0.0
	for p := 0; p < c.n; p++ {
		r := c.slack[p]*c.dual[p] - c.barrier
		sq += r * r
	}

	return math.Sqrt(sq)
}

// Barrier returns the current log-barrier weight.
func (c *Constraints) Barrier() float64 { return c.barrier }

// SetBarrier updates the log-barrier weight along the interior-point
// homotopy. Panics on a non-positive weight (programmer error).
func (c *Constraints) SetBarrier(b float64) {
	if b <= 0 {
		panic("sto: barrier parameter must be positive")
	}
	c.barrier = b
}

func resize(xs []float64, n int) []float64 {
	if cap(xs) < n {
		return make([]float64, n)
	}

	return xs[:n]
}
