package ocp

// Dimensions fixes the dense block sizes of one horizon problem.
type Dimensions struct {
	// Dimx is the state dimension (configuration + velocity deviation).
	Dimx int

	// Dimu is the control/acceleration dimension of a regular stage.
	Dimu int

	// MaxDimi is the maximum row count of an impulse switching constraint;
	// switching blocks are allocated at this size and sliced down to the
	// active row count per impulse.
	MaxDimi int
}

// Validate reports configuration errors eagerly.
func (d Dimensions) Validate() error {
	if d.Dimx <= 0 || d.Dimu <= 0 {
		return ErrNonPositiveDimension
	}
	if d.MaxDimi < 0 {
		return ErrNegativeReserve
	}

	return nil
}
