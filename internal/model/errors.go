package model

import "github.com/pkg/errors"

var (
	// ErrDimensionMismatch reports a batch whose shapes or labels do not
	// fit each other or the model. No network has been run when it is
	// returned.
	ErrDimensionMismatch = errors.New("model: dimension mismatch")

	// ErrNoInput reports an optimisation step without a bound batch.
	ErrNoInput = errors.New("model: no input bound")

	// ErrNonFinite reports a NaN or infinite loss or gradient. The phase
	// that detected it has not changed any parameter.
	ErrNonFinite = errors.New("model: non-finite value")

	// ErrComputation reports a failure inside a network or kernel.
	ErrComputation = errors.New("model: computation failed")
)
