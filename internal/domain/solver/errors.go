package solver

import "errors"

// Sentinel kinds for solver errors.
var (
	// ErrInsufficientData means a member point has no usable sample.
	ErrInsufficientData = errors.New("insufficient contact data")

	// ErrDegenerateGeometry means the usable anchors cannot fix a position.
	ErrDegenerateGeometry = errors.New("degenerate anchor geometry")

	// ErrOutOfBounds means no acceptable point exists on the allowed side of the body.
	ErrOutOfBounds = errors.New("solution out of bounds")

	// ErrUnknownSolver is returned by the factory for an unrecognized kind.
	ErrUnknownSolver = errors.New("unknown solver kind")
)
