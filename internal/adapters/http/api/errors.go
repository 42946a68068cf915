package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrInvalidStrength  = errors.New("strength must be between 0 and 100")
	ErrInvalidIntensity = errors.New("intensity must be within 0..1")
	ErrMissingKey       = errors.New("missing key")
)
