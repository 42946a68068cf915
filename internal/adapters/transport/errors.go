package transport

import (
	"errors"

	"github.com/okian/patpat/internal/domain/model"
)

// Sentinel kinds for transport errors.
var (
	// ErrUnknownTransport is returned by the factory for an unrecognized kind.
	// It is the model sentinel, so parse and build failures match alike.
	ErrUnknownTransport = model.ErrUnknownTransport

	// ErrMalformedFrame means an inbound frame could not be decoded.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnrecognizedAddress means a well-formed OSC message had an address nobody handles.
	ErrUnrecognizedAddress = errors.New("unrecognized osc address")

	// ErrNotBound means the adapter has no remote address yet.
	ErrNotBound = errors.New("adapter not bound")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("adapter closed")

	// ErrPortUnavailable means the serial port is not open and may not be reopened yet.
	ErrPortUnavailable = errors.New("serial port unavailable")
)
