package model

import "errors"

var (
	// ErrTopologyMismatch means configuration and hardware disagree on the
	// number or layout of motors.
	ErrTopologyMismatch = errors.New("topology mismatch")

	// ErrUnknownTransport means a device names a connection type no adapter serves.
	ErrUnknownTransport = errors.New("unknown transport kind")
)
