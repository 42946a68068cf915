package device

import "errors"

// Sentinel kinds for device session errors.
var (
	// ErrMACMismatch means an inbound message came from another board.
	ErrMACMismatch = errors.New("mac does not match configured device")

	// ErrSendFailed wraps transport errors returned by Flush.
	ErrSendFailed = errors.New("send frame failed")
)
