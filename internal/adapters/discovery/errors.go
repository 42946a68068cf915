package discovery

import "errors"

// Sentinel kinds for discovery errors.
var (
	ErrNoAnswer = errors.New("no mdns answer")
)
