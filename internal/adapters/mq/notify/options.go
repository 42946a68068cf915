package notify

import (
	"github.com/okian/patpat/pkg/logger"
)

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithName sets the dispatcher name for logging.
func WithName(name string) Option {
	return func(d *Dispatcher) {
		if name != "" {
			d.name = name
		}
	}
}

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithReserve keeps the last n queue slots for non-telemetry events.
// The default is a quarter of the queue capacity; zero disables shedding.
func WithReserve(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.reserve = n
		}
	}
}
