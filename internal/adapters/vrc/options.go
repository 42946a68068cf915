package vrc

import (
	"time"

	"github.com/okian/patpat/internal/timeutil"
	"github.com/okian/patpat/pkg/logger"
)

// Option applies a configuration option to a Receiver.
type Option func(*Receiver)

// WithActivityWindow sets how long the source counts as active.
func WithActivityWindow(d time.Duration) Option {
	return func(r *Receiver) {
		if d > 0 {
			r.window = d
		}
	}
}

// WithClock sets the clock used to stamp samples.
func WithClock(c timeutil.Clock) Option {
	return func(r *Receiver) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the receiver logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Receiver) {
		if l != nil {
			r.logger = l
		}
	}
}
