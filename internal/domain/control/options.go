package control

import (
	"time"

	"github.com/okian/patpat/internal/timeutil"
	"github.com/okian/patpat/pkg/logger"
)

// Option applies a configuration option to the Loop.
type Option func(*Loop)

// WithTPS sets the tick rate.
func WithTPS(tps int) Option {
	return func(l *Loop) {
		if tps > 0 {
			l.tps = tps
		}
	}
}

// WithMaxAge sets how old a sample may be for its group to be solved.
func WithMaxAge(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.maxAge = d
		}
	}
}

// WithClock sets the clock driving ticks and freshness.
func WithClock(c timeutil.Clock) Option {
	return func(l *Loop) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithNotifier sets the receiver of state-change events.
func WithNotifier(n Notifier) Option {
	return func(l *Loop) {
		if n != nil {
			l.notifier = n
		}
	}
}

// WithTransmission sets the initial transmission state.
func WithTransmission(enabled bool) Option {
	return func(l *Loop) {
		l.transmit.Store(enabled)
	}
}

// WithLogger sets a custom logger for the loop.
func WithLogger(lg logger.Logger) Option {
	return func(l *Loop) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// WithIntensity sets the initial master intensity multiplier.
func WithIntensity(f float64) Option {
	return func(l *Loop) {
		l.SetIntensity(f)
	}
}
