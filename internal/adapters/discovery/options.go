package discovery

import (
	"time"

	"github.com/okian/patpat/internal/timeutil"
	"github.com/okian/patpat/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithInterval sets the delay between lookups of one device.
func WithInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithQueryTimeout bounds one lookup. It never exceeds the interval.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock sets the clock used between lookups.
func WithClock(c timeutil.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
