package service

import (
	"github.com/okian/patpat/internal/adapters/discovery"
	"github.com/okian/patpat/internal/adapters/transport"
	"github.com/okian/patpat/internal/timeutil"
	"github.com/okian/patpat/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock shared by every component.
func WithClock(c timeutil.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithResolver replaces the mDNS resolver used by discovery.
func WithResolver(r discovery.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithPortOpener replaces how serial device paths are opened.
func WithPortOpener(open transport.PortOpener) Option {
	return func(s *Service) {
		if open != nil {
			s.opener = open
		}
	}
}
