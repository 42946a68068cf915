// Package discovery resolves board addresses over mDNS and publishes them
// into the configuration store.
package discovery

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/okian/patpat/internal/timeutil"
	"github.com/okian/patpat/pkg/logger"
	"github.com/okian/patpat/pkg/metrics"
)

const (
	// DefaultInterval is the delay between lookups of one device.
	DefaultInterval = 5 * time.Second
	// DefaultHost is the name boards announce when none is configured.
	DefaultHost = "patpatpat"
)

// Writer is the part of the configuration store discovery needs.
type Writer interface {
	String(path string) string
	Set(ctx context.Context, path string, value any) error
}

// Target is one device to resolve.
type Target struct {
	// Key is the device configuration key.
	Key string
	// Host is the mDNS name, with or without ".local".
	Host string
	// Port is appended to the resolved IP.
	Port int
}

// AddressPath returns the configuration path discovery writes for key.
func AddressPath(key string) string {
	return "devices." + key + ".address"
}

// Service runs one lookup worker per target. It never touches device
// sessions; the engine rebinds on the store's change notification.
type Service struct {
	resolver Resolver
	store    Writer
	targets  []Target
	interval time.Duration
	timeout  time.Duration
	clock    timeutil.Clock
	logger   logger.Logger
}

// NewService creates a discovery service for targets.
func NewService(resolver Resolver, store Writer, targets []Target, opts ...Option) *Service {
	s := &Service{
		resolver: resolver,
		store:    store,
		targets:  append([]Target(nil), targets...),
		interval: DefaultInterval,
		clock:    timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timeout <= 0 || s.timeout > s.interval {
		s.timeout = s.interval
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("discovery")
	}
	return s
}

// Run starts the workers and blocks until ctx is done.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, t := range s.targets {
		wg.Add(1)
		go func(t Target) {
			defer wg.Done()
			s.worker(ctx, t)
		}(t)
	}
	wg.Wait()
}

func (s *Service) worker(ctx context.Context, t Target) {
	for {
		s.Lookup(ctx, t)
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.interval):
		}
	}
}

// Lookup resolves t once and writes the address when it changed. It reports
// whether the store was updated.
func (s *Service) Lookup(ctx context.Context, t Target) bool {
	qctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ip, err := s.resolver.Resolve(qctx, t.Host)
	if err != nil {
		if ctx.Err() == nil {
			metrics.RecordDiscoveryLookup(t.Key, "miss")
			s.logger.Debug(ctx, "device not found", logger.String("device", t.Key), logger.String("host", t.Host), logger.Error(err))
		}
		return false
	}

	addr := ip.String()
	if t.Port > 0 {
		addr = net.JoinHostPort(addr, strconv.Itoa(t.Port))
	}
	path := AddressPath(t.Key)
	if s.store.String(path) == addr {
		metrics.RecordDiscoveryLookup(t.Key, "unchanged")
		return false
	}
	if err := s.store.Set(ctx, path, addr); err != nil {
		metrics.RecordDiscoveryLookup(t.Key, "error")
		s.logger.Warn(ctx, "cannot store resolved address", logger.String("device", t.Key), logger.Error(err))
		return false
	}
	metrics.RecordDiscoveryLookup(t.Key, "resolved")
	metrics.RecordDiscoveryRebinding(t.Key)
	s.logger.Info(ctx, "device address resolved", logger.String("device", t.Key), logger.String("address", addr))
	return true
}
