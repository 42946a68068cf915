// Package service builds the haptic engine from configuration, runs its
// goroutines and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/okian/patpat/internal/adapters/discovery"
	"github.com/okian/patpat/internal/adapters/mq/notify"
	eventqueue "github.com/okian/patpat/internal/adapters/mq/queue"
	"github.com/okian/patpat/internal/adapters/repository"
	"github.com/okian/patpat/internal/adapters/transport"
	"github.com/okian/patpat/internal/adapters/vrc"
	"github.com/okian/patpat/internal/config"
	"github.com/okian/patpat/internal/domain/contact"
	"github.com/okian/patpat/internal/domain/control"
	"github.com/okian/patpat/internal/domain/device"
	"github.com/okian/patpat/internal/domain/model"
	"github.com/okian/patpat/internal/timeutil"
	"github.com/okian/patpat/pkg/logger"
)

// shutdownTimeout bounds how long Stop waits for pending notifications.
const shutdownTimeout = 5 * time.Second

// Service owns every engine component.
type Service struct {
	mu sync.RWMutex

	conf     *config.Store
	clock    timeutil.Clock
	resolver discovery.Resolver
	opener   transport.PortOpener
	logger   logger.Logger

	// Built by Start.
	hub        *transport.OscHub
	contacts   contact.Store
	receiver   *vrc.Receiver
	sessions   []*device.Session
	byKey      map[string]*device.Session
	groups     []*control.Group
	loop       *control.Loop
	queue      *eventqueue.InMemoryQueue
	dispatcher *notify.Dispatcher
	status     *repository.StatusStore
	targets    []discovery.Target
	ownsRes    bool

	// State
	started  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	listenID string
}

// New constructs a Service over the runtime configuration store. Nothing
// is built until Start.
func New(conf *config.Store, opts ...Option) *Service {
	s := &Service{
		conf:  conf,
		clock: timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the engine from the current configuration and starts every
// goroutine. Startup aborts on invalid configuration.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	cfg, err := s.conf.Config(ctx)
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "starting haptic engine...")
	if err := s.build(ctx, cfg); err != nil {
		s.release(ctx)
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.status = repository.NewStatusStore(runCtx, s, repository.WithClock(s.clock))
	s.dispatcher.Subscribe(s.status.Apply)
	s.dispatcher.Subscribe(s.logEvent)
	s.listenID = s.conf.OnChange("devices", s.onDeviceChange)

	// Notifications drain after the producers stop, so the dispatcher
	// outlives runCtx and is stopped by Shutdown.
	go s.dispatcher.Run(context.WithoutCancel(runCtx))
	s.goRun(func() {
		if err := s.hub.Serve(runCtx); err != nil {
			s.logger.Error(runCtx, "osc socket stopped", logger.Error(err))
		}
	})
	for _, sess := range s.sessions {
		s.goRun(func() { sess.Pump(runCtx) })
	}
	s.goRun(func() { s.receiver.Watch(runCtx) })
	s.goRun(func() { s.loop.Run(runCtx) })
	s.startDiscovery(runCtx, cfg)

	s.started = true
	s.logger.Info(ctx, "haptic engine started",
		logger.String("osc", s.hub.LocalAddr().String()),
		logger.Int("devices", len(s.sessions)),
		logger.Int("groups", len(s.groups)),
		logger.Int("points", s.contacts.Size()),
		logger.Int("tps", cfg.Program.TPS),
		logger.Bool("transmission", cfg.Program.Transmit),
	)
	return nil
}

func (s *Service) goRun(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Service) startDiscovery(ctx context.Context, cfg *config.Config) {
	if len(s.targets) == 0 {
		return
	}
	if s.resolver == nil {
		r, err := discovery.NewMDNSResolver()
		if err != nil {
			s.logger.Warn(ctx, "mdns unavailable; discovery disabled", logger.Error(err))
			return
		}
		s.resolver = r
		s.ownsRes = true
	}
	svc := discovery.NewService(s.resolver, s.conf, s.targets,
		discovery.WithInterval(cfg.Program.DiscoveryInterval),
		discovery.WithClock(s.clock),
		discovery.WithLogger(s.logger.Named("discovery")),
	)
	s.goRun(func() { svc.Run(ctx) })
}

// onDeviceChange rebinds a session when its address changes at runtime,
// typically after discovery resolved a new IP.
func (s *Service) onDeviceChange(ctx context.Context, path string, value any) {
	key, ok := addressKey(path)
	if !ok {
		return
	}
	sess, ok := s.byKey[key]
	if !ok {
		s.logger.Debug(ctx, "address change for unknown device", logger.String("device", key))
		return
	}
	address, _ := value.(string)
	if address == "" {
		return
	}
	if err := sess.Bind(ctx, address); err != nil {
		s.logger.Warn(ctx, "rebind failed",
			logger.String("device", key),
			logger.String("address", address),
			logger.Error(err),
		)
	}
}

// addressKey extracts <key> from "devices.<key>.address".
func addressKey(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "devices.")
	if !ok {
		return "", false
	}
	key, ok := strings.CutSuffix(rest, ".address")
	if !ok || key == "" || strings.Contains(key, ".") {
		return "", false
	}
	return key, true
}

func (s *Service) logEvent(ctx context.Context, e model.Event) { //nolint:gocritic // hugeParam
	switch e.Kind {
	case model.EventDeviceConnectivity:
		s.logger.Info(ctx, "device connectivity changed", logger.String("device", e.Key), logger.String("state", e.State.String()))
	case model.EventGroupFreshness:
		s.logger.Debug(ctx, "group freshness changed", logger.String("group", e.Key), logger.Bool("fresh", e.Fresh))
	case model.EventTransmission:
		s.logger.Info(ctx, "transmission changed", logger.Bool("enabled", e.Enabled))
	}
}

// Stop cancels every goroutine, waits for them, delivers pending
// notifications and closes the adapters.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping haptic engine...")

	s.conf.Unsubscribe(s.listenID)
	s.cancel()
	s.wg.Wait()

	// Every producer has returned; deliver what they queued.
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.dispatcher.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "notification shutdown", logger.Error(err))
	}
	s.release(ctx)

	s.started = false
	s.logger.Info(ctx, "haptic engine stopped")
}

// release closes whatever build and Start created.
func (s *Service) release(ctx context.Context) {
	if s.status != nil {
		_ = s.status.Close()
	}
	for _, sess := range s.sessions {
		if err := sess.Close(); err != nil {
			s.logger.Debug(ctx, "adapter close", logger.String("device", sess.Key()), logger.Error(err))
		}
	}
	if s.hub != nil {
		_ = s.hub.Close()
	}
	if s.queue != nil && !s.queue.IsClosed() {
		_ = s.queue.Close()
	}
	if s.ownsRes {
		if c, ok := s.resolver.(interface{ Close() error }); ok {
			_ = c.Close()
		}
		s.resolver = nil
		s.ownsRes = false
	}
}

// OSCAddr returns the bound address of the shared OSC socket.
func (s *Service) OSCAddr() (net.Addr, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.hub.LocalAddr(), nil
}

// Session returns the session for a device key.
func (s *Service) Session(key string) (*device.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byKey[key]
	if !ok {
		return nil, fmt.Errorf("device %q: %w", key, repository.ErrNotFound)
	}
	return sess, nil
}
