// Package device tracks the liveness and motor outputs of one controller board.
package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/patpat/internal/domain/model"
	"github.com/okian/patpat/internal/domain/types"
	"github.com/okian/patpat/internal/timeutil"
	"github.com/okian/patpat/pkg/logger"
	"github.com/okian/patpat/pkg/metrics"
)

// Defaults for a session.
const (
	DefaultHeartbeatTimeout = 2 * time.Second
	DefaultSendTimeout      = 50 * time.Millisecond
	DefaultPollInterval     = 10 * time.Millisecond
)

// Adapter moves frames between a session and the wire.
type Adapter interface {
	// SendFrame transmits one motor frame. It must honor ctx's deadline.
	SendFrame(ctx context.Context, values []uint8) error

	// TryReceive returns the next pending inbound message, or nil when none is pending.
	TryReceive() (model.Message, error)

	Close() error
}

// Binder is implemented by adapters whose remote address is resolved at runtime.
type Binder interface {
	Bind(address string) error
	Bound() bool
}

// DiscoveryRequester is implemented by adapters that can ask a board for its topology.
type DiscoveryRequester interface {
	RequestDiscovery(ctx context.Context) error
}

// Notifier receives state-change events.
type Notifier interface {
	Notify(ctx context.Context, e model.Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, model.Event) {}

// Session owns the runtime state of one hardware device.
//
// The receive path writes the heartbeat fields, the control loop writes the
// output buffer. The connection state is derived from both and guarded by mu.
// transition is held from a state change until its event is queued, so
// observers see connectivity events in the order the state changed.
type Session struct {
	transition sync.Mutex
	mu         sync.Mutex
	dev        model.HardwareDevice
	outputs    []uint8
	lastBeat   time.Time
	telemetry  model.DeviceTelemetry
	state      model.ConnectionState
	topologyOK bool

	adapter     Adapter
	timeout     time.Duration
	sendTimeout time.Duration
	pollEvery   time.Duration
	clock       timeutil.Clock
	notifier    Notifier
	logger      logger.Logger
}

// NewSession creates the session for dev. A nil adapter makes Flush a no-op.
func NewSession(dev model.HardwareDevice, adapter Adapter, opts ...Option) (*Session, error) {
	if dev.MotorCount <= 0 {
		return nil, fmt.Errorf("%w: device %q has %d motors", model.ErrTopologyMismatch, dev.Key, dev.MotorCount)
	}
	dev.MAC = model.NormalizeMAC(dev.MAC)
	s := &Session{
		dev:         dev,
		outputs:     make([]uint8, dev.MotorCount),
		state:       model.StateUnknown,
		adapter:     adapter,
		timeout:     DefaultHeartbeatTimeout,
		sendTimeout: DefaultSendTimeout,
		pollEvery:   DefaultPollInterval,
		clock:       timeutil.RealClock{},
		notifier:    nopNotifier{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("device")
	}
	s.logger = s.logger.Named(dev.Key)
	return s, nil
}

// Key returns the configuration key of the device.
func (s *Session) Key() string { return s.dev.Key }

// MotorCount returns the number of output channels.
func (s *Session) MotorCount() int { return s.dev.MotorCount }

// State returns the current connection state.
func (s *Session) State() model.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RecordHeartbeat accepts a heartbeat from the configured board. Heartbeats
// from any other mac are logged and change nothing.
func (s *Session) RecordHeartbeat(ctx context.Context, msg model.HeartbeatMessage, now time.Time) error {
	if !s.macMatches(msg.MAC) {
		metrics.RecordHeartbeat(s.dev.Key, false)
		s.logger.Warn(ctx, "ignoring heartbeat from unexpected mac",
			logger.String("mac", msg.MAC),
			logger.String("expected", s.dev.MAC),
		)
		return fmt.Errorf("%w: got %s", ErrMACMismatch, msg.MAC)
	}
	metrics.RecordHeartbeat(s.dev.Key, true)
	metrics.UpdateDeviceTelemetry(s.dev.Key, msg.BatteryVoltage, msg.RSSI)

	s.transition.Lock()
	s.mu.Lock()
	s.lastBeat = now
	s.telemetry = model.DeviceTelemetry{
		UptimeSeconds:  msg.UptimeSeconds,
		BatteryVoltage: msg.BatteryVoltage,
		RSSI:           msg.RSSI,
		ReceivedAt:     now,
	}
	telemetry := s.telemetry
	changed := s.state != model.StateConnected
	s.state = model.StateConnected
	s.mu.Unlock()

	if changed {
		s.emitState(ctx, model.StateConnected, now)
	}
	s.transition.Unlock()

	s.notifier.Notify(ctx, model.Event{
		ID:        uuid.NewString(),
		Kind:      model.EventDeviceTelemetry,
		Key:       s.dev.Key,
		Telemetry: telemetry,
		At:        now,
	})
	return nil
}

// RecordDiscovery checks the board's reported topology against configuration.
func (s *Session) RecordDiscovery(ctx context.Context, msg model.DiscoveryResponseMessage) error {
	if !s.macMatches(msg.MAC) {
		s.logger.Warn(ctx, "ignoring discovery response from unexpected mac",
			logger.String("mac", msg.MAC),
			logger.String("expected", s.dev.MAC),
		)
		return fmt.Errorf("%w: got %s", ErrMACMismatch, msg.MAC)
	}
	if msg.NumMotors != s.dev.MotorCount {
		s.mu.Lock()
		s.topologyOK = false
		s.mu.Unlock()
		s.logger.Error(ctx, "board reports a different motor count",
			logger.Int("reported", msg.NumMotors),
			logger.Int("configured", s.dev.MotorCount),
		)
		return fmt.Errorf("%w: board reports %d motors, configured %d", model.ErrTopologyMismatch, msg.NumMotors, s.dev.MotorCount)
	}
	s.mu.Lock()
	s.topologyOK = true
	s.mu.Unlock()
	s.logger.Debug(ctx, "topology confirmed", logger.Int("motors", msg.NumMotors))
	return nil
}

// SetOutputs overwrites the output buffer.
func (s *Session) SetOutputs(values []uint8) error {
	if len(values) != s.dev.MotorCount {
		return fmt.Errorf("%w: %d values for %d motors", model.ErrTopologyMismatch, len(values), s.dev.MotorCount)
	}
	s.mu.Lock()
	copy(s.outputs, values)
	s.mu.Unlock()
	return nil
}

// Outputs returns a copy of the output buffer.
func (s *Session) Outputs() []uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint8, len(s.outputs))
	copy(out, s.outputs)
	return out
}

// Bound reports whether Flush would reach the wire.
func (s *Session) Bound() bool {
	if s.adapter == nil {
		return false
	}
	if b, ok := s.adapter.(Binder); ok {
		return b.Bound()
	}
	return true
}

// Bind points the adapter at a new address.
func (s *Session) Bind(ctx context.Context, address string) error {
	b, ok := s.adapter.(Binder)
	if !ok {
		return fmt.Errorf("device %q: transport %s cannot be rebound", s.dev.Key, s.dev.Transport)
	}
	if err := b.Bind(address); err != nil {
		return err
	}
	s.mu.Lock()
	s.dev.Address = address
	s.mu.Unlock()
	s.logger.Info(ctx, "bound to address", logger.String("address", address))
	if r, ok := s.adapter.(DiscoveryRequester); ok {
		if err := r.RequestDiscovery(ctx); err != nil {
			s.logger.Debug(ctx, "discovery request failed", logger.Error(err))
		}
	}
	return nil
}

// Flush sends the output buffer. It does nothing while no address is bound.
func (s *Session) Flush(ctx context.Context) error {
	if !s.Bound() {
		return nil
	}
	frame := s.Outputs()

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	if err := s.adapter.SendFrame(sendCtx, frame); err != nil {
		metrics.RecordFrameError(s.dev.Key)
		metrics.RecordErrorByComponent("device", "send")
		return fmt.Errorf("%w: device %q: %w", ErrSendFailed, s.dev.Key, err)
	}
	metrics.RecordFrameSent(s.dev.Key)
	return nil
}

// UpdateConnection marks the device disconnected once no heartbeat arrived
// for longer than the heartbeat timeout.
func (s *Session) UpdateConnection(ctx context.Context, now time.Time) model.ConnectionState {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	if s.state != model.StateConnected || now.Sub(s.lastBeat) <= s.timeout {
		state := s.state
		s.mu.Unlock()
		return state
	}
	s.state = model.StateDisconnected
	s.mu.Unlock()

	s.logger.Warn(ctx, "heartbeat timed out", logger.Duration("timeout", s.timeout))
	s.emitState(ctx, model.StateDisconnected, now)
	return model.StateDisconnected
}

// Pump drains inbound messages until ctx is done.
func (s *Session) Pump(ctx context.Context) {
	if s.adapter == nil {
		return
	}
	ticker := s.clock.NewTicker(s.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.drain(ctx)
		}
	}
}

func (s *Session) drain(ctx context.Context) {
	for {
		msg, err := s.adapter.TryReceive()
		if err != nil {
			s.logger.Debug(ctx, "dropping inbound frame", logger.Error(err))
			return
		}
		if msg == nil {
			return
		}
		s.Handle(ctx, msg)
	}
}

// Handle dispatches one inbound message.
func (s *Session) Handle(ctx context.Context, msg model.Message) {
	switch m := msg.(type) {
	case model.HeartbeatMessage:
		_ = s.RecordHeartbeat(ctx, m, s.clock.Now())
	case model.DiscoveryResponseMessage:
		_ = s.RecordDiscovery(ctx, m)
	}
}

// Snapshot returns the externally visible state.
func (s *Session) Snapshot() types.DeviceStatus {
	bound := s.Bound()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint8, len(s.outputs))
	copy(out, s.outputs)
	return types.DeviceStatus{
		Key:            s.dev.Key,
		Name:           s.dev.Name,
		Transport:      s.dev.Transport.String(),
		Address:        s.dev.Address,
		MAC:            s.dev.MAC,
		MotorCount:     s.dev.MotorCount,
		State:          s.state.String(),
		Bound:          bound,
		LastHeartbeat:  s.lastBeat,
		UptimeSeconds:  s.telemetry.UptimeSeconds,
		BatteryVoltage: s.telemetry.BatteryVoltage,
		RSSI:           s.telemetry.RSSI,
		Outputs:        out,
	}
}

// Close releases the adapter.
func (s *Session) Close() error {
	if s.adapter == nil {
		return nil
	}
	return s.adapter.Close()
}

func (s *Session) macMatches(mac string) bool {
	if s.dev.MAC == "" {
		return true
	}
	return model.NormalizeMAC(mac) == s.dev.MAC
}

func (s *Session) emitState(ctx context.Context, state model.ConnectionState, now time.Time) {
	metrics.UpdateDeviceConnected(s.dev.Key, state == model.StateConnected)
	s.logger.Info(ctx, "connection state changed", logger.String("state", state.String()))
	s.notifier.Notify(ctx, model.Event{
		ID:    uuid.NewString(),
		Kind:  model.EventDeviceConnectivity,
		Key:   s.dev.Key,
		State: state,
		At:    now,
	})
}
