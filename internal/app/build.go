package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/okian/patpat/internal/adapters/discovery"
	"github.com/okian/patpat/internal/adapters/mq/notify"
	eventqueue "github.com/okian/patpat/internal/adapters/mq/queue"
	"github.com/okian/patpat/internal/adapters/transport"
	"github.com/okian/patpat/internal/adapters/vrc"
	"github.com/okian/patpat/internal/config"
	"github.com/okian/patpat/internal/domain/contact"
	"github.com/okian/patpat/internal/domain/control"
	"github.com/okian/patpat/internal/domain/device"
	"github.com/okian/patpat/internal/domain/model"
	"github.com/okian/patpat/internal/domain/solver"
	"github.com/okian/patpat/pkg/logger"
)

// build creates every component from cfg. Nothing is started.
func (s *Service) build(ctx context.Context, cfg *config.Config) error {
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(cfg.Program.EventQueueSize))
	s.dispatcher = notify.NewDispatcher(s.queue,
		notify.WithName("engine"),
		notify.WithLogger(s.logger.Named("notify")),
	)

	hub, err := transport.ListenOscHub(cfg.Program.OSCListen, transport.WithHubLogger(s.logger.Named("osc")))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuild, err)
	}
	s.hub = hub

	if err := s.buildDevices(ctx, cfg); err != nil {
		return err
	}

	bindings, err := s.buildGroups(cfg)
	if err != nil {
		return err
	}

	s.receiver = vrc.NewReceiver(s.contacts, bindings,
		vrc.WithActivityWindow(cfg.Program.ReceiverTimeout),
		vrc.WithClock(s.clock),
		vrc.WithLogger(s.logger.Named("vrc")),
	)
	s.hub.Handle(vrc.AvatarPrefix, s.receiver.Handle)

	devices := make([]control.Device, len(s.sessions))
	for i, sess := range s.sessions {
		devices[i] = sess
	}
	s.loop, err = control.NewLoop(s.contacts, s.groups, devices,
		control.WithTPS(cfg.Program.TPS),
		control.WithMaxAge(cfg.Program.MaxAge),
		control.WithClock(s.clock),
		control.WithNotifier(s.dispatcher),
		control.WithTransmission(cfg.Program.Transmit),
		control.WithIntensity(cfg.Program.Intensity),
		control.WithLogger(s.logger.Named("control")),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuild, err)
	}

	s.targets = discoveryTargets(cfg)
	return nil
}

// buildDevices creates one session per configured device, ordered by key.
func (s *Service) buildDevices(ctx context.Context, cfg *config.Config) error {
	serialOpts := []transport.SerialOption{
		transport.WithSerialClock(s.clock),
		transport.WithSerialLogger(s.logger.Named("serial")),
	}
	if s.opener != nil {
		serialOpts = append(serialOpts, transport.WithOpener(s.opener))
	}
	factory := transport.NewFactory(s.hub, serialOpts...)

	s.sessions = nil
	s.byKey = make(map[string]*device.Session, len(cfg.Devices))
	for id, key := range slices.Sorted(maps.Keys(cfg.Devices)) {
		dc := cfg.Devices[key]
		kind, err := model.ParseTransportKind(dc.Transport)
		if err != nil {
			return fmt.Errorf("%w: device %q: %w", ErrBuild, key, err)
		}
		dev := model.HardwareDevice{
			ID:         id,
			Key:        key,
			Name:       dc.Name,
			Transport:  kind,
			Address:    dc.Address,
			MAC:        dc.MAC,
			MotorCount: dc.MotorCount,
		}
		adapter, err := factory.New(dev, transport.WithPortOptions(transport.PortOptions{
			BaudRate: dc.Serial.BaudRate,
			DataBits: dc.Serial.DataBits,
			StopBits: dc.Serial.StopBits,
			Parity:   dc.Serial.Parity,
		}))
		if err != nil {
			return fmt.Errorf("%w: device %q: %w", ErrBuild, key, err)
		}
		sess, err := device.NewSession(dev, adapter,
			device.WithHeartbeatTimeout(cfg.Program.HeartbeatTimeout),
			device.WithSendTimeout(cfg.Program.SendTimeout),
			device.WithClock(s.clock),
			device.WithNotifier(s.dispatcher),
			device.WithLogger(s.logger.Named("device")),
		)
		if err != nil {
			_ = adapter.Close()
			return fmt.Errorf("%w: %w", ErrBuild, err)
		}
		s.sessions = append(s.sessions, sess)
		s.byKey[key] = sess
		s.logger.Debug(ctx, "device configured",
			logger.String("device", key),
			logger.String("transport", kind.String()),
			logger.String("address", dc.Address),
		)
	}
	return nil
}

// buildGroups creates the contact groups and the sample store. Point ids
// are assigned in configuration order; the returned map binds each avatar
// parameter to the points it feeds.
func (s *Service) buildGroups(cfg *config.Config) (map[string][]int, error) {
	bindings := make(map[string][]int)
	next := 0
	s.groups = make([]*control.Group, 0, len(cfg.Groups))
	for _, gc := range cfg.Groups {
		kind, err := solver.ParseKind(gc.Solver)
		if err != nil {
			return nil, fmt.Errorf("%w: group %q: %w", ErrBuild, gc.Key, err)
		}
		sv, err := solver.New(kind)
		if err != nil {
			return nil, fmt.Errorf("%w: group %q: %w", ErrBuild, gc.Key, err)
		}
		mapping, err := solver.ParseMapping(gc.Mapping)
		if err != nil {
			return nil, fmt.Errorf("%w: group %q: %w", ErrBuild, gc.Key, err)
		}
		aggregate, err := solver.ParseAggregate(gc.Aggregate)
		if err != nil {
			return nil, fmt.Errorf("%w: group %q: %w", ErrBuild, gc.Key, err)
		}

		anchors := make([]model.AnchorPoint, len(gc.Anchors))
		for i, a := range gc.Anchors {
			anchors[i] = model.AnchorPoint{
				PointID:    next,
				Name:       a.Name,
				ReceiverID: a.Receiver,
				Position:   a.Position,
				Radius:     a.Radius,
			}
			bindings[a.Receiver] = append(bindings[a.Receiver], next)
			next++
		}
		motors := make([]model.MotorSpec, len(gc.Motors))
		for i, m := range gc.Motors {
			name := m.Name
			if name == "" {
				name = m.Device + "/" + strconv.Itoa(m.Channel)
			}
			motors[i] = model.MotorSpec{
				Name:      name,
				DeviceKey: m.Device,
				Channel:   m.Channel,
				Position:  m.Position,
				Radius:    m.Radius,
				MinPWM:    uint8(m.MinPWM),
				MaxPWM:    uint8(m.MaxPWM),
			}
		}

		g, err := control.NewGroup(gc.Key, gc.Name, anchors, motors, sv, solver.Options{
			UpperHemisphereOnly: gc.UpperHemisphereOnly,
			BoundsTolerance:     gc.BoundsTolerance,
			ContactOnly:         gc.ContactOnly,
			Mapping:             mapping,
			Aggregate:           aggregate,
		}, gc.StrengthOrDefault())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBuild, err)
		}
		s.groups = append(s.groups, g)
	}
	s.contacts = contact.NewStore(next, contact.WithLogger(s.logger.Named("contact")))
	return bindings, nil
}

// discoveryTargets lists the OSC devices with an mDNS name. Serial devices
// are addressed by path and never resolved.
func discoveryTargets(cfg *config.Config) []discovery.Target {
	var targets []discovery.Target
	for _, key := range slices.Sorted(maps.Keys(cfg.Devices)) {
		dc := cfg.Devices[key]
		if kind, _ := model.ParseTransportKind(dc.Transport); kind != model.TransportOSC {
			continue
		}
		host := dc.MDNSName
		if host == "" {
			if dc.Address != "" {
				continue
			}
			host = discovery.DefaultHost
		}
		targets = append(targets, discovery.Target{Key: key, Host: host, Port: transport.DefaultBoardPort})
	}
	return targets
}
