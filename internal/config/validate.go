package config

import (
	"fmt"
	"strings"

	"github.com/okian/patpat/internal/domain/model"
	"github.com/okian/patpat/internal/domain/solver"
)

// Validate checks cross references and ranges. Every error wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.Program.TPS <= 0 {
		return fmt.Errorf("%w: program.tps must be positive, got %d", ErrInvalidConfig, c.Program.TPS)
	}
	if c.Program.Intensity < 0 || c.Program.Intensity > 1 {
		return fmt.Errorf("%w: program.intensity must be within 0..1, got %v", ErrInvalidConfig, c.Program.Intensity)
	}

	for key, d := range c.Devices {
		kind, err := model.ParseTransportKind(d.Transport)
		if err != nil {
			return fmt.Errorf("%w: devices.%s.transport: %w", ErrInvalidConfig, key, err)
		}
		if d.MotorCount <= 0 {
			return fmt.Errorf("%w: devices.%s.motor_count must be positive", ErrInvalidConfig, key)
		}
		if kind == model.TransportSlipSerial && d.Address == "" {
			return fmt.Errorf("%w: devices.%s.address is required for serial devices", ErrInvalidConfig, key)
		}
	}

	seen := make(map[string]bool, len(c.Groups))
	for i, g := range c.Groups {
		if g.Key == "" {
			return fmt.Errorf("%w: groups[%d].key must not be empty", ErrInvalidConfig, i)
		}
		if seen[g.Key] {
			return fmt.Errorf("%w: duplicate group key %q", ErrInvalidConfig, g.Key)
		}
		seen[g.Key] = true
		if err := c.validateGroup(g); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateGroup(g Group) error {
	if _, err := solver.ParseKind(g.Solver); err != nil {
		return fmt.Errorf("%w: group %q: %v", ErrInvalidConfig, g.Key, err)
	}
	if _, err := solver.ParseMapping(g.Mapping); err != nil {
		return fmt.Errorf("%w: group %q: %v", ErrInvalidConfig, g.Key, err)
	}
	if _, err := solver.ParseAggregate(g.Aggregate); err != nil {
		return fmt.Errorf("%w: group %q: %v", ErrInvalidConfig, g.Key, err)
	}
	if s := g.StrengthOrDefault(); s < 0 || s > 100 {
		return fmt.Errorf("%w: group %q: strength must be within 0..100, got %d", ErrInvalidConfig, g.Key, s)
	}
	if len(g.Anchors) == 0 {
		return fmt.Errorf("%w: group %q has no anchors", ErrInvalidConfig, g.Key)
	}
	for _, a := range g.Anchors {
		if strings.TrimSpace(a.Receiver) == "" {
			return fmt.Errorf("%w: group %q: anchor %q has no receiver", ErrInvalidConfig, g.Key, a.Name)
		}
	}
	for _, m := range g.Motors {
		d, ok := c.Devices[m.Device]
		if !ok {
			return fmt.Errorf("%w: group %q: motor %q uses unknown device %q", ErrInvalidConfig, g.Key, m.Name, m.Device)
		}
		if m.Channel < 0 || m.Channel >= d.MotorCount {
			return fmt.Errorf("%w: group %q: motor %q channel %d outside 0..%d", ErrInvalidConfig, g.Key, m.Name, m.Channel, d.MotorCount-1)
		}
		if m.MinPWM < 0 || m.MinPWM > 255 || m.MaxPWM < 0 || m.MaxPWM > 255 {
			return fmt.Errorf("%w: group %q: motor %q pwm limits must be within 0..255", ErrInvalidConfig, g.Key, m.Name)
		}
		if m.MaxPWM > 0 && m.MinPWM > m.MaxPWM {
			return fmt.Errorf("%w: group %q: motor %q min_pwm above max_pwm", ErrInvalidConfig, g.Key, m.Name)
		}
	}
	return nil
}
