// Package config defines the engine configuration, its loader and the
// runtime configuration store.
//
// Conventions:
//   - New(ctx) returns a Config holding every default.
//   - Load(ctx) layers defaults, an optional YAML file and env vars.
//   - Validation errors wrap ErrInvalidConfig.
package config

import (
	"context"
	"time"

	"github.com/okian/patpat/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	Program Program `koanf:"program"`

	// Devices maps a device key to its hardware description.
	Devices map[string]Device `koanf:"devices"`

	// Groups lists contact groups. Contact point ids are assigned in this order.
	Groups []Group `koanf:"groups"`
}

// Program holds engine-wide settings.
type Program struct {
	// TPS is the control loop tick rate.
	TPS int `koanf:"tps"`

	// OSCListen is the shared OSC socket for avatar telemetry and boards.
	OSCListen string `koanf:"osc_listen"`

	// MaxAge is how old a contact sample may be and still count as fresh.
	MaxAge time.Duration `koanf:"max_age"`

	HeartbeatTimeout  time.Duration `koanf:"heartbeat_timeout"`
	SendTimeout       time.Duration `koanf:"send_timeout"`
	DiscoveryInterval time.Duration `koanf:"discovery_interval"`

	// ReceiverTimeout is how long the avatar data source counts as active.
	ReceiverTimeout time.Duration `koanf:"receiver_timeout"`

	// Transmit enables motor output at startup.
	Transmit bool `koanf:"transmit"`

	// Intensity is the master scale applied to every group, 0..1.
	Intensity float64 `koanf:"intensity"`

	// EventQueueSize bounds the notification queue.
	EventQueueSize int `koanf:"queue_size"`
}

// Device describes one controller board.
type Device struct {
	Name string `koanf:"name"`

	// Transport is osc or slipserial.
	Transport string `koanf:"transport"`

	// Address is host[:port] for osc and the device path for slipserial.
	// Discovery rewrites it at runtime.
	Address string `koanf:"address"`

	MAC        string `koanf:"mac"`
	MotorCount int    `koanf:"motor_count"`

	// MDNSName is the host name resolved as <name>.local. An osc device with
	// neither an address nor a name is looked up as patpatpat.local.
	MDNSName string `koanf:"mdns_name"`

	Serial Serial `koanf:"serial"`
}

// Serial holds line settings for slipserial devices.
type Serial struct {
	BaudRate int    `koanf:"baud_rate"`
	DataBits int    `koanf:"data_bits"`
	StopBits int    `koanf:"stop_bits"`
	Parity   string `koanf:"parity"`
}

// Group describes one contact group.
type Group struct {
	Key  string `koanf:"key"`
	Name string `koanf:"name"`

	// Solver is MLat or SimpleDistance; legacy names are accepted.
	Solver string `koanf:"solver"`

	// Strength is the intensity slider in percent. Nil means 100.
	Strength *int `koanf:"strength"`

	UpperHemisphereOnly bool    `koanf:"upper_hemisphere_only"`
	BoundsTolerance     float64 `koanf:"bounds_tolerance"`
	ContactOnly         bool    `koanf:"contact_only"`

	// Mapping is one_to_one or nearest_anchor.
	Mapping string `koanf:"mapping"`

	// Aggregate is nearest, max or mean. It applies to nearest_anchor.
	Aggregate string `koanf:"aggregate"`

	Anchors []Anchor `koanf:"anchors"`
	Motors  []Motor  `koanf:"motors"`
}

// Anchor is one calibrated contact point.
type Anchor struct {
	Name string `koanf:"name"`

	// Receiver is the avatar parameter name, without /avatar/parameters/.
	Receiver string     `koanf:"receiver"`
	Position model.Vec3 `koanf:"position"`
	Radius   float64    `koanf:"radius"`
}

// Motor is one actuator bound to a device channel.
type Motor struct {
	Name     string     `koanf:"name"`
	Device   string     `koanf:"device"`
	Channel  int        `koanf:"channel"`
	Position model.Vec3 `koanf:"position"`
	Radius   float64    `koanf:"radius"`
	MinPWM   int        `koanf:"min_pwm"`
	MaxPWM   int        `koanf:"max_pwm"`
}

// DefaultStrength is used for groups without a strength setting.
const DefaultStrength = 100

// StrengthOrDefault returns the configured strength or DefaultStrength.
func (g Group) StrengthOrDefault() int {
	if g.Strength == nil {
		return DefaultStrength
	}
	return *g.Strength
}

// New creates a Config holding every default. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":9080",
		Program: Program{
			TPS:               2,
			OSCListen:         ":9001",
			MaxAge:            500 * time.Millisecond,
			HeartbeatTimeout:  2 * time.Second,
			SendTimeout:       50 * time.Millisecond,
			DiscoveryInterval: 5 * time.Second,
			ReceiverTimeout:   3 * time.Second,
			Transmit:          true,
			Intensity:         1,
			EventQueueSize:    1024,
		},
		Devices: map[string]Device{},
	}
}
