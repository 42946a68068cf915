package model

import (
	"fmt"
	"strings"
	"time"
)

// TransportKind selects the communication adapter for a hardware device.
type TransportKind int

const (
	TransportUnknown TransportKind = iota
	TransportOSC
	TransportSlipSerial
)

func (k TransportKind) String() string {
	switch k {
	case TransportOSC:
		return "OSC"
	case TransportSlipSerial:
		return "SlipSerial"
	default:
		return "Unknown"
	}
}

// ParseTransportKind maps a configured connection type to a TransportKind.
// Matching is case-insensitive. Unknown names return TransportUnknown and an
// error wrapping ErrUnknownTransport.
func ParseTransportKind(s string) (TransportKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "osc", "oscudp", "udp":
		return TransportOSC, nil
	case "slipserial", "slip", "serial":
		return TransportSlipSerial, nil
	default:
		return TransportUnknown, fmt.Errorf("%w: %q", ErrUnknownTransport, s)
	}
}

// ConnectionState is the liveness state of a hardware device.
type ConnectionState int

const (
	StateUnknown ConnectionState = iota
	StateConnected
	StateDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// HardwareDevice is the static identity of one controller board.
type HardwareDevice struct {
	ID         int
	Key        string // configuration key, e.g. "esp0"
	Name       string
	Transport  TransportKind
	Address    string // host:port for OSC, device path for serial
	MAC        string
	MotorCount int
}

// DeviceTelemetry is the most recent heartbeat content of a device.
type DeviceTelemetry struct {
	UptimeSeconds  int
	BatteryVoltage int
	RSSI           int
	ReceivedAt     time.Time
}
