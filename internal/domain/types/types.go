// Package types contains the status shapes shared by the read model and the HTTP API.
package types

import "time"

// DeviceStatus is the externally visible state of one hardware device.
type DeviceStatus struct {
	Key            string    `json:"key"`
	Name           string    `json:"name"`
	Transport      string    `json:"transport"`
	Address        string    `json:"address,omitempty"`
	MAC            string    `json:"mac"`
	MotorCount     int       `json:"motor_count"`
	State          string    `json:"state"`
	Bound          bool      `json:"bound"`
	LastHeartbeat  time.Time `json:"last_heartbeat,omitempty"`
	UptimeSeconds  int       `json:"uptime_seconds"`
	BatteryVoltage int       `json:"battery_voltage"`
	RSSI           int       `json:"rssi"`
	Outputs        []uint8   `json:"outputs"`
}

// GroupStatus is the externally visible state of one contact group.
type GroupStatus struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Solver   string `json:"solver"`
	Points   int    `json:"points"`
	Motors   int    `json:"motors"`
	Strength int    `json:"strength"`
	Fresh    bool   `json:"fresh"`
}

// EngineStats summarizes the control loop and the telemetry receiver.
type EngineStats struct {
	TargetTPS          int       `json:"target_tps"`
	CurrentTPS         int       `json:"current_tps"`
	Ticks              uint64    `json:"ticks"`
	SlowTicks          uint64    `json:"slow_ticks"`
	TransmissionEnable bool      `json:"transmission_enabled"`
	ReceiverActive     bool      `json:"receiver_active"`
	LastReceiverPacket time.Time `json:"last_receiver_packet,omitempty"`
	DroppedEvents      uint64    `json:"dropped_events"`
}

// ConnectedCount returns how many of the given devices are connected.
func ConnectedCount(devices []DeviceStatus) int {
	n := 0
	for _, d := range devices {
		if d.State == "connected" {
			n++
		}
	}
	return n
}

// EventRecord is a state-change event as exposed to API clients.
type EventRecord struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Key     string    `json:"key"`
	State   string    `json:"state,omitempty"`
	Fresh   *bool     `json:"fresh,omitempty"`
	Enabled *bool     `json:"enabled,omitempty"`
	At      time.Time `json:"at"`
}
