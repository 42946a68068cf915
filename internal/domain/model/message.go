package model

import "strings"

// Message is an inbound hardware message. It is implemented only by
// HeartbeatMessage and DiscoveryResponseMessage.
type Message interface {
	// SenderMAC returns the mac the board reported for itself.
	SenderMAC() string
	isMessage()
}

// HeartbeatMessage is sent periodically by a board while it receives frames.
type HeartbeatMessage struct {
	MAC            string
	UptimeSeconds  int
	BatteryVoltage int
	RSSI           int
}

func (m HeartbeatMessage) SenderMAC() string { return m.MAC }
func (HeartbeatMessage) isMessage()          {}

// DiscoveryResponseMessage answers a discovery request with the board topology.
type DiscoveryResponseMessage struct {
	MAC       string
	NumMotors int
}

func (m DiscoveryResponseMessage) SenderMAC() string { return m.MAC }
func (DiscoveryResponseMessage) isMessage()          {}

// NormalizeMAC upper-cases a mac and strips surrounding whitespace so that
// "aa:bb:.." and "AA:BB:.." compare equal.
func NormalizeMAC(mac string) string {
	return strings.ToUpper(strings.TrimSpace(mac))
}
