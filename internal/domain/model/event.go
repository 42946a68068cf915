package model

import "time"

// EventKind identifies what an Event reports.
type EventKind string

const (
	EventDeviceConnectivity EventKind = "device_connectivity"
	EventGroupFreshness     EventKind = "group_freshness"
	EventTransmission       EventKind = "transmission"
	EventDeviceTelemetry    EventKind = "device_telemetry"
)

// Event is a state-change notification delivered to observers.
type Event struct {
	ID        string          // unique id for tracing
	Kind      EventKind       // what changed
	Key       string          // device or group configuration key
	State     ConnectionState // for EventDeviceConnectivity
	Fresh     bool            // for EventGroupFreshness
	Enabled   bool            // for EventTransmission
	Telemetry DeviceTelemetry // for EventDeviceTelemetry
	At        time.Time       // when the change was observed
}
