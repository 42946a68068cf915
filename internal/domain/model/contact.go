package model

import "time"

// Sample is the latest value received for one contact point.
type Sample struct {
	Value     float64   // proximity reported by the VR application, usually 0..1
	Timestamp time.Time // capture time on the receive path
	Valid     bool      // false until the first value arrives
}

// AnchorPoint is the calibrated position of one contact point.
type AnchorPoint struct {
	PointID    int    // contact point id in the sample store
	Name       string // display name
	ReceiverID string // OSC parameter name, /avatar/parameters/<ReceiverID>
	Position   Vec3
	Radius     float64 // distance at which the proximity value reaches 0
}

// MotorSpec describes one motor in a contact group.
type MotorSpec struct {
	Name      string
	DeviceKey string // configuration key of the owning hardware device
	Channel   int    // output channel (pin index) on that device
	Position  Vec3
	Radius    float64 // zone of effect for geometric results
	MinPWM    uint8   // dead-band floor; non-zero outputs below this are raised to it
	MaxPWM    uint8   // value written for full intensity
}
