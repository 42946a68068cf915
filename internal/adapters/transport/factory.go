package transport

import (
	"fmt"

	"github.com/okian/patpat/internal/domain/device"
	"github.com/okian/patpat/internal/domain/model"
)

// Factory builds the adapter matching a device's transport kind.
type Factory struct {
	hub        *OscHub
	serialOpts []SerialOption
}

// NewFactory returns a factory. hub may be nil when no OSC device is configured.
func NewFactory(hub *OscHub, serialOpts ...SerialOption) *Factory {
	return &Factory{hub: hub, serialOpts: serialOpts}
}

// New returns a fresh adapter for dev. extra applies to serial devices after
// the factory-wide options.
func (f *Factory) New(dev model.HardwareDevice, extra ...SerialOption) (device.Adapter, error) {
	switch dev.Transport {
	case model.TransportOSC:
		if f.hub == nil {
			return nil, fmt.Errorf("device %q: no osc socket available", dev.Key)
		}
		return f.hub.NewAdapter(dev.MAC, dev.Address)
	case model.TransportSlipSerial:
		opts := append(append([]SerialOption(nil), f.serialOpts...), extra...)
		return NewSerialAdapter(dev.Address, opts...)
	default:
		return nil, fmt.Errorf("%w: device %q has %s", ErrUnknownTransport, dev.Key, dev.Transport)
	}
}
