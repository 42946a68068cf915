package transport

import (
	"fmt"
	"strings"

	"github.com/hypebeast/go-osc/osc"

	"github.com/okian/patpat/internal/domain/model"
)

// OSC addresses spoken by the controller boards.
const (
	AddrMotors            = "/m"
	AddrHeartbeat         = "/patpatpat/heartbeat"
	AddrDiscoveryRequest  = "/patpatpat/noticeme"
	AddrDiscoveryResponse = "/patpatpat/noticeme/senpai"

	// HardwarePrefix is the address prefix of every board-originated message.
	HardwarePrefix = "/patpatpat/"
)

// EncodeMotorFrame builds the /m message carrying one int32 per channel.
func EncodeMotorFrame(values []uint8) ([]byte, error) {
	msg := osc.NewMessage(AddrMotors)
	for _, v := range values {
		msg.Append(int32(v))
	}
	return msg.MarshalBinary()
}

// EncodeDiscoveryRequest builds the message asking a board for its topology.
func EncodeDiscoveryRequest() ([]byte, error) {
	return osc.NewMessage(AddrDiscoveryRequest).MarshalBinary()
}

// ParseMessages decodes an OSC packet and flattens bundles.
func ParseMessages(data []byte) ([]*osc.Message, error) {
	pkt, err := osc.ParsePacket(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	var out []*osc.Message
	var walk func(p osc.Packet)
	walk = func(p osc.Packet) {
		switch v := p.(type) {
		case *osc.Message:
			out = append(out, v)
		case *osc.Bundle:
			out = append(out, v.Messages...)
			for _, b := range v.Bundles {
				walk(b)
			}
		}
	}
	walk(pkt)
	return out, nil
}

// DecodeHardwareMessage converts a board message into a domain message.
func DecodeHardwareMessage(msg *osc.Message) (model.Message, error) {
	switch msg.Address {
	case AddrHeartbeat:
		if len(msg.Arguments) != 4 {
			return nil, fmt.Errorf("%w: heartbeat with %d arguments", ErrMalformedFrame, len(msg.Arguments))
		}
		mac, ok := msg.Arguments[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: heartbeat mac is %T", ErrMalformedFrame, msg.Arguments[0])
		}
		var ints [3]int
		for i := range ints {
			v, ok := AsInt(msg.Arguments[i+1])
			if !ok {
				return nil, fmt.Errorf("%w: heartbeat argument %d is %T", ErrMalformedFrame, i+1, msg.Arguments[i+1])
			}
			ints[i] = v
		}
		return model.HeartbeatMessage{
			MAC:            model.NormalizeMAC(mac),
			UptimeSeconds:  ints[0],
			BatteryVoltage: ints[1],
			RSSI:           ints[2],
		}, nil
	case AddrDiscoveryResponse:
		if len(msg.Arguments) != 2 {
			return nil, fmt.Errorf("%w: discovery response with %d arguments", ErrMalformedFrame, len(msg.Arguments))
		}
		mac, ok := msg.Arguments[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: discovery mac is %T", ErrMalformedFrame, msg.Arguments[0])
		}
		n, ok := AsInt(msg.Arguments[1])
		if !ok {
			return nil, fmt.Errorf("%w: motor count is %T", ErrMalformedFrame, msg.Arguments[1])
		}
		return model.DiscoveryResponseMessage{MAC: model.NormalizeMAC(mac), NumMotors: n}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnrecognizedAddress, msg.Address)
	}
}

// DecodeHardwareFrame decodes a raw OSC packet from a board.
func DecodeHardwareFrame(data []byte) (model.Message, error) {
	msgs, err := ParseMessages(data)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: empty packet", ErrMalformedFrame)
	}
	return DecodeHardwareMessage(msgs[0])
}

// IsHardwareAddress reports whether address belongs to the board protocol.
func IsHardwareAddress(address string) bool {
	return strings.HasPrefix(address, HardwarePrefix)
}

// AsInt converts the OSC numeric argument types to int.
func AsInt(arg any) (int, bool) {
	switch v := arg.(type) {
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float32:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
