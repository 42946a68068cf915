package transport

import "bytes"

// SLIP special bytes (RFC 1055).
const (
	slipEnd    = 0xC0
	slipEsc    = 0xDB
	slipEscEnd = 0xDC
	slipEscEsc = 0xDD

	// Frames longer than this are treated as line noise.
	maxSlipFrame = 4096
)

// SlipEncode frames payload. A leading END flushes any noise the receiver
// has buffered.
func SlipEncode(payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(payload) + 2)
	buf.WriteByte(slipEnd)
	for _, b := range payload {
		switch b {
		case slipEnd:
			buf.WriteByte(slipEsc)
			buf.WriteByte(slipEscEnd)
		case slipEsc:
			buf.WriteByte(slipEsc)
			buf.WriteByte(slipEscEsc)
		default:
			buf.WriteByte(b)
		}
	}
	buf.WriteByte(slipEnd)
	return buf.Bytes()
}

// SlipDecoder reassembles frames from a byte stream. A frame with an
// invalid escape or an oversize body is dropped and decoding resumes at
// the next END.
type SlipDecoder struct {
	buf     []byte
	esc     bool
	garbled bool

	// Dropped counts discarded frames.
	Dropped int
}

// Feed consumes data and returns every frame completed by it.
func (d *SlipDecoder) Feed(data []byte) [][]byte {
	var frames [][]byte
	for _, b := range data {
		if b == slipEnd {
			switch {
			case d.garbled || d.esc:
				d.Dropped++
			case len(d.buf) > 0:
				frames = append(frames, append([]byte(nil), d.buf...))
			}
			d.reset()
			continue
		}
		if d.garbled {
			continue
		}
		if d.esc {
			d.esc = false
			switch b {
			case slipEscEnd:
				b = slipEnd
			case slipEscEsc:
				b = slipEsc
			default:
				d.garbled = true
				continue
			}
		} else if b == slipEsc {
			d.esc = true
			continue
		}
		if len(d.buf) >= maxSlipFrame {
			d.garbled = true
			continue
		}
		d.buf = append(d.buf, b)
	}
	return frames
}

func (d *SlipDecoder) reset() {
	d.buf = d.buf[:0]
	d.esc = false
	d.garbled = false
}
