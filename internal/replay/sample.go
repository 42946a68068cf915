// Package replay records, replays and synthesizes OSC traffic for bench
// testing the engine without an avatar client.
package replay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hypebeast/go-osc/osc"
)

// File permission constants.
const (
	filePermission      = 0o600
	directoryPermission = 0o750
)

// Replay errors.
var (
	ErrEmptyRecording = errors.New("recording is empty")
	ErrBadSample      = errors.New("malformed sample")
)

// Sample is one recorded OSC message. Only the first argument is kept.
// On disk it is the triple [offset_seconds, address, value].
type Sample struct {
	Offset  time.Duration
	Address string
	Value   any
}

// Message builds the OSC message for the sample.
func (s Sample) Message() *osc.Message {
	if s.Value == nil {
		return osc.NewMessage(s.Address)
	}
	return osc.NewMessage(s.Address, s.Value)
}

// MarshalJSON implements json.Marshaler. Floats always carry a decimal
// point so they do not come back as integers.
func (s Sample) MarshalJSON() ([]byte, error) {
	value := s.Value
	switch v := value.(type) {
	case float32:
		value = floatNumber(float64(v), 32)
	case float64:
		value = floatNumber(v, 64)
	}
	return json.Marshal([]any{s.Offset.Seconds(), s.Address, value})
}

func floatNumber(f float64, bits int) json.Number {
	out := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(out, ".eEn") {
		out += ".0"
	}
	return json.Number(out)
}

// UnmarshalJSON implements json.Unmarshaler. Integral numbers decode as
// int32 and the rest as float32 so replayed messages keep their OSC tags.
func (s *Sample) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSample, err)
	}
	if len(raw) != 3 {
		return fmt.Errorf("%w: want 3 fields, got %d", ErrBadSample, len(raw))
	}
	off, ok := raw[0].(json.Number)
	if !ok {
		return fmt.Errorf("%w: offset %v", ErrBadSample, raw[0])
	}
	secs, err := off.Float64()
	if err != nil || secs < 0 {
		return fmt.Errorf("%w: offset %v", ErrBadSample, raw[0])
	}
	addr, ok := raw[1].(string)
	if !ok || !strings.HasPrefix(addr, "/") {
		return fmt.Errorf("%w: address %v", ErrBadSample, raw[1])
	}
	value, err := oscValue(raw[2])
	if err != nil {
		return err
	}
	*s = Sample{
		Offset:  time.Duration(math.Round(secs * float64(time.Second))),
		Address: addr,
		Value:   value,
	}
	return nil
}

func oscValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, string:
		return x, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int32(i), nil //nolint:gosec // OSC ints are 32 bit
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: value %v", ErrBadSample, v)
		}
		return float32(f), nil
	default:
		return nil, fmt.Errorf("%w: value %v", ErrBadSample, v)
	}
}

// firstArgument returns the value recorded for msg.
func firstArgument(msg *osc.Message) any {
	if len(msg.Arguments) == 0 {
		return nil
	}
	return msg.Arguments[0]
}

// Save writes samples to path as a JSON array.
func Save(path string, samples []Sample) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode recording: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), filePermission); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	return nil
}

// Load reads a recording written by Save.
func Load(path string) ([]Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}
	var samples []Sample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("failed to decode recording %s: %w", path, err)
	}
	if len(samples) == 0 {
		return nil, ErrEmptyRecording
	}
	return samples, nil
}
