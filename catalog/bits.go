package catalog

import (
	"math"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/descriptor"
)

// ByteOrder is the DBC signal byte order.
type ByteOrder uint8

const (
	// BigEndian is Motorola order (@0). The start bit is the MSB.
	BigEndian ByteOrder = iota
	// LittleEndian is Intel order (@1). The start bit is the LSB.
	LittleEndian
)

// ValueType is the DBC signal value encoding.
type ValueType uint8

const (
	// ValueInteger is an integer raw value, scaled by factor and offset.
	ValueInteger ValueType = iota
	// ValueFloat32 is an IEEE single (SIG_VALTYPE_ 1).
	ValueFloat32
	// ValueFloat64 is an IEEE double (SIG_VALTYPE_ 2).
	ValueFloat64
)

// window binds a signal to an 8-byte view of the payload that starts at the
// signal's first byte, so payloads longer than a classic frame decode too.
type window struct {
	base int
	// last is the index of the final byte the signal touches, within the view.
	last int
	desc *descriptor.Signal
}

func newWindow(s *Signal) window {
	bit := s.StartBit % 8
	if s.Order == BigEndian {
		bit = 7 - bit
	}
	return window{
		base: s.StartBit / 8,
		last: (bit + s.Length - 1) / 8,
		desc: &descriptor.Signal{
			Name:        s.Name,
			Start:       uint8(s.StartBit % 8),
			Length:      uint8(s.Length),
			IsBigEndian: s.Order == BigEndian,
			IsSigned:    s.Signed,
			Scale:       s.Factor,
			Offset:      s.Offset,
			Unit:        s.Unit,
		},
	}
}

// fits reports whether the signal lies inside both the view and the payload.
func (w window) fits(payload []byte) bool {
	return w.last < 8 && w.base+w.last < len(payload)
}

// extract returns the signal's raw bits and, for signed signals, their two's
// complement value. ok is false if the signal does not fit the payload.
func (w window) extract(payload []byte) (raw uint64, signed int64, ok bool) {
	if !w.fits(payload) {
		return 0, 0, false
	}
	var d can.Data
	copy(d[:], payload[w.base:])
	raw = w.desc.UnmarshalUnsigned(d)
	if w.desc.IsSigned {
		signed = w.desc.UnmarshalSigned(d)
	} else {
		signed = int64(raw)
	}
	return raw, signed, true
}

// rawNumber converts extracted bits to the unscaled numeric value.
func rawNumber(raw uint64, signed int64, isSigned bool, vt ValueType) float64 {
	switch vt {
	case ValueFloat32:
		return float64(math.Float32frombits(uint32(raw)))
	case ValueFloat64:
		return math.Float64frombits(raw)
	}
	if isSigned {
		return float64(signed)
	}
	return float64(raw)
}
