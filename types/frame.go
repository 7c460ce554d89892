package types

import "strings"

// IDMask strips the extended-frame flag and keeps the 29-bit identifier.
const IDMask uint32 = 0x1FFFFFFF

// MaxPayloadLength is the largest CAN FD payload a record may declare.
const MaxPayloadLength = 64

// Direction is the transfer direction or record type of a raw frame.
type Direction uint8

const (
	// DirectionUnknown is used when a grammar carries no direction field.
	DirectionUnknown Direction = iota
	// DirectionRx is a received frame.
	DirectionRx
	// DirectionTx is a transmitted frame.
	DirectionTx
	// DirectionError is a bus error record. Never decoded.
	DirectionError
)

func (d Direction) String() string {
	switch d {
	case DirectionRx:
		return "Rx"
	case DirectionTx:
		return "Tx"
	case DirectionError:
		return "Error"
	default:
		return "Unknown"
	}
}

// ParseDirection maps a log direction token to a Direction.
// Matching is case-insensitive; unrecognized tokens yield DirectionUnknown.
func ParseDirection(s string) Direction {
	switch strings.ToLower(s) {
	case "rx":
		return DirectionRx
	case "tx":
		return DirectionTx
	case "er", "err", "error":
		return DirectionError
	default:
		return DirectionUnknown
	}
}

// RawFrame is one bus message record extracted from a log.
// Produced and consumed within a single parse step.
type RawFrame struct {
	// TimeToken is the unparsed timestamp text.
	TimeToken string
	// Direction is the transfer direction.
	Direction Direction
	// ID is the message identifier, already masked with IDMask.
	ID uint32
	// Length is the declared payload length.
	Length int
	// Payload holds exactly Length bytes.
	Payload []byte
}
