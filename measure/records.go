package measure

import (
	"math"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Record type discriminants.
const (
	RecordTypeHeader = "header"
	RecordTypeGroup  = "group"
)

// Channel names carried by CAN frame groups.
const (
	ChannelTimestamp = "Timestamp"
	ChannelID        = "CAN_DataFrame.ID"
	ChannelDataBytes = "CAN_DataFrame.DataBytes"
)

// HeaderRecord opens every container.
type HeaderRecord struct {
	// Type is always "header".
	Type string `msgpack:"type"`
	// Version is the writer version.
	Version string `msgpack:"version"`
	// StartTime is the measurement start in seconds since the Unix epoch.
	// Zero means the container carries no session start.
	StartTime float64 `msgpack:"start_time"`
	// Source is an optional free-form recorder description.
	Source string `msgpack:"source,omitempty"`
}

// Start returns the measurement start, or false if the header has none.
func (h *HeaderRecord) Start() (time.Time, bool) {
	if h.StartTime <= 0 || math.IsNaN(h.StartTime) || math.IsInf(h.StartTime, 0) {
		return time.Time{}, false
	}
	sec, frac := math.Modf(h.StartTime)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond)).UTC(), true
}

// SetStart stores t as the header start time.
func (h *HeaderRecord) SetStart(t time.Time) {
	h.StartTime = float64(t.UnixMicro()) / 1e6
}

// GroupRecord is one channel group. Channels hold msgpack-encoded arrays
// keyed by channel name; only the CAN frame channels are interpreted.
type GroupRecord struct {
	// Type is always "group".
	Type     string                        `msgpack:"type"`
	Index    int                           `msgpack:"index"`
	Name     string                        `msgpack:"name,omitempty"`
	Channels map[string]msgpack.RawMessage `msgpack:"channels"`
}

// Group is a decoded CAN frame group.
type Group struct {
	Index int
	Name  string
	// Timestamps are seconds since the header start time.
	Timestamps []float64
	IDs        []uint32
	Payloads   [][]byte
}

// Len returns the number of frames in the group.
func (g *Group) Len() int {
	return len(g.Timestamps)
}
