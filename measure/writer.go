package measure

import (
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/canlog/types"
)

// Writer produces a container.
type Writer struct {
	w      io.Writer
	groups int
}

// NewWriter writes the container header and returns a Writer for groups.
// A zero start writes a header without a session start.
func NewWriter(w io.Writer, start time.Time, source string) (*Writer, error) {
	header := HeaderRecord{
		Type:    RecordTypeHeader,
		Version: types.Version,
		Source:  source,
	}
	if !start.IsZero() {
		header.SetStart(start)
	}
	mw := &Writer{w: w}
	if err := mw.writeRecord(&header); err != nil {
		return nil, err
	}
	return mw, nil
}

// WriteGroup appends one CAN frame group.
func (mw *Writer) WriteGroup(g *Group) error {
	if len(g.IDs) != len(g.Timestamps) || len(g.Payloads) != len(g.Timestamps) {
		return fmt.Errorf("group %d channel lengths differ", g.Index)
	}

	ids := make([]uint64, len(g.IDs))
	for i, id := range g.IDs {
		ids[i] = uint64(id)
	}

	channels := make(map[string]msgpack.RawMessage, 3)
	for name, v := range map[string]any{
		ChannelTimestamp: g.Timestamps,
		ChannelID:        ids,
		ChannelDataBytes: g.Payloads,
	} {
		b, err := msgpack.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		channels[name] = b
	}

	rec := GroupRecord{
		Type:     RecordTypeGroup,
		Index:    g.Index,
		Name:     g.Name,
		Channels: channels,
	}
	if err := mw.writeRecord(&rec); err != nil {
		return err
	}
	mw.groups++
	return nil
}

// Groups returns the number of groups written.
func (mw *Writer) Groups() int {
	return mw.groups
}

func (mw *Writer) writeRecord(v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	frame, err := encodeFrame(payload)
	if err != nil {
		return err
	}
	_, err = mw.w.Write(frame)
	return err
}
