package measure

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrNoFrameChannels is returned by Next wrapped in a FrameError when a
// group lacks the CAN frame channels. Callers may skip such groups.
var ErrNoFrameChannels = errors.New("group has no CAN frame channels")

// Reader streams groups from a container.
type Reader struct {
	dec    *FrameDecoder
	header HeaderRecord
}

// NewReader reads and validates the container header.
func NewReader(r io.Reader) (*Reader, error) {
	dec := NewFrameDecoder(r)
	payload, err := dec.ReadFrame()
	if err != nil {
		if err == io.EOF {
			return nil, &FrameError{Kind: FrameErrorPartial, Msg: "empty container", Err: io.ErrUnexpectedEOF}
		}
		return nil, err
	}

	typ, err := peekType(payload)
	if err != nil {
		return nil, err
	}
	if typ != RecordTypeHeader {
		return nil, &FrameError{
			Kind: FrameErrorLayout,
			Msg:  fmt.Sprintf("first record is %q, want %q", typ, RecordTypeHeader),
		}
	}

	var header HeaderRecord
	if err := msgpack.Unmarshal(payload, &header); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode header", Err: err}
	}
	return &Reader{dec: dec, header: header}, nil
}

// Header returns the container header.
func (r *Reader) Header() HeaderRecord {
	return r.header
}

// Next returns the next group. Returns io.EOF when the stream ends cleanly.
// A non-fatal *FrameError leaves the reader positioned at the next record.
func (r *Reader) Next() (*Group, error) {
	for {
		payload, err := r.dec.ReadFrame()
		if err != nil {
			return nil, err
		}
		typ, err := peekType(payload)
		if err != nil {
			return nil, err
		}
		if typ != RecordTypeGroup {
			// Unknown record types are reserved for future use.
			continue
		}
		return decodeGroup(payload)
	}
}

func decodeGroup(payload []byte) (*Group, error) {
	var rec GroupRecord
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode group", Err: err}
	}

	g := &Group{Index: rec.Index, Name: rec.Name}
	rawTS, okTS := rec.Channels[ChannelTimestamp]
	rawID, okID := rec.Channels[ChannelID]
	rawData, okData := rec.Channels[ChannelDataBytes]
	if !okTS || !okID || !okData {
		return g, &FrameError{
			Kind: FrameErrorLayout,
			Msg:  fmt.Sprintf("group %d", rec.Index),
			Err:  ErrNoFrameChannels,
		}
	}

	if err := msgpack.Unmarshal(rawTS, &g.Timestamps); err != nil {
		return g, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode " + ChannelTimestamp, Err: err}
	}
	var ids []uint64
	if err := msgpack.Unmarshal(rawID, &ids); err != nil {
		return g, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode " + ChannelID, Err: err}
	}
	if err := msgpack.Unmarshal(rawData, &g.Payloads); err != nil {
		return g, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode " + ChannelDataBytes, Err: err}
	}

	if len(ids) != len(g.Timestamps) || len(g.Payloads) != len(g.Timestamps) {
		return g, &FrameError{
			Kind: FrameErrorLayout,
			Msg: fmt.Sprintf("group %d channel lengths differ: %d timestamps, %d ids, %d payloads",
				rec.Index, len(g.Timestamps), len(ids), len(g.Payloads)),
		}
	}

	// Ids are returned as stored; the caller applies its identifier mask.
	g.IDs = make([]uint32, len(ids))
	for i, id := range ids {
		g.IDs[i] = uint32(id)
	}
	return g, nil
}
