package measure

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeRecord encodes v as a framed msgpack payload.
func encodeRecord(t *testing.T, v any) []byte {
	t.Helper()
	payload, err := msgpack.Marshal(v)
	if err != nil {
		t.Fatalf("msgpack.Marshal failed: %v", err)
	}
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf
}

func TestWriterReader_RoundTrip(t *testing.T) {
	start := time.Date(2024, 3, 5, 9, 15, 2, 120000000, time.UTC)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, start, "bench-logger")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	groups := []*Group{
		{
			Index:      0,
			Name:       "CAN1",
			Timestamps: []float64{0.0, 0.5},
			IDs:        []uint32{0x100, 0x200},
			Payloads:   [][]byte{{0x01}, {0x02, 0x03}},
		},
		{
			Index:      1,
			Name:       "CAN2",
			Timestamps: []float64{0.25},
			IDs:        []uint32{0x300},
			Payloads:   [][]byte{{}},
		},
	}
	for _, g := range groups {
		if err := w.WriteGroup(g); err != nil {
			t.Fatalf("WriteGroup failed: %v", err)
		}
	}
	if w.Groups() != 2 {
		t.Errorf("Groups() = %d, want 2", w.Groups())
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	header := r.Header()
	got, ok := header.Start()
	if !ok {
		t.Fatal("header has no start time")
	}
	if d := got.Sub(start); d < -time.Microsecond || d > time.Microsecond {
		t.Errorf("Start() = %v, want %v", got, start)
	}
	if header.Source != "bench-logger" {
		t.Errorf("Source = %q", header.Source)
	}

	for i, want := range groups {
		g, err := r.Next()
		if err != nil {
			t.Fatalf("Next() group %d failed: %v", i, err)
		}
		if g.Index != want.Index || g.Name != want.Name || g.Len() != want.Len() {
			t.Errorf("group %d = %+v, want %+v", i, g, want)
		}
		for j := range want.IDs {
			if g.IDs[j] != want.IDs[j] {
				t.Errorf("group %d id %d = %#x, want %#x", i, j, g.IDs[j], want.IDs[j])
			}
			if g.Timestamps[j] != want.Timestamps[j] {
				t.Errorf("group %d ts %d = %v, want %v", i, j, g.Timestamps[j], want.Timestamps[j])
			}
			if !bytes.Equal(g.Payloads[j], want.Payloads[j]) {
				t.Errorf("group %d payload %d = % X, want % X", i, j, g.Payloads[j], want.Payloads[j])
			}
		}
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next() after last group = %v, want io.EOF", err)
	}
}

func TestReader_HeaderWithoutStart(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewWriter(&buf, time.Time{}, ""); err != nil {
		t.Fatal(err)
	}
	r, err := NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	h := r.Header()
	if _, ok := h.Start(); ok {
		t.Error("expected no start time")
	}
}

func TestReader_FirstRecordMustBeHeader(t *testing.T) {
	data := encodeRecord(t, map[string]any{"type": "group", "index": 0})
	_, err := NewReader(bytes.NewReader(data))
	var fe *FrameError
	if !errors.As(err, &fe) || fe.Kind != FrameErrorLayout {
		t.Fatalf("expected layout FrameError, got %v", err)
	}
}

func TestReader_EmptyContainer(t *testing.T) {
	_, err := NewReader(bytes.NewReader(nil))
	if !IsFatalFrameError(err) {
		t.Fatalf("expected fatal frame error, got %v", err)
	}
}

func TestReader_GroupWithoutFrameChannels(t *testing.T) {
	var data []byte
	data = append(data, encodeRecord(t, map[string]any{"type": "header", "version": "0.3.0", "start_time": 1.7e9})...)
	data = append(data, encodeRecord(t, map[string]any{
		"type":     "group",
		"index":    3,
		"channels": map[string]any{"Voltage": []float64{1, 2}},
	})...)

	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	g, err := r.Next()
	if !errors.Is(err, ErrNoFrameChannels) {
		t.Fatalf("expected ErrNoFrameChannels, got %v", err)
	}
	if IsFatalFrameError(err) {
		t.Error("missing channels must not be fatal")
	}
	if g == nil || g.Index != 3 {
		t.Errorf("group = %+v, want index 3", g)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after skipped group, got %v", err)
	}
}

func TestReader_ChannelLengthMismatch(t *testing.T) {
	ts, _ := msgpack.Marshal([]float64{0, 1})
	ids, _ := msgpack.Marshal([]uint64{0x100})
	payloads, _ := msgpack.Marshal([][]byte{{1}, {2}})

	var data []byte
	data = append(data, encodeRecord(t, HeaderRecord{Type: RecordTypeHeader, StartTime: 1.7e9})...)
	data = append(data, encodeRecord(t, GroupRecord{
		Type: RecordTypeGroup,
		Channels: map[string]msgpack.RawMessage{
			ChannelTimestamp: ts,
			ChannelID:        ids,
			ChannelDataBytes: payloads,
		},
	})...)

	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.Next()
	var fe *FrameError
	if !errors.As(err, &fe) || fe.Kind != FrameErrorLayout {
		t.Fatalf("expected layout error, got %v", err)
	}
}

func TestReader_ExtendedIDUnmasked(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, time.Unix(1_700_000_000, 0), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteGroup(&Group{
		Timestamps: []float64{0},
		IDs:        []uint32{0x98FEF100},
		Payloads:   [][]byte{{0}},
	}); err != nil {
		t.Fatal(err)
	}
	r, err := NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	g, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if g.IDs[0] != 0x98FEF100 {
		t.Errorf("ID = %#x, want 0x98fef100 with the extended flag kept", g.IDs[0])
	}
}

func TestFrameDecoder_TruncatedPayload(t *testing.T) {
	frame := encodeRecord(t, map[string]any{"type": "group"})
	dec := NewFrameDecoder(bytes.NewReader(frame[:len(frame)-2]))
	_, err := dec.ReadFrame()
	var fe *FrameError
	if !errors.As(err, &fe) || fe.Kind != FrameErrorPartial {
		t.Fatalf("expected partial FrameError, got %v", err)
	}
}

func TestFrameDecoder_TooLarge(t *testing.T) {
	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], MaxPayloadSize+1)
	dec := NewFrameDecoder(bytes.NewReader(prefix[:]))
	_, err := dec.ReadFrame()
	if !IsFatalFrameError(err) {
		t.Fatalf("expected fatal FrameError, got %v", err)
	}
}

func TestWriteGroup_RejectsMismatchedChannels(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, time.Time{}, "")
	if err != nil {
		t.Fatal(err)
	}
	err = w.WriteGroup(&Group{Timestamps: []float64{0, 1}, IDs: []uint32{1}, Payloads: [][]byte{{}}})
	if err == nil {
		t.Fatal("expected error")
	}
}
