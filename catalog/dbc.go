package catalog

import (
	"fmt"
	"os"
	"sort"

	"github.com/justapithecus/canlog/types"
)

// Signal is one DBC signal definition.
type Signal struct {
	Name      string
	StartBit  int
	Length    int
	Order     ByteOrder
	Signed    bool
	ValueType ValueType
	Factor    float64
	Offset    float64
	Minimum   float64
	Maximum   float64
	Unit      string
	Receivers []string
	Comment   string
	// Multiplexer marks the switch signal of a multiplexed message.
	Multiplexer bool
	// MuxValue is the switch value selecting this signal, or -1.
	MuxValue int64
	// Choices maps raw values to labels (VAL_).
	Choices map[int64]string

	win window
}

// Message is one DBC message definition.
type Message struct {
	ID      uint32
	Name    string
	Length  int
	Sender  string
	Comment string
	Signals []*Signal
}

func (m *Message) multiplexer() *Signal {
	for _, s := range m.Signals {
		if s.Multiplexer {
			return s
		}
	}
	return nil
}

// Database is a parsed DBC. It is immutable after loading and safe for
// concurrent Decode calls.
type Database struct {
	Version string
	Nodes   []string
	// ValueTables holds named VAL_TABLE_ definitions.
	ValueTables map[string]map[int64]string

	messages      map[uint32]*Message
	units         map[string]string
	decodeChoices bool
	idMask        uint32
}

var _ Catalog = (*Database)(nil)

// Option configures a Database.
type Option func(*Database)

// WithDecodeChoices selects whether enumerated signals decode to labels.
// Enabled by default.
func WithDecodeChoices(enabled bool) Option {
	return func(db *Database) {
		db.decodeChoices = enabled
	}
}

// WithIDMask sets the mask applied to message ids, which must match the mask
// applied to frames. Defaults to types.IDMask.
func WithIDMask(mask uint32) Option {
	return func(db *Database) {
		if mask != 0 {
			db.idMask = mask
		}
	}
}

func newDatabase(opts ...Option) *Database {
	db := &Database{
		ValueTables:   make(map[string]map[int64]string),
		messages:      make(map[uint32]*Message),
		units:         make(map[string]string),
		decodeChoices: true,
		idMask:        types.IDMask,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// LoadDBC reads and parses a DBC file.
func LoadDBC(path string, opts ...Option) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	db, err := parseDBC(path, string(data), opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return db, nil
}

// Load picks the loader by file extension: .xlsx spreadsheets go through
// LoadExcel, anything else is parsed as DBC.
func Load(path string, opts ...Option) (*Database, error) {
	if isSpreadsheet(path) {
		return LoadExcel(path, opts...)
	}
	return LoadDBC(path, opts...)
}

// AddMessage registers a message. A later definition of the same id
// replaces the earlier one.
func (db *Database) AddMessage(m *Message) {
	m.ID &= db.idMask
	db.messages[m.ID] = m
	for _, s := range m.Signals {
		s.win = newWindow(s)
		if _, ok := db.units[s.Name]; !ok {
			db.units[s.Name] = s.Unit
		}
	}
}

// Message returns the message with the given id.
func (db *Database) Message(id uint32) (*Message, bool) {
	m, ok := db.messages[id&db.idMask]
	return m, ok
}

// Decode implements Catalog.
func (db *Database) Decode(id uint32, payload []byte) (map[string]types.Value, error) {
	detail := fmt.Sprintf("0x%X", id)
	m, ok := db.messages[id&db.idMask]
	if !ok {
		return nil, types.NewError(types.ErrDecode, "decode", detail, ErrUnknownMessage)
	}
	if len(payload) < m.Length {
		return nil, types.NewError(types.ErrDecode, "decode", detail,
			fmt.Errorf("%w: %s has %d bytes, want %d", ErrShortPayload, m.Name, len(payload), m.Length))
	}

	muxSelected := int64(-1)
	if mux := m.multiplexer(); mux != nil {
		_, key, ok := mux.win.extract(payload)
		if !ok {
			return nil, types.NewError(types.ErrDecode, "decode", detail,
				fmt.Errorf("multiplexer %s does not fit payload", mux.Name))
		}
		muxSelected = key
	}

	out := make(map[string]types.Value, len(m.Signals))
	for _, s := range m.Signals {
		if s.MuxValue >= 0 && s.MuxValue != muxSelected {
			continue
		}
		raw, key, ok := s.win.extract(payload)
		if !ok {
			return nil, types.NewError(types.ErrDecode, "decode", detail,
				fmt.Errorf("signal %s does not fit payload", s.Name))
		}
		if db.decodeChoices && len(s.Choices) > 0 {
			if label, ok := s.Choices[key]; ok {
				out[s.Name] = types.Label(label)
				continue
			}
		}
		out[s.Name] = types.Number(rawNumber(raw, key, s.Signed, s.ValueType)*s.Factor + s.Offset)
	}
	return out, nil
}

// UnitOf implements Catalog. The first message defining a signal name wins.
func (db *Database) UnitOf(signal string) string {
	return db.units[signal]
}

// Messages implements Catalog.
func (db *Database) Messages() []MessageInfo {
	out := make([]MessageInfo, 0, len(db.messages))
	for _, m := range db.messages {
		names := make([]string, len(m.Signals))
		for i, s := range m.Signals {
			names[i] = s.Name
		}
		out = append(out, MessageInfo{
			ID:      m.ID,
			Name:    m.Name,
			Length:  m.Length,
			Sender:  m.Sender,
			Signals: names,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
