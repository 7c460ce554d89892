package catalog

import (
	"fmt"
	"strings"

	"go.einride.tech/can/pkg/dbc"
)

// Pseudo-message holding signals not assigned to any real message.
const independentSignalsMessage = "VECTOR__INDEPENDENT_SIG_MSG"

// ParseDBC parses DBC text. The text is reflowed first, so statements split
// across lines are accepted. Statements the decoder has no use for (node
// attributes, environment variables) are ignored.
func ParseDBC(text string, opts ...Option) (*Database, error) {
	return parseDBC("catalog.dbc", text, opts...)
}

func parseDBC(filename, text string, opts ...Option) (*Database, error) {
	if LooksLikeHTML(text) {
		return nil, ErrHTMLContent
	}

	p := dbc.NewParser(filename, []byte(inlineValueTables(Reflow(text))))
	if err := p.Parse(); err != nil {
		return nil, err
	}

	db := newDatabase(opts...)
	var order []*Message
	// Keyed by the raw DBC id, which carries the extended flag.
	byID := make(map[uint32]*Message)
	signal := func(id dbc.MessageID, name dbc.Identifier) *Signal {
		msg, ok := byID[uint32(id)]
		if !ok {
			return nil
		}
		for _, s := range msg.Signals {
			if s.Name == string(name) {
				return s
			}
		}
		return nil
	}

	for _, def := range p.Defs() {
		switch def := def.(type) {
		case *dbc.VersionDef:
			db.Version = def.Version
		case *dbc.NodesDef:
			db.Nodes = make([]string, len(def.NodeNames))
			for i, n := range def.NodeNames {
				db.Nodes[i] = string(n)
			}
		case *dbc.MessageDef:
			msg, err := messageFromDef(def)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", def.Pos, err)
			}
			byID[uint32(def.MessageID)] = msg
			order = append(order, msg)
		case *dbc.CommentDef:
			switch def.ObjectType {
			case dbc.ObjectTypeMessage:
				if msg, ok := byID[uint32(def.MessageID)]; ok {
					msg.Comment = def.Comment
				}
			case dbc.ObjectTypeSignal:
				if s := signal(def.MessageID, def.SignalName); s != nil {
					s.Comment = def.Comment
				}
			}
		case *dbc.ValueTableDef:
			db.ValueTables[string(def.TableName)] = choicesFromDefs(def.ValueDescriptions)
		case *dbc.ValueDescriptionsDef:
			if def.ObjectType != dbc.ObjectTypeSignal {
				continue
			}
			if s := signal(def.MessageID, def.SignalName); s != nil {
				s.Choices = choicesFromDefs(def.ValueDescriptions)
			}
		case *dbc.SignalValueTypeDef:
			s := signal(def.MessageID, def.SignalName)
			if s == nil {
				continue
			}
			switch def.SignalValueType {
			case 1:
				s.ValueType = ValueFloat32
			case 2:
				s.ValueType = ValueFloat64
			}
		}
	}

	for _, m := range order {
		if m.Name == independentSignalsMessage {
			continue
		}
		db.AddMessage(m)
	}
	return db, nil
}

func messageFromDef(def *dbc.MessageDef) (*Message, error) {
	msg := &Message{
		ID:      uint32(def.MessageID),
		Name:    string(def.Name),
		Length:  int(def.Size),
		Sender:  string(def.Transmitter),
		Signals: make([]*Signal, 0, len(def.Signals)),
	}
	for _, sd := range def.Signals {
		if sd.Size < 1 || sd.Size > 64 {
			return nil, fmt.Errorf("signal %s: length %d out of range", sd.Name, sd.Size)
		}
		sig := &Signal{
			Name:        string(sd.Name),
			StartBit:    int(sd.StartBit),
			Length:      int(sd.Size),
			Order:       LittleEndian,
			Signed:      sd.IsSigned,
			Factor:      sd.Factor,
			Offset:      sd.Offset,
			Minimum:     sd.Minimum,
			Maximum:     sd.Maximum,
			Unit:        sd.Unit,
			Multiplexer: sd.IsMultiplexerSwitch,
			MuxValue:    -1,
		}
		if sd.IsBigEndian {
			sig.Order = BigEndian
		}
		if sd.IsMultiplexed {
			sig.MuxValue = int64(sd.MultiplexerSwitch)
		}
		for _, r := range sd.Receivers {
			sig.Receivers = append(sig.Receivers, string(r))
		}
		msg.Signals = append(msg.Signals, sig)
	}
	return msg, nil
}

func choicesFromDefs(defs []dbc.ValueDescriptionDef) map[int64]string {
	out := make(map[int64]string, len(defs))
	for _, d := range defs {
		out[int64(d.Value)] = d.Description
	}
	return out
}

// inlineValueTables rewrites "VAL_ <id> <signal> <table>;" references into
// the table's value pairs. Unknown tables drop the statement.
func inlineValueTables(text string) string {
	lines := strings.Split(text, "\n")
	tables := make(map[string]string)
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "VAL_TABLE_" {
			continue
		}
		body := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "VAL_TABLE_"))
		body = strings.TrimSpace(strings.TrimPrefix(body, fields[1]))
		tables[fields[1]] = strings.TrimSpace(strings.TrimSuffix(body, ";"))
	}
	if len(tables) == 0 {
		return text
	}

	for i, line := range lines {
		fields := strings.Fields(strings.ReplaceAll(line, ";", " ; "))
		// VAL_ <id> <signal> <table> ;
		if len(fields) != 5 || fields[0] != "VAL_" || fields[4] != ";" || strings.Contains(fields[3], `"`) {
			continue
		}
		pairs, ok := tables[fields[3]]
		if !ok {
			lines[i] = ""
			continue
		}
		lines[i] = "VAL_ " + fields[1] + " " + fields[2] + " " + pairs + " ;"
	}
	return strings.Join(lines, "\n")
}
