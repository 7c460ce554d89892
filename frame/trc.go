package frame

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/justapithecus/canlog/timecodec"
	"github.com/justapithecus/canlog/types"
)

// trcCounterLine matches v1.x records: "  12)   1059.9  Rx   0300  8  00 11 ...".
// The direction column is absent in v1.0 traces.
var trcCounterLine = regexp.MustCompile(
	`^\d+\)\s+(\d+(?:\.\d*)?)\s+(?:(Rx|Tx|Error|Warng)\s+)?([0-9A-Fa-f]+)\s+(\d+)((?:\s+\S+)*)$`,
)

// trcColumnLine matches v2.x records: "  12  1059.900 DT  0300 Rx 8  00 11 ...".
var trcColumnLine = regexp.MustCompile(
	`^\d+\s+(\d+(?:\.\d*)?)\s+([A-Za-z]{2})\s+([0-9A-Fa-f]+)\s+(Rx|Tx)\s+(\d+)((?:\s+\S+)*)$`,
)

func trcStartTime(line string) (Header, bool) {
	v, ok := strings.CutPrefix(line, ";$STARTTIME=")
	if !ok {
		return Header{}, false
	}
	days, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return Header{}, false
	}
	start, err := timecodec.FromOLEDate(days)
	if err != nil {
		return Header{}, false
	}
	return Header{Start: start, HasStart: true}, true
}

func trcFileVersion(line string) (Header, bool) {
	v, ok := strings.CutPrefix(line, ";$FILEVERSION=")
	if !ok {
		return Header{}, false
	}
	return Header{Version: strings.TrimSpace(v)}, true
}

func trcStartText(line string) (Header, bool) {
	rest, ok := strings.CutPrefix(line, ";")
	if !ok {
		return Header{}, false
	}
	v, ok := strings.CutPrefix(strings.TrimSpace(rest), "Start time:")
	if !ok {
		return Header{}, false
	}
	return Header{StartText: strings.TrimSpace(v)}, true
}

type trcCounterGrammar struct{}

func (trcCounterGrammar) Name() string { return "trc-counter" }

func (trcCounterGrammar) Match(line string) (types.RawFrame, bool, error) {
	m := trcCounterLine.FindStringSubmatch(line)
	if m == nil {
		return types.RawFrame{}, false, nil
	}
	dir := types.ParseDirection(m[2])
	if m[2] == "Error" || m[2] == "Warng" {
		dir = types.DirectionError
	}
	f, err := buildTRCFrame(m[1], dir, m[3], m[4], m[5])
	return f, true, err
}

type trcColumnGrammar struct{}

func (trcColumnGrammar) Name() string { return "trc-column" }

func (trcColumnGrammar) Match(line string) (types.RawFrame, bool, error) {
	m := trcColumnLine.FindStringSubmatch(line)
	if m == nil {
		return types.RawFrame{}, false, nil
	}
	dir := types.ParseDirection(m[4])
	if strings.EqualFold(m[2], "ER") {
		dir = types.DirectionError
	}
	f, err := buildTRCFrame(m[1], dir, m[3], m[5], m[6])
	return f, true, err
}

func buildTRCFrame(offset string, dir types.Direction, idTok, dlcTok, rest string) (types.RawFrame, error) {
	if _, err := timecodec.ParseTRCOffset(offset); err != nil {
		return types.RawFrame{}, err
	}
	id, err := parseID(idTok)
	if err != nil {
		return types.RawFrame{}, err
	}
	dlc, err := parseLength(dlcTok)
	if err != nil {
		return types.RawFrame{}, err
	}
	payload, err := parsePayload(strings.Fields(rest), dlc)
	if err != nil {
		return types.RawFrame{}, fmt.Errorf("id %s: %w", idTok, err)
	}
	return types.RawFrame{
		TimeToken: offset,
		Direction: dir,
		ID:        id,
		Length:    dlc,
		Payload:   payload,
	}, nil
}
