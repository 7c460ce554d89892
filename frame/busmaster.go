package frame

import (
	"strings"

	"github.com/justapithecus/canlog/timecodec"
	"github.com/justapithecus/canlog/types"
)

func busmasterHeader(line string) (Header, bool) {
	start, ok := timecodec.ParseBusmasterStart(line)
	if !ok {
		return Header{}, false
	}
	return Header{Start: start, HasStart: true}, true
}

// busmasterGrammar matches
//
//	<time> <Tx|Rx> <channel> <0xID> <type> <dlc> <bytes...>
type busmasterGrammar struct{}

func (busmasterGrammar) Name() string { return "busmaster" }

func (busmasterGrammar) Match(line string) (types.RawFrame, bool, error) {
	parts := strings.Fields(line)
	if len(parts) < 6 {
		return types.RawFrame{}, false, nil
	}
	idTok := parts[3]
	if !strings.HasPrefix(strings.ToLower(idTok), "0x") {
		return types.RawFrame{}, false, nil
	}

	if _, err := timecodec.ParseBusmasterToken(parts[0]); err != nil {
		return types.RawFrame{}, true, err
	}
	id, err := parseID(idTok)
	if err != nil {
		return types.RawFrame{}, true, err
	}
	dlc, err := parseLength(parts[5])
	if err != nil {
		return types.RawFrame{}, true, err
	}
	payload, err := parsePayload(parts[6:], dlc)
	if err != nil {
		return types.RawFrame{}, true, err
	}

	return types.RawFrame{
		TimeToken: parts[0],
		Direction: types.ParseDirection(parts[1]),
		ID:        id,
		Length:    dlc,
		Payload:   payload,
	}, true, nil
}
