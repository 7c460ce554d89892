// Package frame extracts raw frames from text log lines.
//
// An Extractor holds an ordered list of line grammars and a set of header
// detectors. Header markers are recognized before any data grammar is tried.
// Grammars are tried in priority order and the first structural match wins.
package frame

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/justapithecus/canlog/types"
)

// Kind tags the outcome of extracting one line.
type Kind uint8

const (
	// KindSkip is not a data record (blank, comment, unknown header).
	KindSkip Kind = iota
	// KindFrame carries a RawFrame.
	KindFrame
	// KindHeader carries header metadata, possibly a session start.
	KindHeader
	// KindReject matched a grammar structurally but was malformed.
	KindReject
)

func (k Kind) String() string {
	switch k {
	case KindFrame:
		return "frame"
	case KindHeader:
		return "header"
	case KindReject:
		return "reject"
	default:
		return "skip"
	}
}

// Header is metadata carried by a header line.
type Header struct {
	// Start is the session start, valid when HasStart.
	Start    time.Time
	HasStart bool
	// Version is the file format version, when the line declares one.
	Version string
	// StartText is the human-readable start time line, when present.
	StartText string
}

// Result is the tagged outcome of Extract.
type Result struct {
	Kind    Kind
	Frame   types.RawFrame
	Header  Header
	Grammar string
	// Err describes a KindReject result.
	Err error
}

// Grammar matches one data-record line layout.
type Grammar interface {
	// Name identifies the grammar in logs and results.
	Name() string
	// Match reports whether line has this grammar's structure. A structural
	// match with invalid contents returns ok=true and a non-nil error.
	Match(line string) (f types.RawFrame, ok bool, err error)
}

// HeaderDetector recognizes a header line.
type HeaderDetector func(line string) (Header, bool)

// Extractor parses lines of one text format.
type Extractor struct {
	format   types.Format
	headers  []HeaderDetector
	grammars []Grammar
	comments []string
	idMask   uint32
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithIDMask overrides the identifier mask applied to every frame.
func WithIDMask(mask uint32) Option {
	return func(e *Extractor) { e.idMask = mask }
}

// New creates an Extractor for a text format.
func New(format types.Format, opts ...Option) (*Extractor, error) {
	e := &Extractor{format: format, idMask: types.IDMask}
	switch format {
	case types.FormatBusmaster:
		e.headers = []HeaderDetector{busmasterHeader}
		e.grammars = []Grammar{busmasterGrammar{}}
		e.comments = []string{"***"}
	case types.FormatTRC:
		e.headers = []HeaderDetector{trcStartTime, trcFileVersion, trcStartText}
		e.grammars = []Grammar{trcCounterGrammar{}, trcColumnGrammar{}}
		e.comments = []string{";"}
	default:
		return nil, fmt.Errorf("no text grammar for format %q", format)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Format returns the extractor's format.
func (e *Extractor) Format() types.Format {
	return e.format
}

// Grammars returns the grammar names in priority order.
func (e *Extractor) Grammars() []string {
	names := make([]string, len(e.grammars))
	for i, g := range e.grammars {
		names[i] = g.Name()
	}
	return names
}

// Extract classifies one line.
func (e *Extractor) Extract(line string) Result {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Result{Kind: KindSkip}
	}

	for _, detect := range e.headers {
		if h, ok := detect(trimmed); ok {
			return Result{Kind: KindHeader, Header: h}
		}
	}

	for _, prefix := range e.comments {
		if strings.HasPrefix(trimmed, prefix) {
			return Result{Kind: KindSkip}
		}
	}

	for _, g := range e.grammars {
		f, ok, err := g.Match(trimmed)
		if !ok {
			continue
		}
		if err != nil {
			return Result{
				Kind:    KindReject,
				Grammar: g.Name(),
				Err:     types.NewError(types.ErrParse, "extract", g.Name(), err),
			}
		}
		f.ID &= e.idMask
		return Result{Kind: KindFrame, Frame: f, Grammar: g.Name()}
	}

	return Result{Kind: KindSkip}
}

// parsePayload decodes hex byte tokens and checks them against the declared length.
func parsePayload(tokens []string, dlc int) ([]byte, error) {
	if len(tokens) != dlc {
		return nil, fmt.Errorf("declared length %d but %d payload bytes", dlc, len(tokens))
	}
	payload := make([]byte, dlc)
	for i, tok := range tokens {
		if len(tok) != 2 {
			return nil, fmt.Errorf("payload byte %q is not two hex digits", tok)
		}
		b, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("payload byte %q: %w", tok, err)
		}
		payload[i] = byte(b)
	}
	return payload, nil
}

// parseLength parses a declared payload length.
func parseLength(s string) (int, error) {
	dlc, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("length %q: %w", s, err)
	}
	if dlc < 0 || dlc > types.MaxPayloadLength {
		return 0, fmt.Errorf("length %d out of range 0..%d", dlc, types.MaxPayloadLength)
	}
	return dlc, nil
}

// parseID parses a hexadecimal identifier with an optional 0x prefix.
func parseID(s string) (uint32, error) {
	hex := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	id, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("id %q: %w", s, err)
	}
	return uint32(id), nil
}
