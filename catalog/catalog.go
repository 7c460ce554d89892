// Package catalog decodes raw frames into named signal values.
//
// The Catalog interface is what the pipeline depends on. Database is the
// DBC-backed implementation; it can be loaded from DBC text or from a
// spreadsheet with one signal per row.
package catalog

import (
	"errors"

	"github.com/justapithecus/canlog/types"
)

// Catalog maps message ids to named, scaled signals.
type Catalog interface {
	// Decode decodes one frame. Failures are recoverable and wrap types.ErrDecode.
	Decode(id uint32, payload []byte) (map[string]types.Value, error)
	// UnitOf returns a signal's physical unit, or "" if it declares none.
	UnitOf(signal string) string
	// Messages lists every defined message ordered by id.
	Messages() []MessageInfo
}

// MessageInfo describes one message for enumeration.
type MessageInfo struct {
	ID      uint32   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Length  int      `json:"length" yaml:"length"`
	Sender  string   `json:"sender,omitempty" yaml:"sender,omitempty"`
	Signals []string `json:"signals" yaml:"signals"`
}

var (
	// ErrUnknownMessage indicates the id is not defined in the catalog.
	ErrUnknownMessage = errors.New("unknown message id")

	// ErrShortPayload indicates fewer payload bytes than the message length.
	ErrShortPayload = errors.New("payload shorter than message length")

	// ErrHTMLContent indicates a catalog source that is an HTML page.
	ErrHTMLContent = errors.New("catalog source is HTML, not a DBC")
)
