package types

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies a supported log source format.
type Format string

const (
	// FormatBusmaster is a BUSMASTER text log.
	FormatBusmaster Format = "busmaster"
	// FormatTRC is a PCAN-View TRC text trace.
	FormatTRC Format = "trc"
	// FormatMeasure is a binary measurement container.
	FormatMeasure Format = "measure"
)

// ParseFormat validates a format name. "auto" and "" yield the empty Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", "auto":
		return "", nil
	case FormatBusmaster:
		return FormatBusmaster, nil
	case FormatTRC:
		return FormatTRC, nil
	case FormatMeasure:
		return FormatMeasure, nil
	default:
		return "", fmt.Errorf("unknown format %q (want busmaster, trc, measure or auto)", s)
	}
}

// DetectFormat infers the format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".log", ".txt":
		return FormatBusmaster, nil
	case ".trc":
		return FormatTRC, nil
	case ".mfx":
		return FormatMeasure, nil
	default:
		return "", fmt.Errorf("cannot infer log format from %q", filepath.Base(path))
	}
}

// TimeColumn returns the time column name used for the format's tables.
func (f Format) TimeColumn() string {
	if f == FormatBusmaster {
		return TimeColumnClock
	}
	return TimeColumnSeconds
}

// OutputSuffix returns the suffix appended to an input stem for its decoded output.
func (f Format) OutputSuffix() string {
	if f == FormatMeasure {
		return "_decoded_latched"
	}
	return "_decoded"
}
