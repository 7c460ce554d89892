package catalog

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding signal definitions.
const SheetName = "DBC"

// Spreadsheet columns, one signal per row after the header row.
const (
	colMessageID = iota
	colMessageName
	colLength
	colSignalName
	colStartBit
	colBitWidth
	colByteOrder
	colSigned
	colFactor
	colOffset
	colUnit
	excelMinColumns = colOffset + 1
)

func isSpreadsheet(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

// LoadExcel builds a Database from the DBC sheet of a spreadsheet.
// Rows sharing a message id accumulate signals on that message.
func LoadExcel(path string, opts ...Option) (*Database, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", SheetName, err)
	}

	db := newDatabase(opts...)
	var order []*Message
	byID := make(map[uint32]*Message)

	for idx, row := range rows {
		if idx == 0 || blankRow(row) {
			continue
		}
		if len(row) < excelMinColumns {
			return nil, fmt.Errorf("%s row %d: want at least %d columns, have %d",
				SheetName, idx+1, excelMinColumns, len(row))
		}

		id, err := parseExcelID(row[colMessageID])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", SheetName, idx+1, err)
		}
		msg, ok := byID[id]
		if !ok {
			length, err := strconv.Atoi(strings.TrimSpace(row[colLength]))
			if err != nil {
				return nil, fmt.Errorf("%s row %d: message length: %w", SheetName, idx+1, err)
			}
			msg = &Message{ID: id, Name: strings.TrimSpace(row[colMessageName]), Length: length}
			byID[id] = msg
			order = append(order, msg)
		}

		sig, err := parseExcelSignal(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", SheetName, idx+1, err)
		}
		msg.Signals = append(msg.Signals, sig)
	}

	for _, m := range order {
		db.AddMessage(m)
	}
	return db, nil
}

func parseExcelSignal(row []string) (*Signal, error) {
	sig := &Signal{
		Name:     strings.TrimSpace(row[colSignalName]),
		MuxValue: -1,
		Factor:   1,
	}
	if sig.Name == "" {
		return nil, fmt.Errorf("empty signal name")
	}

	var err error
	if sig.StartBit, err = strconv.Atoi(strings.TrimSpace(row[colStartBit])); err != nil {
		return nil, fmt.Errorf("start bit: %w", err)
	}
	if sig.Length, err = strconv.Atoi(strings.TrimSpace(row[colBitWidth])); err != nil {
		return nil, fmt.Errorf("bit width: %w", err)
	}
	if sig.Length < 1 || sig.Length > 64 {
		return nil, fmt.Errorf("bit width %d out of range", sig.Length)
	}

	switch strings.ToLower(strings.TrimSpace(row[colByteOrder])) {
	case "intel", "little", "little_endian", "1", "":
		sig.Order = LittleEndian
	case "motorola", "big", "big_endian", "0":
		sig.Order = BigEndian
	default:
		return nil, fmt.Errorf("unknown byte order %q", row[colByteOrder])
	}

	switch strings.ToLower(strings.TrimSpace(row[colSigned])) {
	case "signed", "-", "true", "yes":
		sig.Signed = true
	}

	if text := strings.TrimSpace(row[colFactor]); text != "" {
		if sig.Factor, err = strconv.ParseFloat(text, 64); err != nil {
			return nil, fmt.Errorf("factor: %w", err)
		}
	}
	if text := strings.TrimSpace(row[colOffset]); text != "" {
		if sig.Offset, err = strconv.ParseFloat(text, 64); err != nil {
			return nil, fmt.Errorf("offset: %w", err)
		}
	}
	if len(row) > colUnit {
		sig.Unit = strings.TrimSpace(row[colUnit])
	}
	return sig, nil
}

// parseExcelID accepts decimal or 0x-prefixed hex ids.
func parseExcelID(text string) (uint32, error) {
	text = strings.TrimSpace(text)
	base := 10
	if lower := strings.ToLower(text); strings.HasPrefix(lower, "0x") {
		text, base = text[2:], 16
	}
	v, err := strconv.ParseUint(text, base, 32)
	if err != nil {
		return 0, fmt.Errorf("message id: %w", err)
	}
	return uint32(v), nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
