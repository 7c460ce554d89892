// Package csvio streams decoded tables and merged rows into row-bounded CSV
// chunk files, and merges CSV files already on disk.
package csvio

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/justapithecus/canlog/iox"
	"github.com/justapithecus/canlog/merge"
	"github.com/justapithecus/canlog/types"
)

// Extension is the file extension of written chunks.
const Extension = ".csv"

const bom = "\ufeff"

// Written describes one chunk file on disk.
type Written struct {
	Path  string
	Rows  int
	Bytes int64
}

// ChunkWriter writes rows to dir as ChunkName(base, i) + ".csv", starting a
// new chunk every limit rows. Each chunk is a complete table with its own
// header row; the unit row goes to the first chunk only. Chunks are written
// to a temporary name and renamed into place when complete.
//
// ChunkWriter implements merge.RowSink.
type ChunkWriter struct {
	dir     string
	base    string
	columns []string
	units   []string
	limit   int

	cur     *chunkFile
	written []Written
}

var _ merge.RowSink = (*ChunkWriter)(nil)

type chunkFile struct {
	path  string
	tmp   *os.File
	count *iox.CountingWriter
	out   *csv.Writer
	rows  int
}

// NewChunkWriter creates dir if needed. A non-positive limit writes a single
// chunk. units may be nil.
func NewChunkWriter(dir, base string, columns, units []string, limit int) (*ChunkWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, types.NewError(types.ErrIO, "write_csv", dir, err)
	}
	return &ChunkWriter{
		dir:     dir,
		base:    base,
		columns: columns,
		units:   units,
		limit:   limit,
	}, nil
}

// WriteRow appends one data row.
func (w *ChunkWriter) WriteRow(record []string) error {
	if w.cur == nil || (w.limit > 0 && w.cur.rows >= w.limit) {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	if err := w.cur.out.Write(record); err != nil {
		return types.NewError(types.ErrIO, "write_csv", "", err).InFile(w.cur.path)
	}
	w.cur.rows++
	return nil
}

// Close completes the last chunk and returns every chunk written. With no
// rows written, a single chunk holding the header is produced.
func (w *ChunkWriter) Close() ([]Written, error) {
	if w.cur == nil {
		if err := w.open(); err != nil {
			return w.written, err
		}
	}
	err := w.finish()
	return w.written, err
}

// Abort discards the chunk in progress. Completed chunks stay on disk.
func (w *ChunkWriter) Abort() {
	if w.cur == nil {
		return
	}
	iox.DiscardClose(w.cur.tmp)
	_ = os.Remove(w.cur.tmp.Name())
	w.cur = nil
}

func (w *ChunkWriter) rotate() error {
	if w.cur != nil {
		if err := w.finish(); err != nil {
			return err
		}
	}
	return w.open()
}

func (w *ChunkWriter) open() error {
	i := len(w.written)
	path := filepath.Join(w.dir, merge.ChunkName(w.base, i)+Extension)
	tmp, err := os.CreateTemp(w.dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return types.NewError(types.ErrIO, "write_csv", "", err).InFile(path)
	}

	f := &chunkFile{path: path, tmp: tmp, count: iox.NewCountingWriter(tmp)}
	f.out = csv.NewWriter(f.count)
	w.cur = f

	err = f.out.Write(w.columns)
	if err == nil && i == 0 && w.units != nil {
		err = f.out.Write(w.units)
	}
	if err != nil {
		w.Abort()
		return types.NewError(types.ErrIO, "write_csv", "", err).InFile(path)
	}
	return nil
}

func (w *ChunkWriter) finish() error {
	f := w.cur
	f.out.Flush()
	if err := f.out.Error(); err != nil {
		w.Abort()
		return types.NewError(types.ErrIO, "write_csv", "", err).InFile(f.path)
	}
	w.cur = nil
	if err := f.tmp.Close(); err != nil {
		_ = os.Remove(f.tmp.Name())
		return types.NewError(types.ErrIO, "write_csv", "", err).InFile(f.path)
	}
	if err := os.Rename(f.tmp.Name(), f.path); err != nil {
		_ = os.Remove(f.tmp.Name())
		return types.NewError(types.ErrIO, "write_csv", "", err).InFile(f.path)
	}
	w.written = append(w.written, Written{Path: f.path, Rows: f.rows, Bytes: f.count.Count()})
	return nil
}

// WriteTable streams the rows of t into chunks of at most limit rows. The
// unit row is written when t carries units.
func WriteTable(dir, base string, t *types.Table, limit int) ([]Written, error) {
	var units []string
	if t.HasUnits() {
		units = t.UnitCells()
	}
	w, err := NewChunkWriter(dir, base, t.Columns, units, limit)
	if err != nil {
		return nil, err
	}

	cells := make([]string, 0, len(t.Columns))
	for _, r := range t.Rows {
		cells = t.AppendCells(cells, r)
		if err := w.WriteRow(cells); err != nil {
			w.Abort()
			return w.written, err
		}
	}
	return w.Close()
}
