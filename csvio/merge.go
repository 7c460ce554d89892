package csvio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/justapithecus/canlog/iox"
	"github.com/justapithecus/canlog/merge"
	"github.com/justapithecus/canlog/types"
)

var errEmptyCSV = errors.New("empty csv")

// MergeFiles merges CSV files in order into chunks named after base in dir.
//
// The column union is planned from each file's header and first record,
// then every file is read again and its records streamed into the chunks,
// so memory does not grow with the number of rows.
func MergeFiles(dir, base string, paths []string, limit int, opts ...merge.Option) ([]Written, error) {
	sources := make([]merge.Source, len(paths))
	for i, path := range paths {
		src, err := readSource(path)
		if err != nil {
			return nil, err
		}
		sources[i] = src
	}

	layout, err := merge.Plan(sources, opts...)
	if err != nil {
		return nil, err
	}
	w, err := NewChunkWriter(dir, base, layout.Columns, layout.Units, limit)
	if err != nil {
		return nil, err
	}
	for i, path := range paths {
		if err := streamFile(w, layout, i, path); err != nil {
			w.Abort()
			return w.written, err
		}
	}
	return w.Close()
}

// readSource reads the header and first record of a CSV file.
func readSource(path string) (merge.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return merge.Source{}, types.NewError(types.ErrIO, "read_csv", "", err).InFile(path)
	}
	defer iox.DiscardClose(f)

	cr := newReader(f)
	header, err := readHeader(cr)
	if err != nil {
		return merge.Source{}, types.NewError(types.ErrStructural, "read_csv", "", err).InFile(path)
	}
	src := merge.Source{Name: path, Header: header}
	first, err := cr.Read()
	switch {
	case err == io.EOF:
	case err != nil:
		return merge.Source{}, types.NewError(types.ErrStructural, "read_csv", "", err).InFile(path)
	default:
		src.First = first
	}
	return src, nil
}

func streamFile(w *ChunkWriter, layout *merge.Layout, src int, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return types.NewError(types.ErrIO, "read_csv", "", err).InFile(path)
	}
	defer iox.DiscardClose(f)

	cr := newReader(f)
	cr.ReuseRecord = true
	if _, err := readHeader(cr); err != nil {
		return types.NewError(types.ErrStructural, "read_csv", "", err).InFile(path)
	}

	skip := layout.SkipFirst(src)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return types.NewError(types.ErrStructural, "read_csv", "", err).InFile(path)
		}
		if skip {
			skip = false
			continue
		}
		if _, err := layout.Write(w, src, rec); err != nil {
			return err
		}
	}
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

func readHeader(cr *csv.Reader) ([]string, error) {
	header, err := cr.Read()
	if err == io.EOF {
		return nil, errEmptyCSV
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], bom)
	}
	return header, nil
}
