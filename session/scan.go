package session

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/justapithecus/canlog/frame"
	"github.com/justapithecus/canlog/iox"
	"github.com/justapithecus/canlog/measure"
	"github.com/justapithecus/canlog/types"
)

// FileInfo is what probing learns about an input file before decoding.
type FileInfo struct {
	Path   string
	Format types.Format
	// Start is the embedded session start, valid when HasStart.
	Start    time.Time
	HasStart bool
	// Version is the declared file format version, if any.
	Version string
	// StartText is the human-readable start line, if any.
	StartText string
	// Index is the file's position in the caller's selection.
	Index int
	// Err is set when the file could not be scanned.
	Err error
}

// Scan reads each file's header in parallel and returns the files in
// processing order: ascending session start, then files without a start in
// selection order.
func (r *Reconstructor) Scan(ctx context.Context, paths []string) ([]FileInfo, error) {
	infos := make([]FileInfo, len(paths))

	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			defer func() { <-sem }()
			infos[i] = r.scanFile(path)
			infos[i].Index = i
		}(i, path)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	SortByStart(infos)
	return infos, nil
}

// SortByStart orders infos by session start. Files without a start sort last
// and keep their relative selection order.
func SortByStart(infos []FileInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		a, b := infos[i], infos[j]
		if a.HasStart != b.HasStart {
			return a.HasStart
		}
		if a.HasStart && !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.Index < b.Index
	})
}

func (r *Reconstructor) formatOf(path string) (types.Format, error) {
	if r.format != "" {
		return r.format, nil
	}
	return types.DetectFormat(path)
}

func (r *Reconstructor) scanFile(path string) FileInfo {
	info := FileInfo{Path: path}
	format, err := r.formatOf(path)
	if err != nil {
		info.Err = types.NewError(types.ErrStructural, "scan", "", err).InFile(path)
		return info
	}
	info.Format = format

	if format == types.FormatMeasure {
		r.scanMeasure(&info)
		return info
	}
	r.scanText(&info)
	return info
}

// scanText scans header lines up to the first data record that follows a
// session start. Records before any start do not end the scan.
func (r *Reconstructor) scanText(info *FileInfo) {
	ext, err := frame.New(info.Format, frame.WithIDMask(r.idMask))
	if err != nil {
		info.Err = types.NewError(types.ErrStructural, "scan", "", err).InFile(info.Path)
		return
	}

	f, err := os.Open(info.Path)
	if err != nil {
		info.Err = types.NewError(types.ErrIO, "scan", "", err).InFile(info.Path)
		return
	}
	defer iox.DiscardClose(f)

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		res := ext.Extract(sc.Text())
		switch res.Kind {
		case frame.KindHeader:
			if res.Header.Version != "" {
				info.Version = res.Header.Version
			}
			if res.Header.StartText != "" {
				info.StartText = res.Header.StartText
			}
			if res.Header.HasStart && !info.HasStart {
				info.Start = res.Header.Start
				info.HasStart = true
			}
		case frame.KindFrame, frame.KindReject:
			if info.HasStart {
				return
			}
		}
	}
	if err := sc.Err(); err != nil {
		info.Err = types.NewError(types.ErrIO, "scan", "", err).InFile(info.Path)
	}
}

func (r *Reconstructor) scanMeasure(info *FileInfo) {
	f, err := os.Open(info.Path)
	if err != nil {
		info.Err = types.NewError(types.ErrIO, "scan", "", err).InFile(info.Path)
		return
	}
	defer iox.DiscardClose(f)

	rd, err := measure.NewReader(bufio.NewReader(f))
	if err != nil {
		info.Err = types.NewError(types.ErrStructural, "scan", "container header", err).InFile(info.Path)
		return
	}
	h := rd.Header()
	info.Version = h.Version
	info.StartText = h.Source
	if start, ok := h.Start(); ok {
		info.Start = start
		info.HasStart = true
		info.StartText = fmt.Sprintf("%s %s", start.Format(time.RFC3339Nano), h.Source)
	}
}
