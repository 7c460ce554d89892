package session

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/justapithecus/canlog/catalog"
	"github.com/justapithecus/canlog/frame"
	"github.com/justapithecus/canlog/iox"
	"github.com/justapithecus/canlog/measure"
	"github.com/justapithecus/canlog/timecodec"
	"github.com/justapithecus/canlog/types"
)

// maxLoggedPerFile caps debug logging of recoverable errors per file.
const maxLoggedPerFile = 5

// decodeText streams a text log line by line.
func (r *Reconstructor) decodeText(ctx context.Context, info FileInfo, b *builder, rep *FileReport) error {
	ext, err := frame.New(info.Format, frame.WithIDMask(r.idMask))
	if err != nil {
		return types.NewError(types.ErrStructural, "reconstruct", "", err).InFile(info.Path)
	}

	f, err := os.Open(info.Path)
	if err != nil {
		return types.NewError(types.ErrIO, "open", "", err).InFile(info.Path)
	}
	defer iox.DiscardClose(f)

	parseToken := timecodec.ParseTRCOffset
	if info.Format == types.FormatBusmaster {
		parseToken = timecodec.ParseBusmasterToken
	}

	var tc *timecodec.Context
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		rep.Lines++
		if rep.Lines%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		res := ext.Extract(sc.Text())
		switch res.Kind {
		case frame.KindHeader:
			if !res.Header.HasStart {
				continue
			}
			if tc == nil {
				tc = timecodec.NewContext(res.Header.Start)
				continue
			}
			rep.Rollovers += tc.Rollovers
			tc.Reset(res.Header.Start)

		case frame.KindReject:
			rep.ParseErrors++
			r.logRecoverable(info, rep, res.Err)

		case frame.KindFrame:
			if tc == nil {
				rep.Unanchored++
				continue
			}
			rep.Frames++
			fr := res.Frame
			if fr.Direction == types.DirectionError {
				rep.ErrorFrames++
				continue
			}
			parts, err := parseToken(fr.TimeToken)
			if err != nil {
				rep.ParseErrors++
				r.logRecoverable(info, rep, err)
				continue
			}
			if info.Format == types.FormatBusmaster && parts.Hour > 23 {
				b.elapsed = true
			}
			r.apply(info, b, rep, tc.ToInstant(parts), fr.TimeToken, fr.ID, fr.Payload)
		}
	}
	if tc != nil {
		rep.Rollovers += tc.Rollovers
	}
	if err := sc.Err(); err != nil {
		return types.NewError(types.ErrIO, "read", "line "+strconv.Itoa(rep.Lines+1), err).InFile(info.Path)
	}
	return nil
}

type stampedFrame struct {
	seconds float64
	id      uint32
	payload []byte
}

// decodeMeasure reads every CAN group of a container, orders the frames by
// timestamp across groups, then latches them.
func (r *Reconstructor) decodeMeasure(ctx context.Context, info FileInfo, b *builder, rep *FileReport) error {
	f, err := os.Open(info.Path)
	if err != nil {
		return types.NewError(types.ErrIO, "open", "", err).InFile(info.Path)
	}
	defer iox.DiscardClose(f)

	rd, err := measure.NewReader(bufio.NewReader(f))
	if err != nil {
		return types.NewError(types.ErrStructural, "read_container", "header", err).InFile(info.Path)
	}

	var frames []stampedFrame
	for {
		g, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			var fe *measure.FrameError
			if !errors.As(err, &fe) {
				return types.NewError(types.ErrIO, "read_container", "", err).InFile(info.Path)
			}
			if fe.IsFatal() {
				return types.NewError(types.ErrStructural, "read_container", "", err).InFile(info.Path)
			}
			fields := rep.fields()
			fields["error"] = err.Error()
			r.logger.Warn("skipping channel group", fields)
			continue
		}
		rep.Lines += g.Len()
		for i := range g.Timestamps {
			frames = append(frames, stampedFrame{seconds: g.Timestamps[i], id: g.IDs[i] & r.idMask, payload: g.Payloads[i]})
		}
	}

	sort.SliceStable(frames, func(i, j int) bool { return frames[i].seconds < frames[j].seconds })

	tc := timecodec.NewContext(info.Start)
	for i, fr := range frames {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		rep.Frames++
		parts, err := timecodec.ParseSeconds(fr.seconds)
		if err != nil {
			rep.ParseErrors++
			r.logRecoverable(info, rep, err)
			continue
		}
		r.apply(info, b, rep, tc.ToInstant(parts), "", fr.id, fr.payload)
	}
	return nil
}

// apply decodes one frame and latches it. Decode failures emit no row.
func (r *Reconstructor) apply(info FileInfo, b *builder, rep *FileReport, instant time.Time, token string, id uint32, payload []byte) {
	values, err := r.catalog.Decode(id, payload)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownMessage) {
			rep.UnknownIDs++
			return
		}
		rep.DecodeErrors++
		r.logRecoverable(info, rep, err)
		return
	}
	rep.Decoded++
	b.add(instant, token, id, values)
}

func (r *Reconstructor) logRecoverable(info FileInfo, rep *FileReport, err error) {
	if rep.Skipped() > maxLoggedPerFile {
		return
	}
	var pe *types.PipelineError
	if errors.As(err, &pe) {
		err = pe.InFile(info.Path)
	}
	fields := rep.fields()
	fields["line"] = rep.Lines
	fields["error"] = err.Error()
	r.logger.Debug("record skipped", fields)
}
