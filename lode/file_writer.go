package lode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/justapithecus/lode/lode"
)

// ErrInvalidFilename is returned for sidecar names with path components.
var ErrInvalidFilename = errors.New("invalid sidecar filename")

// Sidecar content types.
const (
	ContentTypeCSV  = "text/csv"
	ContentTypePDF  = "application/pdf"
	ContentTypeJSON = "application/json"
)

// FileWriter uploads sidecar files (CSV chunks, reports) next to the run's
// dataset partitions, bypassing snapshot manifests.
type FileWriter interface {
	PutFile(ctx context.Context, filename, contentType string, data []byte) error
}

var _ FileWriter = (*LodeClient)(nil)

// PutFile writes a sidecar file under the run's files/ path, in the folder
// of its content type.
func (c *LodeClient) PutFile(ctx context.Context, filename, contentType string, data []byte) error {
	if filename == "" || strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	store, err := c.getOrCreateStore()
	if err != nil {
		return WrapInitError(err, c.config.Dataset)
	}

	path := c.FilePath(contentType, filename)
	return WrapPutError(store.Put(ctx, path, bytes.NewReader(data)), path)
}

// getOrCreateStore lazily initializes the Store from the factory.
func (c *LodeClient) getOrCreateStore() (lode.Store, error) {
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	return c.store, c.storeErr
}

// SidecarFolder maps a content type to its folder under files/. Parameters
// such as "; charset=utf-8" are ignored.
func SidecarFolder(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	switch strings.TrimSpace(strings.ToLower(mediaType)) {
	case ContentTypeCSV:
		return "tables"
	case ContentTypePDF, ContentTypeJSON:
		return "reports"
	default:
		return "other"
	}
}

// FilePath returns the store path of a sidecar file:
// datasets/<dataset>/partitions/source=<s>/day=<d>/run_id=<r>/files/<folder>/<name>
func (c *LodeClient) FilePath(contentType, filename string) string {
	return fmt.Sprintf("datasets/%s/partitions/source=%s/day=%s/run_id=%s/files/%s/%s",
		c.config.Dataset,
		c.config.Source,
		c.config.Day,
		c.config.RunID,
		SidecarFolder(contentType),
		filename,
	)
}

// StubFileWriter records PutFile calls for testing.
type StubFileWriter struct {
	mu    sync.Mutex
	Files []StubFileRecord
	Err   error
}

// StubFileRecord is a recorded file write.
type StubFileRecord struct {
	Filename    string
	ContentType string
	Data        []byte
}

// NewStubFileWriter creates a new stub file writer.
func NewStubFileWriter() *StubFileWriter {
	return &StubFileWriter{}
}

// PutFile records the call, or returns Err when set.
func (w *StubFileWriter) PutFile(_ context.Context, filename, contentType string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	w.Files = append(w.Files, StubFileRecord{
		Filename:    filename,
		ContentType: contentType,
		Data:        bytes.Clone(data),
	})
	return nil
}

var _ FileWriter = (*StubFileWriter)(nil)
