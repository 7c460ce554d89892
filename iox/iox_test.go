package iox

import (
	"bytes"
	"errors"
	"testing"
)

type spyCloser struct{ closed bool }

func (s *spyCloser) Close() error { s.closed = true; return errors.New("ignored") }

func TestDiscardClose(t *testing.T) {
	s := &spyCloser{}
	DiscardClose(s)
	if !s.closed {
		t.Fatal("Close was not called")
	}
}

func TestCloseFunc(t *testing.T) {
	s := &spyCloser{}
	fn := CloseFunc(s)
	if s.closed {
		t.Fatal("Close called before invoking returned func")
	}
	fn()
	if !s.closed {
		t.Fatal("Close was not called")
	}
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) { return 2, errors.New("disk full") }

func TestCountingWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := NewCountingWriter(&buf)
	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("de"))
	if cw.Count() != 5 || buf.String() != "abcde" {
		t.Errorf("Count() = %d, buf = %q", cw.Count(), buf.String())
	}

	partial := NewCountingWriter(failWriter{})
	if _, err := partial.Write([]byte("hello")); err == nil {
		t.Fatal("expected error")
	}
	if partial.Count() != 2 {
		t.Errorf("Count() after short write = %d, want 2", partial.Count())
	}
}
