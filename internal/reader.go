package internal

import (
	"errors"
	"fmt"
	"io"
)

// Window is a contiguous slice of the source plus its absolute start offset.
// Data is only valid until the next call to WindowSource.Next.
type Window struct {
	Offset int64
	Data   []byte
}

// WindowSource yields fixed-size windows over a reader. The last window may be short.
// It is not restartable; once Next returns an error every later call returns the same error.
type WindowSource struct {
	r      io.Reader
	buf    []byte
	offset int64
	err    error
}

func NewWindowSource(r io.Reader, size int) (*WindowSource, error) {
	if size <= 0 {
		return nil, configError("window size must be > 0, got %d", size)
	}
	return &WindowSource{r: r, buf: make([]byte, size)}, nil
}

// Next returns the next window, or io.EOF once the source is exhausted.
// Read failures are reported as *ScanError wrapping ErrSourceUnavailable.
func (s *WindowSource) Next() (Window, error) {
	if s.err != nil {
		return Window{}, s.err
	}
	n, err := io.ReadFull(s.r, s.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		s.err = io.EOF
		return Window{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		// short final window; the next call reports EOF
		s.err = io.EOF
	default:
		s.err = &ScanError{Op: "read", Offset: s.offset + int64(n), Err: fmt.Errorf("%w: %w", ErrSourceUnavailable, err)}
		return Window{}, s.err
	}
	w := Window{Offset: s.offset, Data: s.buf[:n]}
	s.offset += int64(n)
	return w, nil
}

// Offset is the absolute position of the next window.
func (s *WindowSource) Offset() int64 { return s.offset }
