package internal

import (
	"errors"
	"fmt"
)

var (
	ErrSourceUnavailable    = errors.New("source unavailable")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrRunTooLong           = errors.New("printable run too long")
)

// ScanError carries enough context to reproduce a failure.
type ScanError struct {
	Source   string
	Op       string // open, read, detect, cancel
	Detector string // empty unless Op == detect
	Offset   int64
	Err      error
}

func (e *ScanError) Error() string {
	msg := fmt.Sprintf("%s at 0x%X", e.Op, e.Offset)
	if e.Detector != "" {
		msg = e.Detector + ": " + msg
	}
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	return msg + ": " + e.Err.Error()
}

func (e *ScanError) Unwrap() error { return e.Err }

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
