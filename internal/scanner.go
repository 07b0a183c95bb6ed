package internal

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

var ErrDriverUsed = errors.New("driver already used") // drivers are single-shot

type State int

const (
	StateIdle State = iota
	StateScanning
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Sink receives the three output channels. A nil channel is not subscribed
// and its detector is skipped.
type Sink struct {
	Hex      func(source, text string)
	Strings  func(Finding)
	Patterns func(Finding)
}

// Driver runs one scan pass over one source. It owns the carry state of
// every detector and is not resumable.
type Driver struct {
	cfg     Config
	sink    Sink
	matcher *SignatureMatcher
	runs    *RunExtractor

	state   State
	bytes   int64
	windows int64
}

func NewDriver(cfg Config, sink Sink) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m, err := NewSignatureMatcher(cfg.Signatures)
	if err != nil {
		return nil, err
	}
	re, err := NewRunExtractor(cfg.MinStringLength, cfg.MaxRunLength, cfg.RunPolicy)
	if err != nil {
		return nil, err
	}
	return &Driver{cfg: cfg, sink: sink, matcher: m, runs: re}, nil
}

func (d *Driver) State() State { return d.state }

// BytesScanned is the number of source bytes consumed so far.
func (d *Driver) BytesScanned() int64 { return d.bytes }

// Windows is the number of windows read so far.
func (d *Driver) Windows() int64 { return d.windows }

// Run pulls windows from r until EOF, feeding each to the subscribed detectors.
// The first read error or cancellation moves the driver to StateFailed.
func (d *Driver) Run(ctx context.Context, name string, r io.Reader) error {
	if d.state != StateIdle {
		return fmt.Errorf("%w: state %s", ErrDriverUsed, d.state)
	}
	d.state = StateScanning
	if err := d.run(ctx, name, r); err != nil {
		d.state = StateFailed
		var se *ScanError
		if errors.As(err, &se) && se.Source == "" {
			se.Source = name
		}
		return err
	}
	d.state = StateDone
	return nil
}

func (d *Driver) run(ctx context.Context, name string, r io.Reader) error {
	src, err := NewWindowSource(r, d.cfg.WindowSize)
	if err != nil {
		return err
	}
	log := logrus.WithField("source", name)

	var (
		carry []byte
		open  *OpenRun
	)
	for {
		if err := ctx.Err(); err != nil {
			return &ScanError{Op: "cancel", Offset: src.Offset(), Err: err}
		}
		w, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		d.windows++
		d.bytes += int64(len(w.Data))

		if d.sink.Hex != nil {
			text, err := RenderHex(w, d.cfg.BytesPerRow)
			if err != nil {
				return err
			}
			d.sink.Hex(name, text)
		}
		if d.sink.Patterns != nil {
			var found []Finding
			found, carry = d.matcher.Scan(w, carry)
			d.emit(name, found, d.sink.Patterns)
		}
		if d.sink.Strings != nil {
			var found []Finding
			found, open, err = d.runs.Scan(w, open)
			d.emit(name, found, d.sink.Strings)
			if err != nil {
				return err
			}
		}
	}
	if d.sink.Strings != nil {
		d.emit(name, d.runs.Flush(open), d.sink.Strings)
	}
	log.WithFields(logrus.Fields{"bytes": d.BytesScanned(), "windows": d.Windows()}).Debug("source scanned")
	return nil
}

func (d *Driver) emit(name string, found []Finding, fn func(Finding)) {
	for _, f := range found {
		f.Source = name
		fn(f)
	}
}
