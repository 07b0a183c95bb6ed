package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

var ErrFailFast = errors.New("fail-fast: source error") // sentinel error

// DumpScanner expands roots into sources and scans each with its own Driver.
// Drivers share nothing, so sources run in parallel on an ants pool.
type DumpScanner struct {
	statsEvery time.Duration
}

func NewDumpScanner() *DumpScanner { return &DumpScanner{statsEvery: 2 * time.Second} }

// Scan is the main pipeline.
func (s *DumpScanner) Scan(ctx context.Context, opts ScanOptions, rs *ResultSink) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	opts.Prepare()
	stats := rs.stats
	sink := rs.Sink()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	srcCh := make(chan SourceRef, 256)
	var wg sync.WaitGroup

	pool, err := ants.NewPoolWithFunc(opts.Threads, func(i interface{}) {
		defer wg.Done()
		if ctx.Err() != nil {
			return
		}
		ref := i.(SourceRef)
		if err := s.scanSource(ctx, ref, opts, rs, sink); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return
			}
			rs.Error(ref.String(), err)
			if opts.FailFast {
				cancel(fmt.Errorf("%w: %w", ErrFailFast, err))
			}
			return
		}
		stats.SourcesScanned.Add(1)
	})
	if err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	defer pool.Release()

	// walker
	walkErr := make(chan error, 1)
	go func() {
		defer close(srcCh)
		walkErr <- ExpandRoots(ctx, opts, func(ref SourceRef) error {
			stats.SourcesFound.Add(1)
			select {
			case srcCh <- ref:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}, func(path string, err error) error {
			rs.Error(path, err)
			if opts.FailFast {
				return fmt.Errorf("%w: %w", ErrFailFast, err)
			}
			return nil
		})
	}()

	ticker := time.NewTicker(s.statsEvery)
	defer ticker.Stop()

loop:
	for {
		select {
		case ref, ok := <-srcCh:
			if !ok {
				break loop
			}
			wg.Add(1)
			if err := pool.Invoke(ref); err != nil {
				wg.Done()
				logrus.WithError(err).Error("submit task")
				if opts.FailFast {
					cancel(err)
				}
			}
		case <-ticker.C:
			logrus.Infof("Stats: found=%d scanned=%d bytes=%d strings=%d patterns=%d errors=%d",
				stats.SourcesFound.Load(), stats.SourcesScanned.Load(), stats.Bytes.Load(),
				stats.Strings.Load(), stats.Patterns.Load(), stats.Errors.Load())
		case <-ctx.Done():
			break loop
		}
	}
	wg.Wait()

	if err := context.Cause(ctx); err != nil {
		return err
	}
	return <-walkErr
}

func (s *DumpScanner) scanSource(ctx context.Context, ref SourceRef, opts ScanOptions, rs *ResultSink, sink Sink) error {
	name := ref.String()
	defer rs.Done(name)
	rc, size, err := OpenSource(ctx, ref)
	if err != nil {
		return err
	}
	defer rc.Close()

	var r io.Reader = rc
	if opts.Progress && opts.Threads == 1 {
		bar := progressbar.DefaultBytes(size, name)
		defer bar.Finish()
		r = io.TeeReader(rc, bar)
	}

	d, err := NewDriver(opts.Config, sink)
	if err != nil {
		return err
	}
	err = d.Run(ctx, name, r)
	rs.stats.Bytes.Add(d.BytesScanned())
	logrus.WithFields(logrus.Fields{
		"source":  name,
		"bytes":   d.BytesScanned(),
		"windows": d.Windows(),
		"state":   d.State(),
	}).Info("Source scanned")
	return err
}
