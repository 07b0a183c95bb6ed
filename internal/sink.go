package internal

import (
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// ResultSink prints the three channels, counts findings and optionally
// mirrors them into files. Safe for concurrent drivers.
type ResultSink struct {
	opts  ScanOptions
	out   io.Writer
	stats *AppStats

	outMu   sync.Mutex
	allMu   sync.Mutex
	all     *os.File
	files   map[string]map[string]*os.File // source -> path -> file
	filesMu sync.Mutex
}

// NewResultSink writes to out unless opts.OutDir is set, in which case each
// source gets <base>.hex, <base>.strings.txt and <base>.patterns.txt there
// (see OutputBase). Open, write and close failures count as errors.
func NewResultSink(opts ScanOptions, out io.Writer, stats *AppStats) *ResultSink {
	stats.Start()
	return &ResultSink{opts: opts, out: out, stats: stats, files: make(map[string]map[string]*os.File)}
}

// Sink returns the channels enabled by the options.
func (r *ResultSink) Sink() Sink {
	var s Sink
	if !r.opts.NoHex {
		s.Hex = func(source, text string) {
			r.write(source, ".hex", text)
		}
	}
	if !r.opts.NoStrings {
		s.Strings = func(f Finding) {
			r.stats.Strings.Add(1)
			r.finding(f, ".strings.txt")
		}
	}
	if !r.opts.NoPatterns {
		s.Patterns = func(f Finding) {
			r.stats.Patterns.Add(1)
			logrus.WithFields(logrus.Fields{"source": f.Source, "offset": f.Offset, "signature": f.Name}).Debug("Pattern found")
			r.finding(f, ".patterns.txt")
		}
	}
	return s
}

// Error records a failed source.
func (r *ResultSink) Error(source string, err error) {
	r.stats.Errors.Add(1)
	fields := logrus.Fields{"source": source, "err": err}
	var se *ScanError
	if errors.As(err, &se) {
		fields["offset"] = se.Offset
		fields["op"] = se.Op
		if se.Detector != "" {
			fields["detector"] = se.Detector
		}
	}
	logrus.WithFields(fields).Error("scan error")
}

func (r *ResultSink) finding(f Finding, suffix string) {
	line := f.Line() + "\n"
	r.write(f.Source, suffix, line)
	if r.opts.SaveFindingsFile == "" {
		return
	}
	r.allMu.Lock()
	defer r.allMu.Unlock()
	if r.all == nil {
		fh, err := os.OpenFile(r.opts.SaveFindingsFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			r.Error(f.Source, fmt.Errorf("open findings file: %w", err))
			return
		}
		r.all = fh
	}
	if _, err := io.WriteString(r.all, f.Source+"\t"+line); err != nil {
		r.Error(f.Source, fmt.Errorf("write findings file: %w", err))
	}
}

// OutputBase is the per-source file prefix under OutDir. The hash suffix keeps
// sources that sanitize to the same name apart.
func OutputBase(outDir, source string) string {
	h := fnv.New32a()
	_, _ = io.WriteString(h, source)
	return filepath.Join(outDir, fmt.Sprintf("%s.%08x", Sanitize(source), h.Sum32()))
}

func (r *ResultSink) write(source, suffix, text string) {
	if r.opts.OutDir == "" {
		r.outMu.Lock()
		_, _ = io.WriteString(r.out, text)
		r.outMu.Unlock()
		return
	}
	path := OutputBase(r.opts.OutDir, source) + suffix
	r.filesMu.Lock()
	defer r.filesMu.Unlock()
	files := r.files[source]
	fh, ok := files[path]
	if !ok {
		if err := os.MkdirAll(r.opts.OutDir, 0755); err != nil {
			r.Error(source, fmt.Errorf("create output folder: %w", err))
			return
		}
		var err error
		fh, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			r.Error(source, fmt.Errorf("open output file: %w", err))
			return
		}
		if files == nil {
			files = make(map[string]*os.File, 3)
			r.files[source] = files
		}
		files[path] = fh
	}
	if _, err := io.WriteString(fh, text); err != nil {
		r.Error(source, fmt.Errorf("write %s: %w", path, err))
	}
}

// Done releases the output files of one source. Called once its Driver returns.
func (r *ResultSink) Done(source string) {
	r.filesMu.Lock()
	files := r.files[source]
	delete(r.files, source)
	r.filesMu.Unlock()
	for path, fh := range files {
		if err := fh.Close(); err != nil {
			r.Error(source, fmt.Errorf("close %s: %w", path, err))
		}
	}
}

// OpenFiles is the number of per-source files currently held open.
func (r *ResultSink) OpenFiles() int {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()
	n := 0
	for _, files := range r.files {
		n += len(files)
	}
	return n
}

// Close flushes and closes every file the sink opened.
func (r *ResultSink) Close() error {
	var errs []error
	r.filesMu.Lock()
	for _, files := range r.files {
		for _, fh := range files {
			errs = append(errs, fh.Close())
		}
	}
	r.files = map[string]map[string]*os.File{}
	r.filesMu.Unlock()
	r.allMu.Lock()
	if r.all != nil {
		errs = append(errs, r.all.Close())
		r.all = nil
	}
	r.allMu.Unlock()
	return errors.Join(errs...)
}

// Summary is the closing report line block.
func (r *ResultSink) Summary() string {
	s := r.stats
	return fmt.Sprintf(
		"\n======= Scan finished in %s =======\nSources scanned: %d\nBytes scanned: %d\nStrings found: %d\nPatterns found: %d\nErrors: %d\n",
		s.Elapsed(), s.SourcesScanned.Load(), s.Bytes.Load(), s.Strings.Load(), s.Patterns.Load(), s.Errors.Load(),
	)
}

func Sanitize(s string) string {
	r := strings.NewReplacer(
		string(os.PathSeparator), "_", "/", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_",
	)
	return r.Replace(s)
}
