package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
	"github.com/sirupsen/logrus"
)

const maxArchiveFiles = 10000 // zip-bomb protection

var errArchiveLimit = errors.New("archive file limit reached")

// IsArchive by extension. O(1) map lookup
var archiveExt = map[string]struct{}{
	".zip": {}, ".tar": {}, ".gz": {}, ".bz2": {}, ".xz": {},
	".rar": {}, ".br": {}, ".lz4": {}, ".lz": {}, ".mz": {},
	".sz": {}, ".s2": {}, ".zz": {}, ".zst": {}, ".7z": {},
}

// SourceRef names one byte source: a plain file, or an entry inside an archive.
type SourceRef struct {
	Path  string
	Inner string
}

func (s SourceRef) String() string {
	if s.Inner == "" {
		return s.Path
	}
	return s.Path + "/" + s.Inner
}

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var errs []error
	for _, c := range m.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// OpenSource opens ref for sequential reading and returns its size, or -1 if unknown.
// Failures wrap ErrSourceUnavailable.
func OpenSource(ctx context.Context, ref SourceRef) (io.ReadCloser, int64, error) {
	fail := func(err error) (io.ReadCloser, int64, error) {
		return nil, 0, &ScanError{Source: ref.String(), Op: "open", Err: fmt.Errorf("%w: %w", ErrSourceUnavailable, err)}
	}
	if ref.Inner == "" {
		f, err := os.Open(ref.Path)
		if err != nil {
			return fail(err)
		}
		size := int64(-1)
		if st, err := f.Stat(); err == nil && st.Mode().IsRegular() {
			size = st.Size()
		}
		return f, size, nil
	}

	fsys, err := archives.FileSystem(ctx, ref.Path, nil)
	if err != nil {
		return fail(err)
	}
	mc := &multiCloser{}
	if closer, ok := fsys.(io.Closer); ok {
		mc.closers = append(mc.closers, closer)
	}
	f, err := fsys.Open(ref.Inner)
	if err != nil {
		_ = mc.Close()
		return fail(err)
	}
	mc.Reader = f
	mc.closers = append([]io.Closer{f}, mc.closers...)
	size := int64(-1)
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}
	return mc, size, nil
}

// ExpandRoots turns files, directories and (optionally) archives into sources.
// Walk errors go to onErr; a non-nil return from onErr stops the walk.
func ExpandRoots(ctx context.Context, opts ScanOptions, send func(SourceRef) error, onErr func(path string, err error) error) error {
	for _, root := range opts.Roots {
		if err := ctx.Err(); err != nil {
			return err
		}
		st, err := os.Stat(root)
		if err != nil {
			if err := onErr(root, &ScanError{Source: root, Op: "open", Err: fmt.Errorf("%w: %w", ErrSourceUnavailable, err)}); err != nil {
				return err
			}
			continue
		}
		if !st.IsDir() {
			if err := sendFile(ctx, root, opts, send); err != nil {
				return err
			}
			continue
		}
		err = WalkWithDepth(ctx, root, opts.Depth, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return onErr(path, err)
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			return sendFile(ctx, path, opts, send)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func sendFile(ctx context.Context, path string, opts ScanOptions, send func(SourceRef) error) error {
	if opts.Archives && IsArchive(path) {
		return WalkArchive(ctx, path, send)
	}
	return send(SourceRef{Path: path})
}

// WalkWithDepth uses WalkDir and cuts branches by depth.
func WalkWithDepth(ctx context.Context, root string, maxDepth int, fn func(path string, d os.DirEntry, err error) error) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return fn(path, d, err)
		}
		if maxDepth > 0 {
			rel, _ := filepath.Rel(root, path)
			if rel != "." && depthCount(rel) > maxDepth {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		return fn(path, d, nil)
	})
}

// WalkArchive feeds archive entries as sources.
func WalkArchive(ctx context.Context, path string, send func(SourceRef) error) error {
	fsys, err := archives.FileSystem(ctx, path, nil)
	if err != nil {
		logrus.WithError(err).WithField("archive", path).Error("open archive")
		return nil
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer closer.Close()
	}

	count := 0
	err = iofs.WalkDir(fsys, ".", func(inner string, d iofs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil || d.IsDir() {
			return nil
		}
		if count >= maxArchiveFiles {
			logrus.Warnf("Archive %s truncated: too many files (>= %d)", path, maxArchiveFiles)
			return errArchiveLimit
		}
		count++
		return send(SourceRef{Path: path, Inner: inner})
	})
	if errors.Is(err, errArchiveLimit) {
		return nil
	}
	return err
}

func depthCount(rel string) int {
	if rel == "" {
		return 0
	}
	return strings.Count(rel, string(os.PathSeparator)) + 1
}

func IsArchive(path string) bool {
	_, ok := archiveExt[strings.ToLower(filepath.Ext(path))]
	return ok
}
