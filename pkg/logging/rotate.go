// Package logging holds the debug log sink. murmur emits no logs unless
// --debug is set; with it, slog output goes to a size-capped file in the
// data directory, kept alongside the archive database.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Defaults sized for a single local debug log: one active file plus a few
// numbered backups, small enough to never matter on disk.
const (
	DefaultMaxSize    int64 = 10 << 20
	DefaultMaxBackups       = 3
)

// RotatingFile is an io.WriteCloser that starts a fresh file once the
// current one would exceed the size cap. Old files are kept as
// path.1 .. path.N, newest first.
type RotatingFile struct {
	path    string
	limit   int64
	backups int

	mu      sync.Mutex
	f       *os.File
	written int64
}

type Option func(*RotatingFile)

func WithMaxSize(size int64) Option {
	return func(r *RotatingFile) {
		r.limit = size
	}
}

func WithMaxBackups(count int) Option {
	return func(r *RotatingFile) {
		r.backups = count
	}
}

// NewRotatingFile opens path for appending, creating parent directories as
// needed. An existing file is continued, not truncated.
func NewRotatingFile(path string, opts ...Option) (*RotatingFile, error) {
	r := &RotatingFile{
		path:    path,
		limit:   DefaultMaxSize,
		backups: DefaultMaxBackups,
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if err := r.openCurrent(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A record larger than the cap still goes out whole; rotation only
	// happens when the current file already has content.
	if r.written > 0 && r.written+int64(len(p)) > r.limit {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := r.f.Write(p)
	r.written += int64(n)
	return n, err
}

func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		return nil
	}
	return r.f.Close()
}

func (r *RotatingFile) openCurrent() error {
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	r.f = f
	r.written = info.Size()
	return nil
}

// rotate shifts every backup one slot down (dropping the oldest), moves the
// current file to slot 1 and starts a new one.
func (r *RotatingFile) rotate() error {
	if err := r.f.Close(); err != nil {
		return err
	}

	_ = os.Remove(r.backupName(r.backups))
	for i := r.backups; i > 1; i-- {
		_ = os.Rename(r.backupName(i-1), r.backupName(i))
	}
	if err := os.Rename(r.path, r.backupName(1)); err != nil && !os.IsNotExist(err) {
		return err
	}

	return r.openCurrent()
}

func (r *RotatingFile) backupName(n int) string {
	return fmt.Sprintf("%s.%d", r.path, n)
}
