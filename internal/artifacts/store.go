// Package artifacts persists per-run raw reports and the optional export
// files under a single output directory.
package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = ".perfrun.lock"

// ErrDirectoryLocked is returned by Open when another perfrun process holds the
// output directory.
var ErrDirectoryLocked = errors.New("output directory is in use by another perfrun process")

// Store writes artifacts into one directory. It holds an advisory lock on the
// directory until Close so two executions cannot interleave their reports.
// Methods are safe for concurrent use as long as callers write distinct files.
type Store struct {
	dir  string
	lock *flock.Flock
}

// Open creates dir if needed and locks it.
func Open(dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock output directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryLocked, dir)
	}
	return &Store{dir: dir, lock: lock}, nil
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.dir
}

// Close releases the directory lock.
func (s *Store) Close() error {
	if s == nil || s.lock == nil {
		return nil
	}
	err := s.lock.Unlock()
	_ = os.Remove(s.lock.Path())
	return err
}

// RawReportName is the deterministic file name for a run's raw report.
func RawReportName(run int) string {
	return fmt.Sprintf("report-run-%d.json", run)
}

// WriteRawReport stores raw as report-run-<run>.json, re-indented with two
// spaces. Bytes that are not valid JSON are written unchanged.
func (s *Store) WriteRawReport(run int, raw []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		buf.Reset()
		buf.Write(raw)
	}
	return s.WriteFile(RawReportName(run), func(w io.Writer) error {
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// WriteFile atomically replaces name with whatever write produces. Relative
// names resolve against the output directory. The final path is returned.
func (s *Store) WriteFile(name string, write func(io.Writer) error) (string, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("replace %s: %w", path, err)
	}
	return path, nil
}
