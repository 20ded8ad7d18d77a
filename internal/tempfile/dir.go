// Package tempfile manages the per-request audio files the gateway writes
// and the delayed removal of those it has handed back to clients.
package tempfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	PrefixReference = "ref"
	PrefixOutput    = "out"
)

// ErrOutsideDir is returned when asked to remove a path the Dir does not own.
var ErrOutsideDir = errors.New("path is outside the temp directory")

// Remover deletes a file after a delay. Implementations never block the
// caller for the duration of the delay.
type Remover interface {
	ScheduleRemoval(ctx context.Context, path string, after time.Duration) error
}

// Dir is a dedicated directory of uniquely named WAV files.
type Dir struct {
	path string
}

// NewDir creates path if needed.
func NewDir(path string) (*Dir, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve temp dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return &Dir{path: abs}, nil
}

func (d *Dir) Path() string { return d.path }

func (d *Dir) newName(prefix string) string {
	return filepath.Join(d.path, fmt.Sprintf("%s-%s.wav", prefix, uuid.NewString()))
}

// Allocate creates an empty, uniquely named file and returns its path.
func (d *Dir) Allocate(prefix string) (string, error) {
	path := d.newName(prefix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("allocate temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("allocate temp file: %w", err)
	}
	return path, nil
}

// Write streams r into a new file verbatim. Nothing is left behind on error.
func (d *Dir) Write(prefix string, r io.Reader) (string, error) {
	path := d.newName(prefix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	return path, nil
}

// Remove deletes path. A file that is already gone is not an error.
func (d *Dir) Remove(path string) error {
	if !d.owns(path) {
		return fmt.Errorf("%w: %s", ErrOutsideDir, path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (d *Dir) owns(path string) bool {
	clean := filepath.Clean(path)
	return filepath.IsAbs(clean) && filepath.Dir(clean) == d.path
}

// Sweep removes regular files last modified more than maxAge ago and
// returns how many it removed.
func (d *Dir) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return 0, fmt.Errorf("read temp dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	var (
		removed int
		errs    []error
	)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(d.path, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
