// Package transient manages files whose lifetime is bounded to a single
// pipeline step: acquire the path, run the dependent work, and release the
// path on every exit branch.
package transient

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/alpacaproxy/proxy-release/internal/logging"
)

// Scope owns a set of transient paths. Release removes all of them.
//
// Typical use:
//
//	scope := transient.NewScope()
//	defer scope.Release(transient.LogReporter(logger))
//	path := scope.Acquire(filepath.Join(dir, "resource.syso"))
type Scope struct {
	mu    sync.Mutex
	paths []string
	done  bool
}

// Reporter receives the outcome of each removal. A nil Reporter is allowed.
type Reporter interface {
	Removed(path string)
	RemoveFailed(path string, err error)
}

// LogReporter reports removals through a pipeline logger.
func LogReporter(l *logging.Logger) Reporter {
	return logReporter{l: l}
}

type logReporter struct {
	l *logging.Logger
}

func (r logReporter) Removed(path string) {
	r.l.Info().Str("path", path).Msg("Cleaned up transient file")
}

func (r logReporter) RemoveFailed(path string, err error) {
	r.l.Error().Err(err).Str("path", path).Msg("Failed to clean up transient file")
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Acquire registers path for removal and returns it unchanged.
// A stale file already at path is left alone until Release.
func (s *Scope) Acquire(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
	return path
}

// Paths returns the registered paths in acquisition order.
func (s *Scope) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// Release removes every acquired path that still exists. It is safe to call
// more than once; only the first call does any work. The returned error joins
// all removal failures.
func (s *Scope) Release(r Reporter) error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil
	}
	s.done = true
	paths := s.paths
	s.mu.Unlock()

	var errs []error
	for i := len(paths) - 1; i >= 0; i-- {
		removed, err := Remove(paths[i])
		switch {
		case err != nil:
			errs = append(errs, err)
			if r != nil {
				r.RemoveFailed(paths[i], err)
			}
		case removed && r != nil:
			r.Removed(paths[i])
		}
	}
	return errors.Join(errs...)
}

// Remove deletes path if it exists. It reports whether a file was removed.
func Remove(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to remove transient file %s: %w", path, err)
}

// Exists reports whether a file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
