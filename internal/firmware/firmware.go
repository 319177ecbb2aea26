// Package firmware publishes the firmware version declared in the device's C
// header as a small JSON manifest for the web frontend.
//
// This step is best-effort. Callers treat *ExtractionError as a warning; the
// destination manifest is only written when a version was found.
package firmware

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/alpacaproxy/proxy-release/internal/constants"
)

// definePattern matches `#define FIRMWARE_VERSION "<token>"` on a single line.
// The token is opaque and may be anything except a double quote.
var definePattern = regexp.MustCompile(`^\s*#\s*define\s+FIRMWARE_VERSION\s+"([^"]*)"`)

// ErrNotDeclared is returned when the header has no FIRMWARE_VERSION define.
var ErrNotDeclared = errors.New("FIRMWARE_VERSION is not declared")

// ExtractionError describes why no firmware manifest was published.
type ExtractionError struct {
	Header string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("firmware version extraction from %s failed: %v", e.Header, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// maxLineLength bounds a single header line; generated tables and long macros
// routinely exceed bufio's 64 KiB default.
const maxLineLength = 16 * 1024 * 1024

// writeFile is replaced in tests to simulate a failing disk.
var writeFile = os.WriteFile

// Manifest is the document consumed by the frontend.
type Manifest struct {
	Version string `json:"version"`
}

// Extract scans r line by line and returns the first FIRMWARE_VERSION token.
func Extract(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		if m := definePattern.FindStringSubmatch(scanner.Text()); m != nil {
			return m[1], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", ErrNotDeclared
}

// Publisher writes the firmware manifest.
type Publisher struct{}

// NewPublisher creates a firmware manifest publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish extracts the version from header and writes {"version": "<token>"}
// to dest, replacing any previous content. On failure dest is not touched.
func (p *Publisher) Publish(header, dest string) (string, error) {
	f, err := os.Open(header)
	if err != nil {
		return "", &ExtractionError{Header: header, Err: err}
	}
	defer f.Close()

	version, err := Extract(f)
	if err != nil {
		return "", &ExtractionError{Header: header, Err: err}
	}

	data, err := json.MarshalIndent(Manifest{Version: version}, "", "  ")
	if err != nil {
		return "", &ExtractionError{Header: header, Err: err}
	}
	data = append(data, '\n')

	if err := writeAtomic(dest, data); err != nil {
		return "", &ExtractionError{Header: header, Err: err}
	}
	return version, nil
}

// writeAtomic writes data next to dest and renames it into place so the
// frontend never sees a half-written manifest.
func writeAtomic(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	tmpPath := dest + ".tmp"
	if err := writeFile(tmpPath, data, constants.GeneratedFileMode); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}
