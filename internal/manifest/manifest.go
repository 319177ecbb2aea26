// Package manifest reads the goversioninfo version descriptor (versioninfo.json)
// and normalizes it into the fields shared by the native build and the installer.
//
// The descriptor is read once per pipeline run. Every consumer uses the
// returned Manifest verbatim; FileVersion is only ever rendered through
// Quad.String so the binary and the installer can't disagree on formatting.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Quad is the four-part numeric Windows file version.
type Quad struct {
	Major int
	Minor int
	Patch int
	Build int
}

// String renders the quad as dot-joined integers, e.g. "2.0.1.7".
func (q Quad) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", q.Major, q.Minor, q.Patch, q.Build)
}

// Manifest is the normalized, immutable version record for one pipeline run.
type Manifest struct {
	ProductVersion string
	FileVersion    Quad
	Copyright      string

	// SourcePath is the descriptor the manifest was read from. The resource
	// compiler renders this same file.
	SourcePath string
}

// Fields returns the manifest as loggable key/value pairs.
func (m *Manifest) Fields() map[string]interface{} {
	return map[string]interface{}{
		"product_version": m.ProductVersion,
		"file_version":    m.FileVersion.String(),
		"copyright":       m.Copyright,
		"source":          m.SourcePath,
	}
}

// ReadError is returned when the descriptor is missing, malformed, or lacks a
// required field.
type ReadError struct {
	Path  string
	Field string // dotted JSON path of the offending field; empty for file-level failures
	Err   error
}

func (e *ReadError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("failed to read version manifest %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("invalid version manifest %s: %s: %v", e.Path, e.Field, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Field validation errors
var (
	ErrMissingField = errors.New("required field is missing")
	ErrEmptyField   = errors.New("required field is empty")
	ErrNotInteger   = errors.New("value is not a non-negative integer")
)

// document mirrors the subset of the goversioninfo schema this package needs.
// Pointers and raw messages distinguish "absent" from "zero".
type document struct {
	FixedFileInfo *struct {
		FileVersion *struct {
			Major json.RawMessage `json:"Major"`
			Minor json.RawMessage `json:"Minor"`
			Patch json.RawMessage `json:"Patch"`
			Build json.RawMessage `json:"Build"`
		} `json:"FileVersion"`
	} `json:"FixedFileInfo"`
	StringFileInfo *struct {
		ProductVersion *string `json:"ProductVersion"`
		LegalCopyright *string `json:"LegalCopyright"`
	} `json:"StringFileInfo"`
}

// Read parses the descriptor at path. It never returns a partially populated
// manifest: any failure yields a *ReadError and a nil Manifest.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	m, err := Parse(data)
	if err != nil {
		var re *ReadError
		if errors.As(err, &re) {
			re.Path = path
			return nil, re
		}
		return nil, &ReadError{Path: path, Err: err}
	}
	m.SourcePath = path
	return m, nil
}

// Parse normalizes descriptor bytes. Errors are *ReadError without a Path.
func Parse(data []byte) (*Manifest, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ReadError{Err: fmt.Errorf("malformed JSON: %w", err)}
	}

	if doc.StringFileInfo == nil {
		return nil, &ReadError{Field: "StringFileInfo", Err: ErrMissingField}
	}
	if doc.StringFileInfo.ProductVersion == nil {
		return nil, &ReadError{Field: "StringFileInfo.ProductVersion", Err: ErrMissingField}
	}
	if strings.TrimSpace(*doc.StringFileInfo.ProductVersion) == "" {
		return nil, &ReadError{Field: "StringFileInfo.ProductVersion", Err: ErrEmptyField}
	}
	if doc.StringFileInfo.LegalCopyright == nil {
		return nil, &ReadError{Field: "StringFileInfo.LegalCopyright", Err: ErrMissingField}
	}
	if doc.FixedFileInfo == nil {
		return nil, &ReadError{Field: "FixedFileInfo", Err: ErrMissingField}
	}
	fv := doc.FixedFileInfo.FileVersion
	if fv == nil {
		return nil, &ReadError{Field: "FixedFileInfo.FileVersion", Err: ErrMissingField}
	}

	var q Quad
	parts := []struct {
		name string
		raw  json.RawMessage
		dst  *int
	}{
		{"Major", fv.Major, &q.Major},
		{"Minor", fv.Minor, &q.Minor},
		{"Patch", fv.Patch, &q.Patch},
		{"Build", fv.Build, &q.Build},
	}
	for _, p := range parts {
		field := "FixedFileInfo.FileVersion." + p.name
		if len(p.raw) == 0 || bytes.Equal(p.raw, []byte("null")) {
			return nil, &ReadError{Field: field, Err: ErrMissingField}
		}
		n, err := coerceInt(p.raw)
		if err != nil {
			return nil, &ReadError{Field: field, Err: err}
		}
		*p.dst = n
	}

	return &Manifest{
		ProductVersion: *doc.StringFileInfo.ProductVersion,
		FileVersion:    q,
		Copyright:      *doc.StringFileInfo.LegalCopyright,
	}, nil
}

// coerceInt accepts a JSON integer or a string holding one, e.g. 7 or "7".
func coerceInt(raw json.RawMessage) (int, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
	} else {
		var num json.Number
		if err := json.Unmarshal(raw, &num); err != nil {
			return 0, fmt.Errorf("%w: %s", ErrNotInteger, string(raw))
		}
		s = num.String()
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %q", ErrNotInteger, s)
	}
	return int(n), nil
}
