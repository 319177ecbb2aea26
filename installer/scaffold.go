// Package installer holds the starter files `proxy-release config init
// --scaffold` writes into a new proxy checkout: the Inno Setup template and a
// goversioninfo descriptor.
package installer

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alpacaproxy/proxy-release/internal/constants"
)

//go:embed installer.iss
var Template []byte

//go:embed versioninfo.json
var VersionInfo []byte

// File is one scaffolded file.
type File struct {
	Path    string
	Content []byte
}

// Files returns the starter files for a proxy checkout, given the resolved
// template and descriptor paths.
func Files(templatePath, descriptorPath string) []File {
	return []File{
		{Path: templatePath, Content: Template},
		{Path: descriptorPath, Content: VersionInfo},
	}
}

// Write creates every file that does not exist yet and returns the paths it
// wrote. Existing files are never overwritten.
func Write(files []File) ([]string, error) {
	var written []string
	for _, f := range files {
		if _, err := os.Stat(f.Path); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return written, fmt.Errorf("failed to check %s: %w", f.Path, err)
		}
		if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
			return written, fmt.Errorf("failed to create directory for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(f.Path, f.Content, constants.GeneratedFileMode); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
		written = append(written, f.Path)
	}
	return written, nil
}
