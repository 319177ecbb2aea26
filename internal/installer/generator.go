// Package installer turns the Inno Setup template into a versioned script and
// compiles it with ISCC.
package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alpacaproxy/proxy-release/internal/constants"
	"github.com/alpacaproxy/proxy-release/internal/manifest"
)

// TemplateError is returned when the template can't be read or the script
// can't be written.
type TemplateError struct {
	Path string
	Op   string // "read" or "write"
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("failed to %s installer script %s: %v", e.Op, e.Path, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// Substitution is one literal placeholder replacement.
type Substitution struct {
	Placeholder string
	Value       string
}

// Substitutions returns the placeholder table for m. It is the only place the
// installer derives strings from the manifest.
func Substitutions(m *manifest.Manifest) []Substitution {
	return []Substitution{
		{constants.PlaceholderVersion, m.ProductVersion},
		{constants.PlaceholderFileVersion, m.FileVersion.String()},
		{constants.PlaceholderCopyright, m.Copyright},
	}
}

// Render replaces every occurrence of each known placeholder in text.
// Unknown ##TOKENS## are left as they are.
func Render(text string, m *manifest.Manifest) string {
	pairs := make([]string, 0, 6)
	for _, s := range Substitutions(m) {
		pairs = append(pairs, s.Placeholder, s.Value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Generator writes the substituted installer script next to its template.
type Generator struct {
	Template   string
	ScriptName string
}

// NewGenerator creates a Generator for template, writing scriptName in the
// template's directory.
func NewGenerator(template, scriptName string) *Generator {
	return &Generator{Template: template, ScriptName: scriptName}
}

// ScriptPath returns where Generate writes the script.
func (g *Generator) ScriptPath() string {
	return filepath.Join(filepath.Dir(g.Template), g.ScriptName)
}

// Generate renders the template for m and returns the script path. The script
// is transient: the caller owns its removal (see Compiler.Compile).
func (g *Generator) Generate(m *manifest.Manifest) (string, error) {
	data, err := os.ReadFile(g.Template)
	if err != nil {
		return "", &TemplateError{Path: g.Template, Op: "read", Err: err}
	}

	scriptPath := g.ScriptPath()
	out := Render(string(data), m)
	if err := os.WriteFile(scriptPath, []byte(out), constants.GeneratedFileMode); err != nil {
		return "", &TemplateError{Path: scriptPath, Op: "write", Err: err}
	}
	return scriptPath, nil
}
