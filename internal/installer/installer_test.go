package installer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpacaproxy/proxy-release/internal/manifest"
	"github.com/alpacaproxy/proxy-release/internal/toolexec"
	"github.com/alpacaproxy/proxy-release/internal/toolexec/toolexectest"
)

const issTemplate = `[Setup]
AppName=ASCOM Alpaca Proxy
AppVersion=##VERSION##
VersionInfoVersion=##FILEVERSION##
AppCopyright=##COPYRIGHT##
OutputBaseFilename=AscomAlpacaProxy-Setup-##VERSION##
; ##UNKNOWN## stays as-is

[Files]
Source: "build\AscomAlpacaProxy.exe"; DestDir: "{app}"
`

var releaseManifest = &manifest.Manifest{
	ProductVersion: "2.0.1",
	FileVersion:    manifest.Quad{Major: 2, Minor: 0, Patch: 1, Build: 7},
	Copyright:      "Copyright (c) 2026 Example Observatory",
}

func TestRender_SubstitutesEveryPlaceholder(t *testing.T) {
	out := Render(issTemplate, releaseManifest)

	assert.Contains(t, out, "AppVersion=2.0.1\n")
	assert.Contains(t, out, "VersionInfoVersion=2.0.1.7\n")
	assert.Contains(t, out, "AppCopyright=Copyright (c) 2026 Example Observatory\n")
	assert.Contains(t, out, "OutputBaseFilename=AscomAlpacaProxy-Setup-2.0.1\n")
	for _, s := range Substitutions(releaseManifest) {
		assert.NotContains(t, out, s.Placeholder)
	}
	assert.Contains(t, out, "##UNKNOWN##")
	assert.Contains(t, out, `DestDir: "{app}"`)
}

func TestRender_ValuesAreNotReinterpreted(t *testing.T) {
	m := &manifest.Manifest{ProductVersion: "##FILEVERSION##", FileVersion: manifest.Quad{Major: 1}, Copyright: "$1 & \\n"}
	out := Render("v=##VERSION## c=##COPYRIGHT##", m)
	assert.Equal(t, "v=##FILEVERSION## c=$1 & \\n", out)
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "installer.iss")
	require.NoError(t, os.WriteFile(tmpl, []byte(issTemplate), 0644))

	g := NewGenerator(tmpl, "temp_installer.iss")
	script, err := g.Generate(releaseManifest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "temp_installer.iss"), script)

	data, err := os.ReadFile(script)
	require.NoError(t, err)
	assert.Equal(t, Render(issTemplate, releaseManifest), string(data))

	// template is never modified
	orig, err := os.ReadFile(tmpl)
	require.NoError(t, err)
	assert.Equal(t, issTemplate, string(orig))
}

func TestGenerate_MissingTemplate(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(filepath.Join(dir, "installer.iss"), "temp_installer.iss")

	_, err := g.Generate(releaseManifest)

	var te *TemplateError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "read", te.Op)
	assert.NoFileExists(t, g.ScriptPath())
}

func TestGenerate_UnwritableScript(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "installer.iss")
	require.NoError(t, os.WriteFile(tmpl, []byte(issTemplate), 0644))
	// a directory in the way of the script makes the write fail
	require.NoError(t, os.Mkdir(filepath.Join(dir, "temp_installer.iss"), 0755))

	_, err := NewGenerator(tmpl, "temp_installer.iss").Generate(releaseManifest)

	var te *TemplateError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "write", te.Op)
}

func writeScript(t *testing.T, dir string) string {
	t.Helper()
	script := filepath.Join(dir, "temp_installer.iss")
	require.NoError(t, os.WriteFile(script, []byte("[Setup]"), 0644))
	return script
}

func fakeISCC(t *testing.T, dir string) string {
	t.Helper()
	tool := filepath.Join(dir, "ISCC.exe")
	require.NoError(t, os.WriteFile(tool, nil, 0755))
	return tool
}

func TestCompile_Success(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir)
	rec := &toolexectest.Recorder{}

	art, err := NewCompiler(fakeISCC(t, dir), rec, nil).Compile(context.Background(), script)
	require.NoError(t, err)
	assert.Equal(t, script, art.ScriptPath)

	cmds := rec.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, []string{"temp_installer.iss"}, cmds[0].Args)
	assert.Equal(t, dir, cmds[0].Dir)
	assert.NoFileExists(t, script)
}

func TestCompile_ToolMissing(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir)
	rec := &toolexectest.Recorder{}
	missing := filepath.Join(dir, "Inno Setup 6", "ISCC.exe")

	_, err := NewCompiler(missing, rec, nil).Compile(context.Background(), script)

	var tnf *ToolNotFoundError
	require.True(t, errors.As(err, &tnf))
	assert.Equal(t, missing, tnf.Path)
	assert.Equal(t, 0, rec.Count())
	assert.NoFileExists(t, script)
}

func TestCompile_FailureCarriesOutputAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir)
	rec := &toolexectest.Recorder{Handler: func(cmd toolexec.Command) (*toolexec.Result, error) {
		return toolexectest.Fail(cmd, 2, "Compiling...", "Error on line 4: Unknown directive"), nil
	}}

	_, err := NewCompiler(fakeISCC(t, dir), rec, nil).Compile(context.Background(), script)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 2, ce.Result().ExitCode)
	assert.Equal(t, "Compiling...", ce.Result().Stdout)
	assert.True(t, strings.HasPrefix(ce.Result().Stderr, "Error on line 4"))
	assert.NoFileExists(t, script)
}

func TestCompile_TimeoutCleansUp(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir)
	rec := &toolexectest.Recorder{Handler: func(cmd toolexec.Command) (*toolexec.Result, error) {
		return &toolexec.Result{Command: cmd.String(), ExitCode: -1, TimedOut: true}, context.DeadlineExceeded
	}}

	_, err := NewCompiler(fakeISCC(t, dir), rec, nil).Compile(context.Background(), script)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, ce.Result().TimedOut)
	assert.NoFileExists(t, script)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "", OutputPath("/proxy", "", releaseManifest))
	assert.Equal(t,
		filepath.Join("/proxy", "Output", "AscomAlpacaProxy-Setup-2.0.1.exe"),
		OutputPath("/proxy", "Output/AscomAlpacaProxy-Setup-##VERSION##.exe", releaseManifest))
}
