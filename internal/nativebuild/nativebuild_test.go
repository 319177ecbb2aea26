package nativebuild

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpacaproxy/proxy-release/internal/manifest"
	"github.com/alpacaproxy/proxy-release/internal/toolexec"
	"github.com/alpacaproxy/proxy-release/internal/toolexec/toolexectest"
)

// fakeCompiler writes a placeholder resource object, or fails after writing a
// partial one when fail is set.
type fakeCompiler struct {
	fail  bool
	calls int
}

func (c *fakeCompiler) Name() string { return "fake" }

func (c *fakeCompiler) Compile(_ context.Context, _, output string) (*toolexec.Result, error) {
	c.calls++
	if err := os.WriteFile(output, []byte("syso"), 0644); err != nil {
		return nil, err
	}
	if c.fail {
		return &toolexec.Result{ExitCode: 1, Stderr: "bad descriptor"}, errors.New("goversioninfo exited with status 1")
	}
	return &toolexec.Result{}, nil
}

var testManifest = &manifest.Manifest{
	ProductVersion: "2.0.1",
	FileVersion:    manifest.Quad{Major: 2, Minor: 0, Patch: 1, Build: 7},
	Copyright:      "Copyright (c) 2026",
}

func newTestBuilder(t *testing.T, c *fakeCompiler, r toolexec.Runner) (*Builder, string) {
	t.Helper()
	dir := t.TempDir()
	opts := Options{
		WorkDir:       dir,
		Descriptor:    filepath.Join(dir, "versioninfo.json"),
		ResourceFile:  "resource.syso",
		Output:        "build/AscomAlpacaProxy.exe",
		GoTool:        "go",
		VersionSymbol: "main.AppVersion",
		LinkFlags:     []string{"-H=windowsgui"},
		GOOS:          "windows",
		GOARCH:        "amd64",
	}
	return NewBuilder(opts, c, r, nil), dir
}

func TestBuild_Success(t *testing.T) {
	var resourceSeen bool
	rec := &toolexectest.Recorder{}
	c := &fakeCompiler{}
	b, dir := newTestBuilder(t, c, rec)
	rec.Handler = func(cmd toolexec.Command) (*toolexec.Result, error) {
		_, err := os.Stat(filepath.Join(dir, "resource.syso"))
		resourceSeen = err == nil
		return toolexectest.Succeed(cmd), nil
	}

	art, err := b.Build(context.Background(), testManifest)
	require.NoError(t, err)

	assert.True(t, resourceSeen, "resource must exist while go build runs")
	assert.NoFileExists(t, filepath.Join(dir, "resource.syso"))
	assert.Equal(t, filepath.Join(dir, "build", "AscomAlpacaProxy.exe"), art.BinaryPath)

	cmds := rec.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "go", cmds[0].Path)
	assert.Equal(t, dir, cmds[0].Dir)
	assert.Equal(t, []string{
		"build", "-ldflags", "-H=windowsgui -X main.AppVersion=2.0.1",
		"-o", "build/AscomAlpacaProxy.exe", ".",
	}, cmds[0].Args)
	assert.Contains(t, cmds[0].Env, "GOOS=windows")
	assert.Contains(t, cmds[0].Env, "GOARCH=amd64")
}

func TestBuild_ResourceFailureCleansUpAndSkipsCompiler(t *testing.T) {
	rec := &toolexectest.Recorder{}
	b, dir := newTestBuilder(t, &fakeCompiler{fail: true}, rec)

	_, err := b.Build(context.Background(), testManifest)

	var re *ResourceError
	require.True(t, errors.As(err, &re), "got %T", err)
	assert.Equal(t, "bad descriptor", re.Result().Stderr)
	assert.Equal(t, 0, rec.Count(), "go build must not run")
	assert.NoFileExists(t, filepath.Join(dir, "resource.syso"))
}

func TestBuild_CompilerFailureCleansUp(t *testing.T) {
	rec := &toolexectest.Recorder{Handler: func(cmd toolexec.Command) (*toolexec.Result, error) {
		return toolexectest.Fail(cmd, 1, "", "main.go:12: undefined: foo"), nil
	}}
	b, dir := newTestBuilder(t, &fakeCompiler{}, rec)

	_, err := b.Build(context.Background(), testManifest)

	var be *BuildError
	require.True(t, errors.As(err, &be), "got %T", err)
	assert.Equal(t, 1, be.Result().ExitCode)
	assert.Equal(t, "main.go:12: undefined: foo", be.Result().Stderr)
	assert.Contains(t, be.Error(), "exit code 1")
	assert.NoFileExists(t, filepath.Join(dir, "resource.syso"))
}

func TestBuild_StartFailureCleansUp(t *testing.T) {
	startErr := errors.New("executable file not found in $PATH")
	rec := &toolexectest.Recorder{Handler: func(cmd toolexec.Command) (*toolexec.Result, error) {
		return &toolexec.Result{Command: cmd.String(), ExitCode: -1}, startErr
	}}
	b, dir := newTestBuilder(t, &fakeCompiler{}, rec)

	_, err := b.Build(context.Background(), testManifest)

	var be *BuildError
	require.True(t, errors.As(err, &be))
	assert.ErrorIs(t, err, startErr)
	assert.NoFileExists(t, filepath.Join(dir, "resource.syso"))
}

func TestBuild_RemovesStaleResource(t *testing.T) {
	b, dir := newTestBuilder(t, &fakeCompiler{fail: true}, &toolexectest.Recorder{})
	stale := filepath.Join(dir, "resource.syso")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))

	_, err := b.Build(context.Background(), testManifest)
	require.Error(t, err)
	assert.NoFileExists(t, stale)
}

func TestLDFlags(t *testing.T) {
	b := NewBuilder(Options{LinkFlags: []string{"-H=windowsgui", "-s", "-w"}, VersionSymbol: "main.AppVersion"}, nil, nil, nil)
	assert.Equal(t, "-H=windowsgui -s -w -X main.AppVersion=1.2.3-beta", b.LDFlags(&manifest.Manifest{ProductVersion: "1.2.3-beta"}))

	b = NewBuilder(Options{LinkFlags: []string{"-H=windowsgui"}}, nil, nil, nil)
	assert.Equal(t, "-H=windowsgui", b.LDFlags(testManifest))
}

func TestBinaryPath_Absolute(t *testing.T) {
	abs, _ := filepath.Abs(filepath.Join("out", "proxy.exe"))
	b := NewBuilder(Options{WorkDir: "/src", Output: abs}, nil, nil, nil)
	assert.Equal(t, abs, b.BinaryPath())
}
