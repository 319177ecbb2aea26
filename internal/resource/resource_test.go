package resource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpacaproxy/proxy-release/internal/toolexec"
	"github.com/alpacaproxy/proxy-release/internal/toolexec/toolexectest"
)

func TestExecCompiler_Arguments(t *testing.T) {
	rec := &toolexectest.Recorder{}
	c := &ExecCompiler{Runner: rec, Tool: "/opt/go/bin/goversioninfo", Arch: "amd64"}

	proxy := filepath.Join(t.TempDir(), "proxy")
	res, err := c.Compile(context.Background(), filepath.Join(proxy, "versioninfo.json"), filepath.Join(proxy, "resource.syso"))
	require.NoError(t, err)
	require.NotNil(t, res)

	cmds := rec.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "/opt/go/bin/goversioninfo", cmds[0].Path)
	assert.Equal(t, proxy, cmds[0].Dir)
	assert.Equal(t, []string{"-64", "-o", filepath.Join(proxy, "resource.syso"), "versioninfo.json"}, cmds[0].Args)
}

func TestExecCompiler_RunsInDescriptorDirectory(t *testing.T) {
	rec := &toolexectest.Recorder{}
	c := &ExecCompiler{Runner: rec, Tool: "goversioninfo"}

	_, err := c.Compile(context.Background(), filepath.Join("proxy", "versioninfo.json"), filepath.Join("proxy", "resource.syso"))
	require.NoError(t, err)

	output, err := filepath.Abs(filepath.Join("proxy", "resource.syso"))
	require.NoError(t, err)

	cmds := rec.Commands()
	require.Len(t, cmds, 1)
	// icon paths inside the descriptor resolve against Dir, matching EmbeddedCompiler
	assert.Equal(t, "proxy", cmds[0].Dir)
	assert.Equal(t, []string{"-o", output, "versioninfo.json"}, cmds[0].Args)
}

func TestExecCompiler_InstallsFirst(t *testing.T) {
	rec := &toolexectest.Recorder{}
	c := &ExecCompiler{Runner: rec, Tool: "goversioninfo", GoTool: "go", Install: true, Arch: "386"}

	_, err := c.Compile(context.Background(), "v.json", "r.syso")
	require.NoError(t, err)

	cmds := rec.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "go", cmds[0].Path)
	assert.Equal(t, []string{"install", "github.com/josephspurrier/goversioninfo/cmd/goversioninfo@latest"}, cmds[0].Args)
	output, err := filepath.Abs("r.syso")
	require.NoError(t, err)
	assert.Equal(t, []string{"-o", output, "v.json"}, cmds[1].Args)
}

func TestExecCompiler_InstallFailureStops(t *testing.T) {
	rec := &toolexectest.Recorder{Handler: func(cmd toolexec.Command) (*toolexec.Result, error) {
		return toolexectest.Fail(cmd, 1, "", "no network"), nil
	}}
	c := &ExecCompiler{Runner: rec, Tool: "goversioninfo", GoTool: "go", Install: true}

	res, err := c.Compile(context.Background(), "v.json", "r.syso")
	require.Error(t, err)
	assert.Equal(t, "no network", res.Stderr)
	assert.Equal(t, 1, rec.Count())
}

func TestExecCompiler_NonZeroExit(t *testing.T) {
	rec := &toolexectest.Recorder{Handler: func(cmd toolexec.Command) (*toolexec.Result, error) {
		return toolexectest.Fail(cmd, 2, "", "Cannot parse JSON"), nil
	}}
	c := &ExecCompiler{Runner: rec, Tool: "goversioninfo"}

	res, err := c.Compile(context.Background(), "v.json", "r.syso")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 2")
	assert.Equal(t, 2, res.ExitCode)
}

func TestExecCompiler_StartFailure(t *testing.T) {
	startErr := errors.New("exec: not found")
	rec := &toolexectest.Recorder{Handler: func(cmd toolexec.Command) (*toolexec.Result, error) {
		return &toolexec.Result{Command: cmd.String(), ExitCode: -1}, startErr
	}}
	c := &ExecCompiler{Runner: rec, Tool: "goversioninfo"}

	_, err := c.Compile(context.Background(), "v.json", "r.syso")
	assert.ErrorIs(t, err, startErr)
}

func TestArchFlags(t *testing.T) {
	assert.Equal(t, []string{"-64"}, archFlags("amd64"))
	assert.Equal(t, []string{"-arm"}, archFlags("arm"))
	assert.Equal(t, []string{"-arm", "-64"}, archFlags("arm64"))
	assert.Empty(t, archFlags("386"))
}

func TestEmbeddedCompiler_WritesSyso(t *testing.T) {
	dir := t.TempDir()
	descriptor := filepath.Join(dir, "versioninfo.json")
	output := filepath.Join(dir, "resource.syso")
	require.NoError(t, os.WriteFile(descriptor, []byte(`{
		"FixedFileInfo": {"FileVersion": {"Major": 1, "Minor": 2, "Patch": 3, "Build": 4}},
		"StringFileInfo": {"ProductName": "ASCOM Alpaca Proxy", "ProductVersion": "1.2.3", "LegalCopyright": "c"}
	}`), 0644))

	res, err := (&EmbeddedCompiler{Arch: "amd64"}).Compile(context.Background(), descriptor, output)
	require.NoError(t, err)
	assert.Nil(t, res)

	info, err := os.Stat(output)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestEmbeddedCompiler_BadDescriptor(t *testing.T) {
	dir := t.TempDir()
	descriptor := filepath.Join(dir, "versioninfo.json")
	require.NoError(t, os.WriteFile(descriptor, []byte(`{not json`), 0644))

	_, err := (&EmbeddedCompiler{}).Compile(context.Background(), descriptor, filepath.Join(dir, "r.syso"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "r.syso"))
}

func TestEmbeddedCompiler_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&EmbeddedCompiler{}).Compile(ctx, "v.json", "r.syso")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnchor(t *testing.T) {
	assert.Equal(t, "", anchor("/proxy", ""))
	assert.Equal(t, filepath.Join("/proxy", "icon.ico"), anchor("/proxy", "icon.ico"))
	abs, _ := filepath.Abs("icon.ico")
	assert.Equal(t, abs, anchor("/proxy", abs))
}

func TestNew(t *testing.T) {
	c, err := New(ModeEmbedded, nil, "", "", false, "amd64")
	require.NoError(t, err)
	assert.IsType(t, &EmbeddedCompiler{}, c)

	c, err = New("", &toolexectest.Recorder{}, "goversioninfo", "go", true, "amd64")
	require.NoError(t, err)
	assert.IsType(t, &ExecCompiler{}, c)

	_, err = New("rc.exe", nil, "", "", false, "")
	assert.Error(t, err)
}
