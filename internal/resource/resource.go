// Package resource renders a goversioninfo descriptor into a Windows resource
// object (.syso) that go build links into the binary.
//
// Two backends are available: ExecCompiler shells out to the goversioninfo
// command, and EmbeddedCompiler links the goversioninfo library directly so no
// tool has to be installed on the build machine.
package resource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/josephspurrier/goversioninfo"

	"github.com/alpacaproxy/proxy-release/internal/constants"
	"github.com/alpacaproxy/proxy-release/internal/toolexec"
)

// Mode selects the resource compiler backend.
type Mode string

const (
	ModeExec     Mode = "exec"
	ModeEmbedded Mode = "embedded"
)

// Compiler renders descriptor into a resource object at output.
//
// The returned Result is non-nil when an external tool ran; it carries the
// captured output for diagnostics. A non-zero exit is reported as an error.
type Compiler interface {
	Compile(ctx context.Context, descriptor, output string) (*toolexec.Result, error)
	Name() string
}

// ExecCompiler runs the goversioninfo command.
type ExecCompiler struct {
	Runner  toolexec.Runner
	Tool    string // goversioninfo executable
	GoTool  string // go executable, used when Install is set
	Install bool   // run `go install goversioninfo@latest` before compiling
	Arch    string // target GOARCH of the resource object
}

// Name implements Compiler.
func (c *ExecCompiler) Name() string {
	return "goversioninfo"
}

// Compile implements Compiler.
func (c *ExecCompiler) Compile(ctx context.Context, descriptor, output string) (*toolexec.Result, error) {
	if c.Install {
		res, err := c.Runner.Run(ctx, toolexec.Command{
			Path: c.GoTool,
			Args: []string{"install", constants.GoVersionInfoPackage},
		})
		if err != nil {
			return res, fmt.Errorf("failed to install goversioninfo: %w", err)
		}
		if !res.Success() {
			return res, fmt.Errorf("go install goversioninfo exited with status %d", res.ExitCode)
		}
	}

	// Run next to the descriptor so relative icon and manifest paths resolve
	// the same way EmbeddedCompiler anchors them.
	if abs, err := filepath.Abs(output); err == nil {
		output = abs
	}
	args := append(archFlags(c.Arch), "-o", output, filepath.Base(descriptor))
	res, err := c.Runner.Run(ctx, toolexec.Command{Path: c.Tool, Args: args, Dir: filepath.Dir(descriptor)})
	if err != nil {
		return res, err
	}
	if !res.Success() {
		return res, fmt.Errorf("goversioninfo exited with status %d", res.ExitCode)
	}
	return res, nil
}

// archFlags maps GOARCH to goversioninfo's -64/-arm switches.
func archFlags(arch string) []string {
	switch arch {
	case "amd64":
		return []string{"-64"}
	case "arm":
		return []string{"-arm"}
	case "arm64":
		return []string{"-arm", "-64"}
	default:
		return []string{}
	}
}

// EmbeddedCompiler builds the resource in-process with the goversioninfo library.
type EmbeddedCompiler struct {
	Arch string
}

// Name implements Compiler.
func (c *EmbeddedCompiler) Name() string {
	return "goversioninfo (embedded)"
}

// Compile implements Compiler. It never returns a Result.
func (c *EmbeddedCompiler) Compile(ctx context.Context, descriptor, output string) (*toolexec.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}

	vi := &goversioninfo.VersionInfo{}
	if err := vi.ParseJSON(data); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor: %w", err)
	}

	// goversioninfo resolves icon and manifest paths against the working
	// directory; anchor them to the descriptor instead.
	base := filepath.Dir(descriptor)
	vi.IconPath = anchor(base, vi.IconPath)
	vi.ManifestPath = anchor(base, vi.ManifestPath)

	vi.Build()
	vi.Walk()

	arch := c.Arch
	if arch == "" {
		arch = constants.TargetArch
	}
	if err := vi.WriteSyso(output, arch); err != nil {
		return nil, fmt.Errorf("failed to write resource object: %w", err)
	}
	return nil, nil
}

func anchor(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// New creates the compiler selected by mode.
func New(mode Mode, runner toolexec.Runner, tool, goTool string, install bool, arch string) (Compiler, error) {
	switch mode {
	case ModeExec, "":
		return &ExecCompiler{Runner: runner, Tool: tool, GoTool: goTool, Install: install, Arch: arch}, nil
	case ModeEmbedded:
		return &EmbeddedCompiler{Arch: arch}, nil
	default:
		return nil, fmt.Errorf("unknown resource compiler mode %q (expected %q or %q)", mode, ModeExec, ModeEmbedded)
	}
}
