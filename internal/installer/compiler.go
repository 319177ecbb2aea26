package installer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/alpacaproxy/proxy-release/internal/logging"
	"github.com/alpacaproxy/proxy-release/internal/manifest"
	"github.com/alpacaproxy/proxy-release/internal/toolexec"
	"github.com/alpacaproxy/proxy-release/internal/util/transient"
)

// ToolNotFoundError is returned when the installer compiler is not installed
// at the configured location.
type ToolNotFoundError struct {
	Path string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("Inno Setup compiler not found at '%s'; install Inno Setup 6 or set installer.compiler in pipeline.conf", e.Path)
}

// CompileError is returned when ISCC fails or can't be started.
type CompileError struct {
	Res *toolexec.Result
	Err error
}

func (e *CompileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("installer compilation failed: %v", e.Err)
	}
	return fmt.Sprintf("installer compilation failed with exit code %d", e.Res.ExitCode)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Result returns the captured ISCC output.
func (e *CompileError) Result() *toolexec.Result { return e.Res }

// Artifact describes a compiled installer.
type Artifact struct {
	ScriptPath    string // already removed when Compile returns
	InstallerPath string // expected output; empty when no output pattern is configured
	Duration      time.Duration
}

// Compiler runs the Inno Setup command-line compiler.
type Compiler struct {
	Tool   string
	runner toolexec.Runner
	logger *logging.Logger
}

// NewCompiler creates a Compiler for the ISCC executable at tool.
func NewCompiler(tool string, runner toolexec.Runner, logger *logging.Logger) *Compiler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Compiler{Tool: tool, runner: runner, logger: logger}
}

// CheckTool fails with *ToolNotFoundError when the compiler executable is absent.
func (c *Compiler) CheckTool() error {
	if !toolexec.ToolExists(c.Tool) {
		return &ToolNotFoundError{Path: c.Tool}
	}
	return nil
}

// Compile runs ISCC on scriptPath from the script's directory and removes the
// script afterwards, whatever the outcome. The tool check happens before the
// compiler is invoked.
func (c *Compiler) Compile(ctx context.Context, scriptPath string) (*Artifact, error) {
	start := time.Now()
	scope := transient.NewScope()
	defer scope.Release(transient.LogReporter(c.logger))
	scope.Acquire(scriptPath)

	if err := c.CheckTool(); err != nil {
		return nil, err
	}

	cmd := toolexec.Command{
		Path: c.Tool,
		Args: []string{filepath.Base(scriptPath)},
		Dir:  filepath.Dir(scriptPath),
	}
	c.logger.Info().Str("compiler", c.Tool).Str("script", scriptPath).Msg("Running Inno Setup compiler")

	res, err := c.runner.Run(ctx, cmd)
	if err != nil {
		return nil, &CompileError{Res: res, Err: err}
	}
	if !res.Success() {
		return nil, &CompileError{Res: res}
	}

	art := &Artifact{ScriptPath: scriptPath, Duration: time.Since(start)}
	c.logger.Info().Dur("duration", art.Duration).Msg("Inno Setup compilation successful")
	return art, nil
}

// OutputPath derives the compiled installer's path from pattern using the same
// placeholder table as the script. Relative patterns are resolved against dir.
func OutputPath(dir, pattern string, m *manifest.Manifest) string {
	if pattern == "" {
		return ""
	}
	p := Render(pattern, m)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
