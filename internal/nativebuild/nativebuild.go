// Package nativebuild compiles the proxy binary with its Windows version
// resource and the product version linked in as a string symbol.
package nativebuild

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/alpacaproxy/proxy-release/internal/logging"
	"github.com/alpacaproxy/proxy-release/internal/manifest"
	"github.com/alpacaproxy/proxy-release/internal/resource"
	"github.com/alpacaproxy/proxy-release/internal/toolexec"
	"github.com/alpacaproxy/proxy-release/internal/util/transient"
)

// ResourceError is returned when the version resource could not be generated.
type ResourceError struct {
	Compiler string
	Res      *toolexec.Result // nil for in-process compilers
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("version resource generation with %s failed: %v", e.Compiler, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Result returns the captured tool output, if any.
func (e *ResourceError) Result() *toolexec.Result { return e.Res }

// BuildError is returned when go build fails or can't be started.
type BuildError struct {
	Res *toolexec.Result
	Err error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("native build failed: %v", e.Err)
	}
	return fmt.Sprintf("native build failed with exit code %d", e.Res.ExitCode)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Result returns the captured go build output.
func (e *BuildError) Result() *toolexec.Result { return e.Res }

// Options configures a Builder. Paths are absolute or relative to the process
// working directory; the config package resolves them against the project root.
type Options struct {
	WorkDir       string // directory containing the proxy's main package
	Descriptor    string // versioninfo.json rendered into the resource
	ResourceFile  string // transient .syso name inside WorkDir
	Output        string // binary path, relative to WorkDir
	GoTool        string
	VersionSymbol string // fully qualified -X target, e.g. main.AppVersion
	LinkFlags     []string
	GOOS          string
	GOARCH        string
	ExtraEnv      []string
}

// Artifact describes what Build produced.
type Artifact struct {
	BinaryPath   string
	ResourcePath string // already removed when Build returns
	Duration     time.Duration
}

// Builder runs the resource compiler and go build.
type Builder struct {
	opts     Options
	compiler resource.Compiler
	runner   toolexec.Runner
	logger   *logging.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(opts Options, compiler resource.Compiler, runner toolexec.Runner, logger *logging.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Builder{opts: opts, compiler: compiler, runner: runner, logger: logger}
}

// ResourcePath returns the transient resource object location.
func (b *Builder) ResourcePath() string {
	return filepath.Join(b.opts.WorkDir, b.opts.ResourceFile)
}

// BinaryPath returns the durable binary location.
func (b *Builder) BinaryPath() string {
	if filepath.IsAbs(b.opts.Output) {
		return b.opts.Output
	}
	return filepath.Join(b.opts.WorkDir, b.opts.Output)
}

// LDFlags returns the -ldflags value for m: the configured link flags plus
// -X <symbol>=<ProductVersion>. The version is passed through verbatim.
func (b *Builder) LDFlags(m *manifest.Manifest) string {
	flags := append([]string{}, b.opts.LinkFlags...)
	if b.opts.VersionSymbol != "" {
		flags = append(flags, "-X", b.opts.VersionSymbol+"="+m.ProductVersion)
	}
	return strings.Join(flags, " ")
}

// Build generates the version resource, compiles the binary and removes the
// resource object on every exit path, including failures and cancellation.
func (b *Builder) Build(ctx context.Context, m *manifest.Manifest) (*Artifact, error) {
	start := time.Now()
	scope := transient.NewScope()
	defer scope.Release(transient.LogReporter(b.logger))

	art := &Artifact{
		BinaryPath:   b.BinaryPath(),
		ResourcePath: scope.Acquire(b.ResourcePath()),
	}

	b.logger.Info().
		Str("compiler", b.compiler.Name()).
		Str("descriptor", b.opts.Descriptor).
		Str("output", art.ResourcePath).
		Msg("Creating version resource file")
	res, err := b.compiler.Compile(ctx, b.opts.Descriptor, art.ResourcePath)
	if err != nil {
		return nil, &ResourceError{Compiler: b.compiler.Name(), Res: res, Err: err}
	}

	ldflags := b.LDFlags(m)
	cmd := toolexec.Command{
		Path: b.opts.GoTool,
		Args: []string{"build", "-ldflags", ldflags, "-o", b.opts.Output, "."},
		Dir:  b.opts.WorkDir,
		Env:  b.env(),
	}
	b.logger.Info().
		Str("dir", cmd.Dir).
		Str("ldflags", ldflags).
		Str("binary", art.BinaryPath).
		Msg("Running go build")

	res, err = b.runner.Run(ctx, cmd)
	if err != nil {
		return nil, &BuildError{Res: res, Err: err}
	}
	if !res.Success() {
		return nil, &BuildError{Res: res}
	}

	art.Duration = time.Since(start)
	b.logger.Info().Dur("duration", art.Duration).Msg("Go build successful")
	return art, nil
}

func (b *Builder) env() []string {
	var env []string
	if b.opts.GOOS != "" {
		env = append(env, "GOOS="+b.opts.GOOS)
	}
	if b.opts.GOARCH != "" {
		env = append(env, "GOARCH="+b.opts.GOARCH)
	}
	return append(env, b.opts.ExtraEnv...)
}
