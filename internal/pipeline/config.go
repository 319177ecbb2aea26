package pipeline

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/alpacaproxy/proxy-release/internal/config"
	"github.com/alpacaproxy/proxy-release/internal/events"
	"github.com/alpacaproxy/proxy-release/internal/firmware"
	"github.com/alpacaproxy/proxy-release/internal/installer"
	"github.com/alpacaproxy/proxy-release/internal/logging"
	"github.com/alpacaproxy/proxy-release/internal/nativebuild"
	"github.com/alpacaproxy/proxy-release/internal/pathutil"
	"github.com/alpacaproxy/proxy-release/internal/resource"
	"github.com/alpacaproxy/proxy-release/internal/toolexec"
)

// FromConfig validates cfg, resolves every path and tool location once, and
// builds an Orchestrator. A nil runner runs real processes bounded by
// cfg.Tools.Timeout.
//
// Steps disabled in cfg are skipped in addition to those skipped by opts.
func FromConfig(cfg *config.PipelineConfig, runner toolexec.Runner, opts Options, bus *events.EventBus, logger *logging.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if runner == nil {
		runner = toolexec.NewExecRunner(cfg.Tools.Timeout)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	var (
		c   Components
		err error
	)

	if !cfg.Firmware.Enabled {
		opts.SkipFirmware = true
	}
	if !opts.SkipFirmware {
		c.Publisher = firmware.NewPublisher()
		if c.FirmwareHeader, err = cfg.Path(cfg.Firmware.Header); err != nil {
			return nil, fmt.Errorf("failed to resolve firmware header: %w", err)
		}
		if c.FirmwareManifest, err = cfg.Path(cfg.Firmware.Manifest); err != nil {
			return nil, fmt.Errorf("failed to resolve firmware manifest: %w", err)
		}
	}

	if c.Descriptor, err = cfg.Path(cfg.Build.Descriptor); err != nil {
		return nil, fmt.Errorf("failed to resolve version descriptor: %w", err)
	}

	if !opts.SkipBuild {
		if c.Builder, err = newBuilder(cfg, c.Descriptor, runner, logger); err != nil {
			return nil, err
		}
	}

	if !cfg.Installer.Enabled {
		opts.SkipInstaller = true
	}
	if !opts.SkipInstaller {
		template, err := cfg.Path(cfg.Installer.Template)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve installer template: %w", err)
		}
		iscc, err := ResolveTool(cfg, cfg.Installer.Compiler)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve installer compiler: %w", err)
		}
		c.Generator = installer.NewGenerator(template, cfg.Installer.ScriptName)
		c.Compiler = installer.NewCompiler(iscc, runner, logger.Step(string(StateCompilingInstaller)))
		c.InstallerOutput = cfg.Installer.Output
	}

	return New(c, opts, bus, logger)
}

func newBuilder(cfg *config.PipelineConfig, descriptor string, runner toolexec.Runner, logger *logging.Logger) (*nativebuild.Builder, error) {
	workDir, err := cfg.Path(cfg.Build.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve build directory: %w", err)
	}
	output, err := pathutil.ExpandHome(cfg.Build.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve build output: %w", err)
	}
	goTool, err := ResolveTool(cfg, cfg.Tools.Go)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve go tool: %w", err)
	}

	var resTool string
	if resource.Mode(cfg.Resource.Mode) == resource.ModeExec {
		if resTool, err = ResolveTool(cfg, cfg.Resource.Tool); err != nil {
			return nil, fmt.Errorf("failed to resolve goversioninfo: %w", err)
		}
	}
	compiler, err := resource.New(resource.Mode(cfg.Resource.Mode), runner, resTool, goTool, cfg.Resource.Install, cfg.Build.GOARCH)
	if err != nil {
		return nil, err
	}

	opts := nativebuild.Options{
		WorkDir:       workDir,
		Descriptor:    descriptor,
		ResourceFile:  cfg.Build.ResourceFile,
		Output:        output,
		GoTool:        goTool,
		VersionSymbol: cfg.Build.VersionSymbol,
		LinkFlags:     cfg.LinkFlagList(),
		GOOS:          cfg.Build.GOOS,
		GOARCH:        cfg.Build.GOARCH,
	}
	return nativebuild.NewBuilder(opts, compiler, runner, logger.Step(string(StateBuilding))), nil
}

// ResolveTool turns a configured tool location into the path that will be
// executed. Bare names are looked up in PATH and kept as-is when not found, so
// the failure surfaces from the step that needs the tool. Anything else is a
// path resolved against the project root.
func ResolveTool(cfg *config.PipelineConfig, tool string) (string, error) {
	if !strings.ContainsAny(tool, `/\`) && !strings.HasPrefix(tool, "~") {
		if found, err := exec.LookPath(tool); err == nil {
			return found, nil
		}
		return tool, nil
	}
	return cfg.Path(tool)
}
