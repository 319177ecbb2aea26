// Package config provides configuration management for the release pipeline.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/alpacaproxy/proxy-release/internal/constants"
	"github.com/alpacaproxy/proxy-release/internal/pathutil"
	"github.com/alpacaproxy/proxy-release/internal/resource"
)

// PipelineConfig is the release pipeline configuration.
//
// Tool locations live here rather than in code so they are resolved once per
// run and can be replaced by tests or CI.
//
// INI format (pipeline.conf):
//
//	[project]
//	root = .
//
//	[firmware]
//	enabled = true
//	header = src/config_manager.h
//	manifest = AscomAlpacaProxy/frontend-vue/public/firmware_version.json
//
//	[build]
//	dir = AscomAlpacaProxy
//	descriptor = AscomAlpacaProxy/versioninfo.json
//	resource_file = resource.syso
//	output = build/AscomAlpacaProxy.exe
//	version_symbol = main.AppVersion
//	link_flags = -H=windowsgui
//	goos = windows
//	goarch = amd64
//
//	[resource]
//	mode = exec
//	tool = ~/go/bin/goversioninfo
//	install = true
//
//	[installer]
//	enabled = true
//	template = AscomAlpacaProxy/installer.iss
//	script_name = temp_installer.iss
//	compiler = C:\Program Files (x86)\Inno Setup 6\ISCC.exe
//	output =
//
//	[tools]
//	go = go
//	timeout = 10m
type PipelineConfig struct {
	Project   ProjectConfig
	Firmware  FirmwareConfig
	Build     BuildConfig
	Resource  ResourceConfig
	Installer InstallerConfig
	Tools     ToolsConfig
}

// ProjectConfig locates the repository being released.
type ProjectConfig struct {
	// Root is the project root. Every other relative path is resolved against it.
	// Relative roots are resolved against the process working directory.
	Root string `ini:"root"`
}

// FirmwareConfig controls the firmware version manifest step.
type FirmwareConfig struct {
	Enabled  bool   `ini:"enabled"`
	Header   string `ini:"header"`
	Manifest string `ini:"manifest"`
}

// BuildConfig controls the native build step.
type BuildConfig struct {
	Dir           string `ini:"dir"`
	Descriptor    string `ini:"descriptor"`
	ResourceFile  string `ini:"resource_file"`
	Output        string `ini:"output"`
	VersionSymbol string `ini:"version_symbol"`
	// LinkFlags is a space-separated list passed to -ldflags before the -X flag.
	LinkFlags string `ini:"link_flags"`
	GOOS      string `ini:"goos"`
	GOARCH    string `ini:"goarch"`
}

// ResourceConfig selects the version resource compiler.
type ResourceConfig struct {
	Mode    string `ini:"mode"`
	Tool    string `ini:"tool"`
	Install bool   `ini:"install"`
}

// InstallerConfig controls installer script generation and compilation.
type InstallerConfig struct {
	Enabled    bool   `ini:"enabled"`
	Template   string `ini:"template"`
	ScriptName string `ini:"script_name"`
	Compiler   string `ini:"compiler"`
	// Output is the expected compiled installer, relative to the template's
	// directory. Placeholders are substituted like the script. Empty disables
	// the post-compile existence check.
	Output string `ini:"output"`
}

// ToolsConfig holds shared tool settings.
type ToolsConfig struct {
	Go      string        `ini:"go"`
	Timeout time.Duration `ini:"timeout"`
}

// PipelineConfig validation errors
var (
	ErrMissingBuildDir       = errors.New("build.dir is required")
	ErrMissingDescriptor     = errors.New("build.descriptor is required")
	ErrInvalidResourceFile   = errors.New("build.resource_file must be a plain file name")
	ErrMissingOutput         = errors.New("build.output is required")
	ErrInvalidResourceMode   = errors.New("resource.mode must be 'exec' or 'embedded'")
	ErrMissingResourceTool   = errors.New("resource.tool is required in exec mode")
	ErrMissingFirmwarePaths  = errors.New("firmware.header and firmware.manifest are required when firmware is enabled")
	ErrMissingTemplate       = errors.New("installer.template is required when the installer is enabled")
	ErrInvalidScriptName     = errors.New("installer.script_name must be a plain file name")
	ErrScriptOverwritesInput = errors.New("installer.script_name must differ from the template file name")
	ErrMissingCompiler       = errors.New("installer.compiler is required when the installer is enabled")
	ErrMissingGoTool         = errors.New("tools.go is required")
	ErrInvalidTimeout        = errors.New("tools.timeout must be at least 1s")
)

// DefaultGoVersionInfoPath returns where `go install` puts goversioninfo:
// $GOBIN, else the first $GOPATH entry's bin, else ~/go/bin.
func DefaultGoVersionInfoPath() string {
	name := "goversioninfo"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if gobin := os.Getenv("GOBIN"); gobin != "" {
		return filepath.Join(gobin, name)
	}
	if gopath := os.Getenv("GOPATH"); gopath != "" {
		return filepath.Join(filepath.SplitList(gopath)[0], "bin", name)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, "go", "bin", name)
}

// NewPipelineConfig creates a PipelineConfig with the project's defaults.
func NewPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Project: ProjectConfig{Root: "."},
		Firmware: FirmwareConfig{
			Enabled:  true,
			Header:   constants.FirmwareHeader,
			Manifest: constants.FirmwareManifest,
		},
		Build: BuildConfig{
			Dir:           constants.ProxyDir,
			Descriptor:    filepath.Join(constants.ProxyDir, constants.VersionInfoFile),
			ResourceFile:  constants.ResourceFile,
			Output:        constants.BinaryPath,
			VersionSymbol: constants.VersionSymbol,
			LinkFlags:     constants.WindowsGUILinkFlag,
			GOOS:          constants.TargetOS,
			GOARCH:        constants.TargetArch,
		},
		Resource: ResourceConfig{
			Mode:    string(resource.ModeExec),
			Tool:    DefaultGoVersionInfoPath(),
			Install: true,
		},
		Installer: InstallerConfig{
			Enabled:    true,
			Template:   filepath.Join(constants.ProxyDir, constants.InstallerTemplate),
			ScriptName: constants.InstallerScript,
			Compiler:   constants.DefaultInnoSetupCompiler,
		},
		Tools: ToolsConfig{
			Go:      "go",
			Timeout: constants.DefaultToolTimeout,
		},
	}
}

// LoadPipelineConfig loads configuration from path.
// If path is empty, uses the default path.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cfg := NewPipelineConfig()

	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	project := iniFile.Section("project")
	cfg.Project.Root = project.Key("root").MustString(cfg.Project.Root)

	fw := iniFile.Section("firmware")
	cfg.Firmware.Enabled = fw.Key("enabled").MustBool(cfg.Firmware.Enabled)
	cfg.Firmware.Header = fw.Key("header").MustString(cfg.Firmware.Header)
	cfg.Firmware.Manifest = fw.Key("manifest").MustString(cfg.Firmware.Manifest)

	build := iniFile.Section("build")
	cfg.Build.Dir = build.Key("dir").MustString(cfg.Build.Dir)
	cfg.Build.Descriptor = build.Key("descriptor").MustString(cfg.Build.Descriptor)
	cfg.Build.ResourceFile = build.Key("resource_file").MustString(cfg.Build.ResourceFile)
	cfg.Build.Output = build.Key("output").MustString(cfg.Build.Output)
	cfg.Build.VersionSymbol = build.Key("version_symbol").MustString(cfg.Build.VersionSymbol)
	cfg.Build.LinkFlags = build.Key("link_flags").MustString(cfg.Build.LinkFlags)
	cfg.Build.GOOS = build.Key("goos").MustString(cfg.Build.GOOS)
	cfg.Build.GOARCH = build.Key("goarch").MustString(cfg.Build.GOARCH)

	res := iniFile.Section("resource")
	cfg.Resource.Mode = res.Key("mode").MustString(cfg.Resource.Mode)
	cfg.Resource.Tool = res.Key("tool").MustString(cfg.Resource.Tool)
	cfg.Resource.Install = res.Key("install").MustBool(cfg.Resource.Install)

	inst := iniFile.Section("installer")
	cfg.Installer.Enabled = inst.Key("enabled").MustBool(cfg.Installer.Enabled)
	cfg.Installer.Template = inst.Key("template").MustString(cfg.Installer.Template)
	cfg.Installer.ScriptName = inst.Key("script_name").MustString(cfg.Installer.ScriptName)
	cfg.Installer.Compiler = inst.Key("compiler").MustString(cfg.Installer.Compiler)
	cfg.Installer.Output = inst.Key("output").String()

	tools := iniFile.Section("tools")
	cfg.Tools.Go = tools.Key("go").MustString(cfg.Tools.Go)
	cfg.Tools.Timeout = tools.Key("timeout").MustDuration(cfg.Tools.Timeout)

	return cfg, nil
}

// SavePipelineConfig saves configuration to path.
// If path is empty, uses the default path.
// Creates parent directories if they don't exist.
func SavePipelineConfig(cfg *PipelineConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	iniFile, err := cfg.INI()
	if err != nil {
		return err
	}

	// Use temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, constants.ConfigFileMode); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// INI renders the configuration as an INI document in pipeline.conf layout.
func (cfg *PipelineConfig) INI() (*ini.File, error) {
	iniFile := ini.Empty()
	sections := []struct {
		name string
		keys [][2]string
	}{
		{"project", [][2]string{
			{"root", cfg.Project.Root},
		}},
		{"firmware", [][2]string{
			{"enabled", fmt.Sprintf("%t", cfg.Firmware.Enabled)},
			{"header", cfg.Firmware.Header},
			{"manifest", cfg.Firmware.Manifest},
		}},
		{"build", [][2]string{
			{"dir", cfg.Build.Dir},
			{"descriptor", cfg.Build.Descriptor},
			{"resource_file", cfg.Build.ResourceFile},
			{"output", cfg.Build.Output},
			{"version_symbol", cfg.Build.VersionSymbol},
			{"link_flags", cfg.Build.LinkFlags},
			{"goos", cfg.Build.GOOS},
			{"goarch", cfg.Build.GOARCH},
		}},
		{"resource", [][2]string{
			{"mode", cfg.Resource.Mode},
			{"tool", cfg.Resource.Tool},
			{"install", fmt.Sprintf("%t", cfg.Resource.Install)},
		}},
		{"installer", [][2]string{
			{"enabled", fmt.Sprintf("%t", cfg.Installer.Enabled)},
			{"template", cfg.Installer.Template},
			{"script_name", cfg.Installer.ScriptName},
			{"compiler", cfg.Installer.Compiler},
			{"output", cfg.Installer.Output},
		}},
		{"tools", [][2]string{
			{"go", cfg.Tools.Go},
			{"timeout", cfg.Tools.Timeout.String()},
		}},
	}
	for _, s := range sections {
		sec, err := iniFile.NewSection(s.name)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.keys {
			sec.Key(kv[0]).SetValue(kv[1])
		}
	}
	return iniFile, nil
}

// WriteTo writes the configuration in pipeline.conf format to w.
func (cfg *PipelineConfig) WriteTo(w io.Writer) (int64, error) {
	iniFile, err := cfg.INI()
	if err != nil {
		return 0, err
	}
	return iniFile.WriteTo(w)
}

// Validate checks if the pipeline configuration is valid.
// Returns nil if valid, or an error describing what's wrong.
func (cfg *PipelineConfig) Validate() error {
	if strings.TrimSpace(cfg.Build.Dir) == "" {
		return ErrMissingBuildDir
	}
	if strings.TrimSpace(cfg.Build.Descriptor) == "" {
		return ErrMissingDescriptor
	}
	if !isPlainFilename(cfg.Build.ResourceFile) {
		return ErrInvalidResourceFile
	}
	if strings.TrimSpace(cfg.Build.Output) == "" {
		return ErrMissingOutput
	}

	switch resource.Mode(cfg.Resource.Mode) {
	case resource.ModeExec:
		if strings.TrimSpace(cfg.Resource.Tool) == "" {
			return ErrMissingResourceTool
		}
	case resource.ModeEmbedded:
	default:
		return ErrInvalidResourceMode
	}

	if cfg.Firmware.Enabled && (strings.TrimSpace(cfg.Firmware.Header) == "" || strings.TrimSpace(cfg.Firmware.Manifest) == "") {
		return ErrMissingFirmwarePaths
	}

	if cfg.Installer.Enabled {
		if strings.TrimSpace(cfg.Installer.Template) == "" {
			return ErrMissingTemplate
		}
		if !isPlainFilename(cfg.Installer.ScriptName) {
			return ErrInvalidScriptName
		}
		// Windows file names are case-insensitive.
		if strings.EqualFold(cfg.Installer.ScriptName, filepath.Base(cfg.Installer.Template)) {
			return ErrScriptOverwritesInput
		}
		if strings.TrimSpace(cfg.Installer.Compiler) == "" {
			return ErrMissingCompiler
		}
	}

	if strings.TrimSpace(cfg.Tools.Go) == "" {
		return ErrMissingGoTool
	}
	if cfg.Tools.Timeout < constants.MinToolTimeout {
		return ErrInvalidTimeout
	}

	return nil
}

// isPlainFilename reports whether name is a bare file name. Transient files
// must stay inside the directory of the step that owns them.
func isPlainFilename(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}

// ProjectRoot returns the absolute project root.
func (cfg *PipelineConfig) ProjectRoot() (string, error) {
	return pathutil.ResolveAbsolutePath(cfg.Project.Root)
}

// Path resolves a configured path against the project root.
// Absolute and ~-prefixed paths are returned expanded but otherwise unchanged.
func (cfg *PipelineConfig) Path(p string) (string, error) {
	root, err := cfg.ProjectRoot()
	if err != nil {
		return "", err
	}
	return pathutil.ResolveAgainst(root, p)
}

// LinkFlagList splits Build.LinkFlags into individual flags.
func (cfg *PipelineConfig) LinkFlagList() []string {
	return strings.Fields(cfg.Build.LinkFlags)
}
