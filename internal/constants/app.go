// Package constants holds the fixed names, placeholders and defaults shared by
// the release pipeline packages.
package constants

import (
	"time"
)

// Project layout defaults (relative to the project root)
const (
	// ProxyDir is the directory holding the Go proxy source, versioninfo.json and installer.iss.
	ProxyDir = "AscomAlpacaProxy"

	// VersionInfoFile is the goversioninfo descriptor read by the manifest reader
	// and by the resource compiler.
	VersionInfoFile = "versioninfo.json"

	// ResourceFile is the transient Windows resource object picked up by go build.
	ResourceFile = "resource.syso"

	// BinaryPath is the native binary output, relative to the proxy directory.
	BinaryPath = "build/AscomAlpacaProxy.exe"

	// InstallerTemplate is the Inno Setup template, relative to the proxy directory.
	InstallerTemplate = "installer.iss"

	// InstallerScript is the transient, fully substituted Inno Setup script.
	InstallerScript = "temp_installer.iss"

	// FirmwareHeader is the firmware source header carrying FIRMWARE_VERSION.
	FirmwareHeader = "src/config_manager.h"

	// FirmwareManifest is the JSON file consumed by the web frontend.
	FirmwareManifest = "AscomAlpacaProxy/frontend-vue/public/firmware_version.json"
)

// Installer template placeholders
const (
	PlaceholderVersion     = "##VERSION##"
	PlaceholderFileVersion = "##FILEVERSION##"
	PlaceholderCopyright   = "##COPYRIGHT##"
)

// Native build defaults
const (
	// VersionSymbol receives ProductVersion through -ldflags -X.
	VersionSymbol = "main.AppVersion"

	// WindowsGUILinkFlag selects the windowed (non-console) PE subsystem.
	WindowsGUILinkFlag = "-H=windowsgui"

	// TargetOS and TargetArch are exported as GOOS/GOARCH for go build.
	TargetOS   = "windows"
	TargetArch = "amd64"
)

// External tools
const (
	// GoVersionInfoPackage is installed with `go install` when resource.install is set.
	GoVersionInfoPackage = "github.com/josephspurrier/goversioninfo/cmd/goversioninfo@latest"

	// DefaultInnoSetupCompiler is the stock Inno Setup 6 location.
	DefaultInnoSetupCompiler = `C:\Program Files (x86)\Inno Setup 6\ISCC.exe`
)

// Timeouts
const (
	// DefaultToolTimeout bounds every external tool invocation.
	DefaultToolTimeout = 10 * time.Minute

	// MinToolTimeout is the smallest accepted tools.timeout value.
	MinToolTimeout = 1 * time.Second
)

// Event bus configuration
const (
	// EventBusDefaultBuffer is the default per-subscriber channel capacity.
	// A full pipeline run publishes a few dozen events, so this never drops.
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer caps the per-subscriber channel capacity.
	EventBusMaxBuffer = 4096
)

// File permissions
const (
	// GeneratedFileMode is used for the firmware manifest and the transient installer script.
	GeneratedFileMode = 0644

	// ConfigFileMode restricts pipeline.conf to the owner on Unix.
	ConfigFileMode = 0600
)
