// proxy-release builds the ASCOM Alpaca proxy for Windows and packages it
// into an Inno Setup installer.
package main

import (
	"os"

	"github.com/alpacaproxy/proxy-release/internal/cli"
	"github.com/alpacaproxy/proxy-release/internal/version"
)

// Version information
var (
	Version   = "v1.2.0"
	BuildTime = "unknown"
)

func main() {
	// Set version in version package (canonical source for all packages)
	version.Version = Version
	version.BuildTime = BuildTime

	// Execute prints the failure report itself
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
