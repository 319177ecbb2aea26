// Package cli provides the command-line interface for proxy-release.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/alpacaproxy/proxy-release/internal/config"
	"github.com/alpacaproxy/proxy-release/internal/logging"
	"github.com/alpacaproxy/proxy-release/internal/version"
)

var (
	// Global flags
	cfgFile    string
	projectDir string
	verbose    bool
	debug      bool
	timeout    time.Duration
	noProgress bool
	logFormat  string

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "proxy-release",
		Short: "Build and package the ASCOM Alpaca proxy",
		Long: `proxy-release ` + version.Version + ` - Built: ` + version.BuildTime + `
Release pipeline for the ASCOM Alpaca proxy.

Steps, in order:
  1. Publish the firmware version from the device header (warning only)
  2. Read AscomAlpacaProxy/versioninfo.json
  3. Build the Windows binary with its version resource
  4. Generate and compile the Inno Setup installer

Configuration is read from ./pipeline.conf when present.
Run 'proxy-release config init' to create one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			format := logging.Format(logFormat)
			if format != logging.FormatConsole && format != logging.FormatJSON {
				return fmt.Errorf("invalid --log-format %q (expected console or json)", logFormat)
			}
			logger = logging.NewLogger(cmd.OutOrStdout(), format)
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default ./pipeline.conf)")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project-dir", "C", "", "Project root (overrides project.root)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-tool timeout (overrides tools.timeout)")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "Disable the step progress bar")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", string(logging.FormatConsole), "Log format: console or json")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI. Failures are reported on stderr before returning.
func Execute() error {
	// Create a context that can be cancelled by signals
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling release...\n", sig)
				fmt.Fprintf(os.Stderr, "Please wait for cleanup to complete.\n\n")
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	if err != nil {
		PrintFailure(os.Stderr, err)
	}
	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newFirmwareCmd())
	rootCmd.AddCommand(newManifestCmd())
	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newInstallerCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		// Fallback to background context if called before Execute()
		return context.Background()
	}
	return rootContext
}

// loadConfig reads the pipeline configuration and applies flag overrides.
func loadConfig() (*config.PipelineConfig, error) {
	cfg, err := config.LoadPipelineConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if projectDir != "" {
		cfg.Project.Root = projectDir
	}
	if timeout > 0 {
		cfg.Tools.Timeout = timeout
	}
	return cfg, nil
}
