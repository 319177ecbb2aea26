package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/alpacaproxy/proxy-release/internal/constants"
	"github.com/alpacaproxy/proxy-release/internal/events"
	"github.com/alpacaproxy/proxy-release/internal/logging"
	"github.com/alpacaproxy/proxy-release/internal/pipeline"
	"github.com/alpacaproxy/proxy-release/internal/progress"
)

// newRunCmd creates the 'run' command.
func newRunCmd() *cobra.Command {
	var opts pipeline.Options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full release pipeline",
		Long: `Run every release step in order:

  ExtractingFirmwareVersion -> ReadingManifest -> Building ->
  GeneratingInstallerScript -> CompilingInstaller -> Done

A missing FIRMWARE_VERSION only produces a warning. Any other failure stops
the run, prints the failing command with its output, and exits with status 1.
Transient files (resource.syso, temp_installer.iss) are always removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.SkipFirmware, "skip-firmware", false, "Skip the firmware version manifest")
	cmd.Flags().BoolVar(&opts.SkipInstaller, "skip-installer", false, "Stop after the native build")

	return cmd
}

// newBuildCmd creates the 'build' command.
func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the proxy binary only",
		Long: `Read the version manifest, generate the version resource and run go build.
The firmware and installer steps are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.OutOrStdout(), pipeline.Options{SkipFirmware: true, SkipInstaller: true})
		},
	}
}

// newInstallerCmd creates the 'installer' command.
func newInstallerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "installer",
		Short: "Generate and compile the installer from an existing build",
		Long: `Read the version manifest, render the Inno Setup template and compile it.
The binary referenced by the template must already exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.OutOrStdout(), pipeline.Options{SkipFirmware: true, SkipBuild: true})
		},
	}
}

func runPipeline(out io.Writer, opts pipeline.Options) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	defer bus.Close()

	o, err := pipeline.FromConfig(cfg, nil, opts, bus, GetLogger())
	if err != nil {
		return err
	}

	reporter := progress.NewReporter(noProgress || logging.Format(logFormat) == logging.FormatJSON)
	stop := progress.Follow(bus, reporter)
	report, err := o.Run(GetContext())
	stop()

	if err == nil {
		PrintSummary(out, report)
	}
	return err
}
