package cli

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/alpacaproxy/proxy-release/internal/firmware"
	"github.com/alpacaproxy/proxy-release/internal/manifest"
	"github.com/alpacaproxy/proxy-release/internal/version"
)

// newFirmwareCmd creates the 'firmware' command.
func newFirmwareCmd() *cobra.Command {
	var header, output string

	cmd := &cobra.Command{
		Use:   "firmware",
		Short: "Publish the firmware version manifest",
		Long: `Extract FIRMWARE_VERSION from the firmware header and write it as
{"version": "<token>"} for the web frontend.

Run on its own, a missing define is an error. As part of 'run' it is only a
warning.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if header == "" {
				header = cfg.Firmware.Header
			}
			if output == "" {
				output = cfg.Firmware.Manifest
			}
			if header, err = cfg.Path(header); err != nil {
				return err
			}
			if output, err = cfg.Path(output); err != nil {
				return err
			}

			fwVersion, err := firmware.NewPublisher().Publish(header, output)
			if err != nil {
				return err
			}
			GetLogger().Info().Str("version", fwVersion).Str("path", output).Msg("Firmware version manifest written")
			return nil
		},
	}

	cmd.Flags().StringVar(&header, "header", "", "Firmware header (overrides firmware.header)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Manifest path (overrides firmware.manifest)")

	return cmd
}

// newManifestCmd creates the 'manifest' command group.
func newManifestCmd() *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect the version manifest",
	}
	manifestCmd.AddCommand(newManifestShowCmd())
	return manifestCmd
}

// newManifestShowCmd creates the 'manifest show' command.
func newManifestShowCmd() *cobra.Command {
	var file string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the normalized version manifest",
		Long: `Read versioninfo.json and print the values every release step uses:
the product version, the four-part file version and the copyright.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.Build.Descriptor
			}
			if file, err = cfg.Path(file); err != nil {
				return err
			}

			m, err := manifest.Read(file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(m.Fields())
			}
			fmt.Fprintf(out, "Source:          %s\n", m.SourcePath)
			fmt.Fprintf(out, "Product version: %s\n", m.ProductVersion)
			fmt.Fprintf(out, "File version:    %s\n", m.FileVersion)
			fmt.Fprintf(out, "Copyright:       %s\n", m.Copyright)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Version descriptor (overrides build.descriptor)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}

// newVersionCmd creates the 'version' command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "proxy-release %s (built %s, %s %s/%s)\n",
				version.Version, version.BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
