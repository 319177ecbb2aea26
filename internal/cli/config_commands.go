package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	starter "github.com/alpacaproxy/proxy-release/installer"
	"github.com/alpacaproxy/proxy-release/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage pipeline.conf",
		Long: `Configuration management commands for proxy-release.

Commands:
  init  - Write a pipeline.conf with the default values
  show  - Display the effective configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath returns the --config value or the default location.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force, scaffold bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write pipeline.conf with the default layout of the proxy repository:
the firmware header in src/, the proxy in AscomAlpacaProxy/, Inno Setup 6 in
its default install location.

Use --force to overwrite an existing file. With --scaffold, a starter
installer.iss and versioninfo.json are also written where the configuration
expects them, unless those files already exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			out := cmd.OutOrStdout()

			cfg := config.NewPipelineConfig()
			if projectDir != "" {
				cfg.Project.Root = projectDir
			}

			_, statErr := os.Stat(path)
			if statErr == nil && !force {
				fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
				fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
			} else {
				if err := config.SavePipelineConfig(cfg, path); err != nil {
					return err
				}
				GetLogger().Info().Str("path", path).Msg("Configuration written")
			}

			if scaffold {
				return writeScaffold(cfg)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&scaffold, "scaffold", false, "Also write a starter installer template and version descriptor")

	return cmd
}

func writeScaffold(cfg *config.PipelineConfig) error {
	template, err := cfg.Path(cfg.Installer.Template)
	if err != nil {
		return err
	}
	descriptor, err := cfg.Path(cfg.Build.Descriptor)
	if err != nil {
		return err
	}
	written, err := starter.Write(starter.Files(template, descriptor))
	for _, p := range written {
		GetLogger().Info().Str("path", p).Msg("Starter file written")
	}
	return err
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration after defaults and command-line overrides are
applied, followed by the validation result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "# %s\n", configPath())
			if _, err := cfg.WriteTo(out); err != nil {
				return err
			}
			if root, err := cfg.ProjectRoot(); err == nil {
				fmt.Fprintf(out, "\n# project root resolves to %s\n", root)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration is invalid: %w", err)
			}
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
