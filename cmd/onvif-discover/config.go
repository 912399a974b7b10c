package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/onvif-discover/internal/config"
	"github.com/muurk/onvif-discover/internal/ui"
)

var configForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file without asking")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after applying defaults, the configuration file and
ONVIF_DISCOVER_* environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if cfg.Source != "" {
			fmt.Fprintf(out, "# source: %s\n", cfg.Source)
		} else {
			fmt.Fprintln(out, "# source: defaults (no configuration file found)")
		}
		return encode(out, formatYAML, cfg)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	Example: `  # Create the file in the default location
  onvif-discover config init

  # Create it somewhere else
  onvif-discover --config ./onvif-discover.yaml config init`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			p, err := config.GetConfigPath()
			if err != nil {
				return err
			}
			path = p
		}

		force := configForce
		if !force {
			if _, err := os.Stat(path); err == nil {
				if !ui.IsTerminal() {
					return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
				}
				if !ui.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
					"A configuration file already exists at "+path, "Overwrite it?") {
					return nil
				}
				force = true
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}

		written, err := config.CreateDefaultConfig(path, force)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", written)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the default configuration file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}
