package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/vellum/internal/config"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the vellum configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file to the home directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := openHome()
		if err != nil {
			return err
		}
		if err := dir.EnsureExists(); err != nil {
			return err
		}
		path := dir.ConfigPath()
		if fileExists(path) && !forceInit {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Literal keys are masked; ${VAR} references are shown as written.
		if key := cfg.Provider.APIKey; key != "" && !strings.Contains(key, "${") {
			cfg.Provider.APIKey = "********"
		}
		return output(cmd, cfg)
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
