package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/vellum/internal/config"
	"github.com/jackzampolin/vellum/internal/export"
	"github.com/jackzampolin/vellum/internal/home"
	"github.com/jackzampolin/vellum/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string

	format export.Format
)

var rootCmd = &cobra.Command{
	Use:   "vellum",
	Short: "Extract structured JSON from PDFs with vision models",
	Long: `Vellum renders PDF pages to images and asks a vision model to extract
their content into JSON that follows a schema.

  - Batch size and resolution are picked from the document's page count
  - Transient model failures are retried; pages that still fail are marked degraded
  - Per-page results are merged into document-level tables, entities and text
  - Schemas come from built-in presets, files, or inline JSON`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.vellum/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "vellum home directory (default: ~/.vellum)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn or error (default from config)",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		f, err := export.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		format = f
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file selected by --config, falling back to
// the config.yaml of an explicit --home.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" && homeDir != "" {
		if dir, err := home.New(homeDir); err == nil && dir.ConfigExists() {
			path = dir.ConfigPath()
		}
	}
	return config.Load(path)
}

func openHome() (*home.Dir, error) {
	return home.New(homeDir)
}

// newLogger builds the stderr logger. --log-level wins over the config file.
func newLogger(w io.Writer, cfg *config.Config, quiet bool) *slog.Logger {
	level := logLevel
	if level == "" && cfg != nil {
		level = cfg.LogLevel
	}
	lvl := parseLevel(level)
	if quiet && lvl < slog.LevelWarn {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// output writes data to the command's stdout in the selected format.
func output(cmd *cobra.Command, data any) error {
	if err := export.Encode(cmd.OutOrStdout(), format, data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
