package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/vellum/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage page extraction schemas",
}

var schemaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in presets and saved schemas",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := openHome()
		if err != nil {
			return err
		}
		saved, err := savedSchemas(dir.SchemasPath())
		if err != nil {
			return err
		}
		return output(cmd, map[string][]string{
			"presets": schema.Presets(),
			"saved":   saved,
		})
	},
}

var schemaShowCmd = &cobra.Command{
	Use:   "show [preset]",
	Short: "Print a preset schema, or the default schema",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := schema.Default()
		if len(args) == 1 {
			var err error
			if s, err = schema.Preset(args[0]); err != nil {
				return err
			}
		}
		data, err := s.JSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

var schemaValidateCmd = &cobra.Command{
	Use:   "validate <file|json>",
	Short: "Check that a schema is usable for extraction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := schema.Parse(args[0])
		if err != nil {
			return err
		}
		return output(cmd, map[string]any{
			"valid":  true,
			"fields": s.FieldNames(),
		})
	},
}

var schemaSaveCmd = &cobra.Command{
	Use:   "save <name> <file|json|preset>",
	Short: "Save a schema under a name for use with extract --schema",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, source := args[0], args[1]
		s, err := schema.Preset(source)
		if err != nil {
			if s, err = schema.Parse(source); err != nil {
				return err
			}
		}

		dir, err := openHome()
		if err != nil {
			return err
		}
		if err := dir.EnsureExists(); err != nil {
			return err
		}
		path := dir.SchemaPath(name)
		if err := schema.Save(s, path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved schema %q to %s\n", name, path)
		return nil
	},
}

func savedSchemas(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schemas directory: %w", err)
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, ok := strings.CutSuffix(e.Name(), ".json"); ok {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

func init() {
	schemaCmd.AddCommand(schemaListCmd, schemaShowCmd, schemaValidateCmd, schemaSaveCmd)
	rootCmd.AddCommand(schemaCmd)
}
