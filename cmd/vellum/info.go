package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/vellum/internal/autoconfig"
	"github.com/jackzampolin/vellum/internal/pipeline"
)

var infoCmd = &cobra.Command{
	Use:   "info <pdf>",
	Short: "Show document info, processing settings and estimates",
	Long: `Probe a PDF without calling the model. Prints the page count, the
automatic batch size and resolution, and a rough time, token and cost estimate.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, _ := cmd.Flags().GetInt("start-page")
		end, _ := cmd.Flags().GetInt("end-page")
		insp, err := pipeline.Inspect(args[0], start, end, autoconfig.Override{})
		if err != nil {
			return err
		}
		return output(cmd, insp)
	},
}

func init() {
	infoCmd.Flags().Int("start-page", 0, "first page to estimate (default 1)")
	infoCmd.Flags().Int("end-page", 0, "last page to estimate (default last page)")
	rootCmd.AddCommand(infoCmd)
}
