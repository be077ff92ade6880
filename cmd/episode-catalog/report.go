package main

import (
	"fmt"

	"github.com/rossigee/episode-catalog/internal/report"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	reportOutput string
	reportLimit  int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a text report of the catalog",
	Long: `Report lists the task and source tables, then up to --limit episodes
for every environment. Use --output - to print to stdout.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "report file, - for stdout (default: report.output from config)")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 0, "episodes shown per environment (default: report.sample_limit from config)")
}

func runReport(cmd *cobra.Command, args []string) error {
	output := reportOutput
	if output == "" {
		output = cfg.Report.Output
	}
	opts := report.Options{SampleLimit: cfg.Report.SampleLimit}
	if reportLimit > 0 {
		opts.SampleLimit = reportLimit
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(store)

	if output == "-" {
		_, err := report.Generate(cmd.Context(), store, cmd.OutOrStdout(), opts)
		return err
	}

	summary, err := report.WriteFile(cmd.Context(), store, output, opts)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"output":         output,
		"environments":   summary.Environments,
		"missing_tables": summary.MissingTables,
	}).Info("Report written")
	fmt.Fprintf(cmd.OutOrStdout(), "Query results written to %s\n", output)
	return nil
}
