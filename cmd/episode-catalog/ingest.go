package main

import (
	"fmt"

	"github.com/rossigee/episode-catalog/internal/ingest"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var ingestFileList string

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Ingest metadata JSON files into the catalog",
	Long: `Ingest reads each metadata file and stores its task, source and
episode records. Without arguments the paths are read from the file list.
Missing files and files without a .json suffix are skipped. The command
exits non-zero when any file failed to parse or store.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFileList, "file-list", "", "file with one metadata path per line (default: file_list from config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		listPath := ingestFileList
		if listPath == "" {
			listPath = cfg.FileList
		}
		listed, err := ingest.ReadFileList(listPath)
		if err != nil {
			return err
		}
		paths = listed
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(store)

	manager := ingest.NewManager(store)
	summary := manager.Run(cmd.Context(), paths)

	out := cmd.OutOrStdout()
	for _, result := range summary.Results {
		switch result.Status {
		case ingest.StatusIngested:
			fmt.Fprintf(out, "ingested %s: %s -> %s (%d episodes)\n", result.Path, result.EnvID, result.Table, result.Episodes)
		case ingest.StatusSkipped:
			fmt.Fprintf(out, "skipped  %s: %s\n", result.Path, result.Reason)
		case ingest.StatusFailed:
			fmt.Fprintf(out, "failed   %s: %v\n", result.Path, result.Error)
		}
	}
	fmt.Fprintf(out, "run %s: %d ingested, %d skipped, %d failed, %d episodes\n",
		summary.RunID, summary.Ingested, summary.Skipped, summary.Failed, summary.Episodes)

	if summary.Failed > 0 {
		logrus.WithField("run_id", summary.RunID).Error("Some files failed to ingest")
		return fmt.Errorf("%d file(s) failed to ingest", summary.Failed)
	}
	return nil
}
