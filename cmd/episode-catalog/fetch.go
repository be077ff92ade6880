package main

import (
	"errors"
	"fmt"

	"github.com/rossigee/episode-catalog/internal/fetch"
	"github.com/spf13/cobra"
)

var (
	fetchDest     string
	fetchFileList string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch urls...",
	Short: "Download metadata files and append them to the file list",
	Long: `Fetch downloads each http(s):// or s3://bucket/object source into the
destination directory as maniskill_metadata<n>.json and appends the
downloaded paths to the file list used by ingest.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchDest, "dest", "", "download directory (default: fetch.dest from config)")
	fetchCmd.Flags().StringVar(&fetchFileList, "file-list", "", "file list to append to (default: file_list from config)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	dest := fetchDest
	if dest == "" {
		dest = cfg.Fetch.Dest
	}
	listPath := fetchFileList
	if listPath == "" {
		listPath = cfg.FileList
	}

	client, err := fetch.NewClient(fetch.Config{
		Endpoint:    cfg.MinIO.Endpoint,
		AccessKey:   cfg.MinIO.AccessKey,
		SecretKey:   cfg.MinIO.SecretKey,
		HTTPTimeout: cfg.Fetch.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize download client: %w", err)
	}

	paths, err := client.FetchAll(cmd.Context(), args, dest, cfg.Fetch.Prefix)
	if err != nil {
		return err
	}
	if err := fetch.AppendFileList(listPath, paths); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "downloaded %d of %d sources into %s\n", len(paths), len(args), dest)
	if len(paths) < len(args) {
		return errors.New("some sources failed to download")
	}
	return nil
}
