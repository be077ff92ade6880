// Package ingest runs metadata documents through extraction and into the catalog.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rossigee/episode-catalog/internal/metadata"
	"github.com/rossigee/episode-catalog/internal/metrics"
	"github.com/rossigee/episode-catalog/internal/storage"
	"github.com/rossigee/episode-catalog/pkg/types"
	"github.com/sirupsen/logrus"
)

// FileStatus is the outcome of one file
type FileStatus string

const (
	StatusIngested FileStatus = metrics.StatusIngested
	StatusSkipped  FileStatus = metrics.StatusSkipped
	StatusFailed   FileStatus = metrics.StatusFailed
)

// Writer persists the records of one environment
type Writer interface {
	SaveEnvironment(ctx context.Context, task types.TaskInfo, source types.SourceInfo,
		episodes []types.EpisodeRecord) (*storage.SaveResult, error)
}

// FileResult records what happened to one metadata file
type FileResult struct {
	Path     string
	Status   FileStatus
	EnvID    string
	Table    string
	Episodes int
	Reason   string
	Error    error
	Duration time.Duration
}

// RunSummary aggregates the results of one run
type RunSummary struct {
	RunID    string
	Results  []*FileResult
	Ingested int
	Skipped  int
	Failed   int
	Episodes int
}

// Manager ingests metadata files one at a time
type Manager struct {
	writer Writer
	runID  string
	log    *logrus.Entry
}

// NewManager creates a new ingest manager
func NewManager(writer Writer) *Manager {
	runID := uuid.New().String()
	return &Manager{
		writer: writer,
		runID:  runID,
		log:    logrus.WithField("run_id", runID),
	}
}

// RunID returns the id tagged on every log line of this manager
func (m *Manager) RunID() string {
	return m.runID
}

// Run ingests paths sequentially, each file to completion before the next.
// A failing file does not stop the run.
func (m *Manager) Run(ctx context.Context, paths []string) *RunSummary {
	summary := &RunSummary{RunID: m.runID}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			m.log.WithError(err).Warn("Ingestion interrupted")
			break
		}

		result := m.IngestFile(ctx, path)
		summary.Results = append(summary.Results, result)

		switch result.Status {
		case StatusIngested:
			summary.Ingested++
			summary.Episodes += result.Episodes
		case StatusSkipped:
			summary.Skipped++
		case StatusFailed:
			summary.Failed++
		}
	}

	m.log.WithFields(logrus.Fields{
		"ingested": summary.Ingested,
		"skipped":  summary.Skipped,
		"failed":   summary.Failed,
		"episodes": summary.Episodes,
	}).Info("Ingestion complete")

	return summary
}

// IngestFile loads, extracts and saves a single metadata file. Missing
// files and paths without a .json suffix are skipped.
func (m *Manager) IngestFile(ctx context.Context, path string) *FileResult {
	start := time.Now()
	result := &FileResult{Path: path}
	log := m.log.WithField("file", path)

	defer func() {
		result.Duration = time.Since(start)
		metrics.FilesProcessed.WithLabelValues(string(result.Status)).Inc()
		if result.Status == StatusIngested {
			metrics.IngestDuration.Observe(result.Duration.Seconds())
		}
	}()

	if reason := skipReason(path); reason != "" {
		result.Status = StatusSkipped
		result.Reason = reason
		log.WithField("reason", reason).Warn("Skipping metadata file")
		return result
	}

	log.Info("Processing metadata file")

	doc, err := metadata.Load(path)
	if err != nil {
		return m.fail(result, log, fmt.Errorf("failed to load metadata: %w", err))
	}

	extraction := metadata.Extract(doc)
	result.EnvID = extraction.Task.EnvID

	saved, err := m.writer.SaveEnvironment(ctx, extraction.Task, extraction.Source, extraction.Episodes)
	if err != nil {
		return m.fail(result, log, fmt.Errorf("failed to save environment %s: %w", result.EnvID, err))
	}

	result.Status = StatusIngested
	result.Table = saved.Table
	result.Episodes = saved.Episodes

	metrics.EnvironmentsUpserted.Inc()
	metrics.EpisodesWritten.Add(float64(saved.Episodes))

	log.WithFields(logrus.Fields{
		"env_id":   saved.EnvID,
		"table":    saved.Table,
		"episodes": saved.Episodes,
	}).Info("Saved episodes")

	return result
}

func (m *Manager) fail(result *FileResult, log *logrus.Entry, err error) *FileResult {
	result.Status = StatusFailed
	result.Error = err
	log.WithError(err).Error("Failed to ingest metadata file")
	return result
}

func skipReason(path string) string {
	if !strings.HasSuffix(path, ".json") {
		return "not a .json file"
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "file does not exist"
		}
		return err.Error()
	}
	if info.IsDir() {
		return "path is a directory"
	}
	return ""
}

// ReadFileList reads metadata paths from a line-oriented file. Blank lines
// and lines starting with '#' are ignored.
func ReadFileList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file list: %w", err)
	}
	defer func() {
		_ = f.Close() // Close errors are not critical for reads
	}()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file list: %w", err)
	}

	return paths, nil
}
