// Package report renders the catalog contents as a plain-text report.
package report

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rossigee/episode-catalog/internal/metrics"
	"github.com/rossigee/episode-catalog/internal/storage"
	"github.com/rossigee/episode-catalog/pkg/types"
	"github.com/sirupsen/logrus"
)

// DefaultSampleLimit is the number of episode rows shown per environment
const DefaultSampleLimit = 10

// Source is the read side of the catalog used by the reporter
type Source interface {
	ListEnvIDs(ctx context.Context) ([]string, error)
	ListSources(ctx context.Context) ([]types.SourceInfo, error)
	CountEpisodes(ctx context.Context, envID string) (int64, error)
	ListEpisodes(ctx context.Context, envID string, limit int) ([]types.EpisodeRecord, error)
}

// Options tunes report generation
type Options struct {
	SampleLimit int
}

// Summary describes a generated report
type Summary struct {
	Environments  int
	Sources       int
	MissingTables []string
}

// Generate writes the report for src to w. A missing episode table is
// reported inline and does not stop the report.
func Generate(ctx context.Context, src Source, w io.Writer, opts Options) (*Summary, error) {
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = DefaultSampleLimit
	}

	envIDs, err := src.ListEnvIDs(ctx)
	if err != nil {
		return nil, err
	}
	sources, err := src.ListSources(ctx)
	if err != nil {
		return nil, err
	}

	bw := bufio.NewWriter(w)
	summary := &Summary{Environments: len(envIDs), Sources: len(sources)}

	fmt.Fprintln(bw, "=== Unique Environments in Database ===")
	for _, envID := range envIDs {
		fmt.Fprintln(bw, envID)
	}
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "=== Source Info ===")
	for _, source := range sources {
		fmt.Fprintf(bw, "Env ID: %s\n", source.EnvID)
		fmt.Fprintf(bw, "   - Source Type: %s\n", source.SourceType)
		fmt.Fprintf(bw, "   - Source Description: %s\n\n", source.SourceDesc)
	}

	for _, envID := range envIDs {
		table := storage.EpisodeTableName(envID)
		fmt.Fprintf(bw, "\n=== Episodes for `%s` (Showing up to %d) ===\n",
			storage.SanitizeEnvID(envID), opts.SampleLimit)

		total, err := src.CountEpisodes(ctx, envID)
		if err != nil {
			if errors.Is(err, storage.ErrTableNotFound) {
				fmt.Fprintf(bw, "Error: table %s not found.\n", table)
				summary.MissingTables = append(summary.MissingTables, table)
				metrics.MissingEpisodeTables.Inc()
				logrus.WithField("env_id", envID).Warn("Episode table missing")
				continue
			}
			return nil, err
		}
		fmt.Fprintf(bw, "Total Episodes: %d\n", total)

		episodes, err := src.ListEpisodes(ctx, envID, opts.SampleLimit)
		if err != nil {
			fmt.Fprintf(bw, "Error querying %s: %v\n", table, err)
		}
		for _, ep := range episodes {
			fmt.Fprintln(bw, FormatEpisode(ep))
		}

		fmt.Fprintln(bw)
	}

	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	metrics.ReportsGenerated.Inc()
	return summary, nil
}

// WriteFile generates the report into the file at path
func WriteFile(ctx context.Context, src Source, path string, opts Options) (summary *Summary, err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close report file: %w", closeErr)
		}
	}()

	return Generate(ctx, src, f, opts)
}

// FormatEpisode renders an episode row as a tuple:
// (episode_id, episode_seed, 'reset_kwargs', 'control_mode', elapsed_steps, success, fail)
func FormatEpisode(ep types.EpisodeRecord) string {
	fields := []string{
		formatOptional(ep.EpisodeID),
		formatOptional(ep.EpisodeSeed),
		quote(ep.ResetKwargs),
		quote(ep.ControlMode),
		strconv.FormatInt(ep.ElapsedSteps, 10),
		formatFlag(ep.Success),
		formatFlag(ep.Fail),
	}
	return "(" + strings.Join(fields, ", ") + ")"
}

func formatOptional(v *int64) string {
	if v == nil {
		return "None"
	}
	return strconv.FormatInt(*v, 10)
}

func formatFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// quote renders s as a single-quoted literal, switching to double quotes
// when s contains only single quotes.
func quote(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}

	var sb strings.Builder
	sb.WriteByte(q)
	for _, r := range s {
		switch {
		case r == rune(q) || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, r)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(q)
	return sb.String()
}
