// Package metrics holds the Prometheus collectors of the episode catalog.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "episode_catalog"

// File statuses used as the "status" label of FilesProcessed
const (
	StatusIngested = "ingested"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

var (
	// Registry is the private registry every collector is registered on
	Registry = prometheus.NewRegistry()

	// FilesProcessed counts metadata files by outcome
	FilesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_processed_total",
		Help:      "Metadata files processed, by outcome.",
	}, []string{"status"})

	// EpisodesWritten counts episode rows written
	EpisodesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "episodes_written_total",
		Help:      "Episode rows inserted or replaced.",
	})

	// EnvironmentsUpserted counts task/source upserts
	EnvironmentsUpserted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "environments_upserted_total",
		Help:      "Environment task and source rows upserted.",
	})

	// IngestDuration observes per-file ingestion time
	IngestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingest_duration_seconds",
		Help:      "Time spent ingesting one metadata file.",
		Buckets:   prometheus.DefBuckets,
	})

	// ReportsGenerated counts generated reports
	ReportsGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_generated_total",
		Help:      "Text reports generated.",
	})

	// MissingEpisodeTables counts environments reported without an episode table
	MissingEpisodeTables = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "report_missing_tables_total",
		Help:      "Environments whose episode table was missing at report time.",
	})

	// DownloadsTotal counts fetched metadata documents by outcome
	DownloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloads_total",
		Help:      "Metadata document downloads, by scheme and outcome.",
	}, []string{"scheme", "status"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		FilesProcessed,
		EpisodesWritten,
		EnvironmentsUpserted,
		IngestDuration,
		ReportsGenerated,
		MissingEpisodeTables,
		DownloadsTotal,
	)
}

// Handler serves the registry in the Prometheus exposition format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
