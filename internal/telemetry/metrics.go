package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// FilesProcessed counts uploads accepted by the pipeline per format
	FilesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vmap",
			Name:      "files_processed_total",
			Help:      "Total number of scanner export files processed",
		},
		[]string{"format"},
	)

	// RowsParsed counts source rows read across all containers
	RowsParsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vmap",
			Name:      "rows_parsed_total",
			Help:      "Total number of source rows parsed",
		},
		[]string{"format"},
	)

	// ParseWarnings counts soft row-level recoveries (bad dates, missing fields)
	ParseWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vmap",
			Name:      "parse_warnings_total",
			Help:      "Total number of row-level parse warnings recovered in place",
		},
		[]string{"kind"},
	)

	// MergeConflicts counts equal-timestamp field disagreements resolved by tie-break
	MergeConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vmap",
			Name:      "merge_conflicts_total",
			Help:      "Total number of merge conflicts resolved deterministically",
		},
	)

	// UploadsRejected counts files refused before any row was merged
	UploadsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vmap",
			Name:      "uploads_rejected_total",
			Help:      "Total number of uploads rejected",
		},
		[]string{"reason"},
	)

	// DatasetsPublished counts atomic dataset publishes
	DatasetsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vmap",
			Name:      "datasets_published_total",
			Help:      "Total number of unified datasets published",
		},
	)

	// FindingsCurrent tracks the size of the last published dataset
	FindingsCurrent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vmap",
			Name:      "findings_current",
			Help:      "Number of findings in the current unified dataset",
		},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry
// This function is idempotent and can be called multiple times safely
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(FilesProcessed)
		prometheus.DefaultRegisterer.Register(RowsParsed)
		prometheus.DefaultRegisterer.Register(ParseWarnings)
		prometheus.DefaultRegisterer.Register(MergeConflicts)
		prometheus.DefaultRegisterer.Register(UploadsRejected)
		prometheus.DefaultRegisterer.Register(DatasetsPublished)
		prometheus.DefaultRegisterer.Register(FindingsCurrent)
	})
}
