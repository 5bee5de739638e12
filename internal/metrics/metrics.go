package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Normalization metrics
	SourcesNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citations_sources_normalized_total",
			Help: "Total number of raw tool sources normalized into citations",
		},
		[]string{"origin"},
	)

	SourcesFiltered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "citations_sources_filtered_total",
			Help: "Total number of raw sources dropped by the attachment validity filter",
		},
	)

	// Accumulator metrics
	CitationsAccumulated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citations_accumulated_total",
			Help: "Total number of citations appended to accumulator groups",
		},
		[]string{"source_key"},
	)

	DuplicatesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "citations_duplicates_skipped_total",
			Help: "Total number of sources skipped by the merge dedup rule",
		},
	)

	GroupSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "citations_group_size",
			Help:    "Citations per (turn, sourceKey) group after merge",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	// Marker metrics
	MarkersParsed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "citations_markers_parsed_total",
			Help: "Total number of markers parsed out of assistant text",
		},
	)

	MarkersStripped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "citations_markers_stripped_total",
			Help: "Total number of markers stripped because no reference resolved",
		},
	)

	// Export metrics
	ExportsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "citations_exports_total",
			Help: "Total number of plain-text exports rendered",
		},
	)

	ExportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "citations_export_duration_seconds",
			Help:    "Plain-text export rendering duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Store metrics
	AttachmentsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citations_attachments_saved_total",
			Help: "Total number of attachments persisted",
		},
		[]string{"backend"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citations_store_errors_total",
			Help: "Total number of attachment store failures",
		},
		[]string{"backend", "operation"},
	)
)
