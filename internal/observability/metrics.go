package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline collectors. Label sets are small and fixed.
var (
	// PipelineRuns counts ingestion and report runs by stage and outcome
	// ("ok", "source_error", "storage_error", "render_error").
	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memereport",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)

	// PipelineDuration observes the wall time of a full run.
	PipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "memereport",
			Name:      "pipeline_run_duration_seconds",
			Help:      "Duration of full pipeline runs in seconds.",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// CacheFetches counts image fetches by result ("ok", "failed", "skipped").
	CacheFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memereport",
			Name:      "cache_fetches_total",
			Help:      "Image fetches performed by the cache reconciler.",
		},
		[]string{"result"},
	)

	// CacheEvictions counts cache entries removed because their meme left the top set.
	CacheEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "memereport",
			Name:      "cache_evictions_total",
			Help:      "Cache entries evicted by reconciliation.",
		},
	)

	// Regenerations counts debouncer decisions ("reused", "regenerated", "failed").
	Regenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memereport",
			Name:      "report_regenerations_total",
			Help:      "Debouncer decisions for report requests.",
		},
		[]string{"decision"},
	)
)

func init() {
	prometheus.MustRegister(PipelineRuns, PipelineDuration, CacheFetches, CacheEvictions, Regenerations)
}
