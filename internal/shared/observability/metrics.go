package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	EnvironmentBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "typecore_environment_build_seconds",
		Help:    "Time spent building one environment layer.",
		Buckets: prometheus.DefBuckets,
	}, []string{"layer"})

	EnvironmentReadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "typecore_environment_reads_total",
		Help: "Total number of reads served by an environment layer.",
	}, []string{"layer"})

	DependencyInvalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "typecore_dependency_invalidations_total",
		Help: "Total number of dependencies triggered by invalidation, per layer.",
	}, []string{"layer"})

	DefinitionCacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "typecore_definition_cache_lookups_total",
		Help: "Definition cache lookups by kind (function, class) and result (hit, miss, disabled).",
	}, []string{"kind", "result"})

	AttributeTableCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "typecore_attribute_table_cache_total",
		Help: "Attribute table cache lookups by result (hit, miss).",
	}, []string{"result"})

	SourcesLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "typecore_sources_loaded",
		Help: "Number of modules currently loaded into the environment.",
	})

	SourceParseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "typecore_source_parse_seconds",
		Help:    "Time spent parsing one Python source file.",
		Buckets: prometheus.DefBuckets,
	})
)
