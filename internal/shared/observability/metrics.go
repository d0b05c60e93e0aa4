package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	FilesScannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chunkmap_files_scanned_total",
		Help: "Total number of bundle files inspected by the chunk extractor.",
	})

	FilesSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chunkmap_files_skipped_total",
		Help: "Total number of files skipped by the chunk extractor.",
	}, []string{"reason"})

	ChunksExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chunkmap_chunks_extracted_total",
		Help: "Total number of webpack module chunks extracted.",
	})

	ParseFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chunkmap_parse_failures_total",
		Help: "Total number of files or chunks that failed to parse.",
	}, []string{"phase"})

	FetchChunks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chunkmap_fetch_chunks",
		Help: "Number of chunks containing fetch calls in the last run.",
	})

	AxiosClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chunkmap_axios_clients",
		Help: "Number of chunks creating an axios client in the last run.",
	})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chunkmap_graph_nodes_total",
		Help: "Total number of chunks in the import graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chunkmap_graph_edges_total",
		Help: "Total number of import edges in the import graph.",
	})

	DiscoveredCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chunkmap_discovered_calls_total",
		Help: "Total number of API calls recovered.",
	}, []string{"source"})

	PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chunkmap_phase_seconds",
		Help:    "Time spent in each analysis phase.",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	EnrichRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chunkmap_enrich_requests_total",
		Help: "Total number of chunk description requests by outcome.",
	}, []string{"outcome"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chunkmap_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
