package ports

import (
	"context"
	"time"

	"chunkmap/internal/core/config"
	"chunkmap/internal/data/findings"
	"chunkmap/internal/engine/axios"
	"chunkmap/internal/engine/calls"
	"chunkmap/internal/engine/chunks"
	"chunkmap/internal/engine/graph"
)

// Summarizer describes a chunk's code in natural language. Implementations
// wrap one AI provider.
type Summarizer interface {
	Summarize(ctx context.Context, code, systemPrompt string) (string, error)
}

// FindingsStore persists completed runs.
type FindingsStore interface {
	SaveRun(ctx context.Context, run findings.Run, found []calls.DiscoveredAPICall) (string, error)
	LatestRun(ctx context.Context) (findings.Run, error)
	ListCalls(ctx context.Context, runID string) ([]calls.DiscoveredAPICall, error)
	Close() error
}

// AnalyzeRequest defines one analysis of a bundle directory.
type AnalyzeRequest struct {
	Dir string
	// Changed lists the files that triggered a watch-mode re-run.
	Changed []string
}

// AnalyzeResult is the chunk map and the calls recovered from it.
type AnalyzeResult struct {
	RunID     string
	Dir       string
	StartedAt time.Time
	Duration  time.Duration
	Chunks    *chunks.Set
	Graph     *graph.Graph
	Clients   []axios.Client
	Calls     []calls.DiscoveredAPICall
	Cycles    [][]string
	Outputs   []string
	// FromCache is set when the chunk map was loaded from a previous JSON
	// artifact instead of being extracted.
	FromCache bool
}

// Counts summarizes a result for logs, the store and the health endpoint.
func (r AnalyzeResult) Counts() (chunkCount, fetchChunks, axiosClients int) {
	if r.Chunks == nil {
		return 0, 0, 0
	}
	for _, c := range r.Chunks.All() {
		if c.ContainsFetch {
			fetchChunks++
		}
		if c.IsAxiosClient {
			axiosClients++
		}
	}
	return r.Chunks.Len(), fetchChunks, axiosClients
}

// AnalysisService is the driving port used by the CLI, the watcher and
// the explorer.
type AnalysisService interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResult, error)
	Last() (AnalyzeResult, bool)
	TraceImportChain(ctx context.Context, from, to string) ([]string, error)
	AnalyzeImpact(ctx context.Context, chunkID string) (graph.ImpactReport, error)
	TopChunks(ctx context.Context, n int) ([]graph.ChunkMetrics, error)
	UpdateConfig(ctx context.Context, cfg *config.Config) error
}
