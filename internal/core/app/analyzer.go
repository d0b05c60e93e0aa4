package app

import (
	"context"
	"log/slog"
	"time"

	"chunkmap/internal/core/config"
	"chunkmap/internal/core/errors"
	"chunkmap/internal/core/ports"
	"chunkmap/internal/data/findings"
	"chunkmap/internal/engine/axios"
	"chunkmap/internal/engine/calls"
	"chunkmap/internal/engine/chunks"
	"chunkmap/internal/engine/fetch"
	"chunkmap/internal/engine/graph"
	"chunkmap/internal/engine/resolver"
	"chunkmap/internal/enrich"
	"chunkmap/internal/shared/observability"
	"chunkmap/internal/shared/util"
	"chunkmap/internal/ui/report"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Analyze runs the whole pipeline over one bundle directory. Per-file and
// per-chunk failures are logged and skipped; only an unusable input
// directory or a failed output write is returned as an error.
func (a *App) Analyze(ctx context.Context, req ports.AnalyzeRequest) (ports.AnalyzeResult, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	dir := a.paths.InputDir
	if req.Dir != "" {
		dir = config.ResolveRelative(a.baseDir, req.Dir)
	}
	started := time.Now()
	res := ports.AnalyzeResult{
		RunID:     uuid.NewString(),
		Dir:       dir,
		StartedAt: started.UTC(),
	}
	ctx, end := observability.StartPhase(ctx, "analyze", attribute.String("dir", dir), attribute.String("run_id", res.RunID))
	defer end()
	if err := ctx.Err(); err != nil {
		return res, err
	}

	set, fromCache, err := a.loadChunks(ctx, dir, len(req.Changed) > 0)
	if err != nil {
		return res, err
	}
	res.Chunks = set
	res.FromCache = fromCache

	if !fromCache {
		_, endImports := observability.StartPhase(ctx, "imports")
		graph.Connect(set, a.Parser)
		endImports()
	}

	_, endGraph := observability.StartPhase(ctx, "graph")
	res.Graph = graph.New(set)
	res.Cycles = res.Graph.DetectCycles()
	endGraph()
	if len(res.Cycles) > 0 {
		slog.Info("import cycles detected", "count", len(res.Cycles))
	}

	lines := calls.NewLineIndex(dir)
	sink := calls.NewCollector()
	res.Clients = a.traceCalls(ctx, set, lines, sink)
	res.Calls = calls.Sorted(sink.Calls())

	if a.summarizer != nil {
		ctx, endEnrich := observability.StartPhase(ctx, "enrich")
		a.applyDescriptions(set)
		described := enrich.New(a.summarizer, enrich.Options{
			SystemPrompt:      a.Config.AI.SystemPrompt,
			Concurrency:       a.Config.AI.Concurrency,
			RequestsPerSecond: a.Config.AI.RequestsPerSecond,
		}).Describe(ctx, set)
		a.rememberDescriptions(set)
		endEnrich()
		slog.Info("chunk descriptions requested", "described", described)
	}

	res.Duration = time.Since(started)

	_, endOutput := observability.StartPhase(ctx, "output")
	outputs, err := report.Write(a.paths.OutputBase, a.Config.Output.Formats, report.Data{
		RunID:       res.RunID,
		Dir:         dir,
		Version:     a.version,
		GeneratedAt: res.StartedAt,
		Chunks:      set,
		Graph:       res.Graph,
		Clients:     res.Clients,
		Calls:       res.Calls,
		Cycles:      res.Cycles,
	})
	endOutput()
	res.Outputs = outputs
	if err != nil {
		return res, errors.AddContext(errors.Wrap(err, errors.CodeIO, "write outputs"), errors.CtxPath, a.paths.OutputBase)
	}

	a.persist(ctx, res)

	chunkCount, fetchChunks, axiosClients := res.Counts()
	mem := util.ReadMem()
	slog.Info("analysis complete",
		"run_id", res.RunID,
		"chunks", chunkCount,
		"fetch_chunks", fetchChunks,
		"axios_clients", axiosClients,
		"calls", len(res.Calls),
		"cycles", len(res.Cycles),
		"duration", res.Duration.Round(time.Millisecond),
		"heap_mb", mem.HeapAllocMB,
		"gc_cycles", mem.NumGC,
	)

	for _, st := range a.Parser.PoolStats() {
		slog.Debug("parser pool", "grammar", st.Grammar, "parses", st.Parses, "in_use", st.InUse)
	}

	a.setLast(res)
	a.emitUpdate(res)
	return res, nil
}

// loadChunks extracts the chunk map, or reuses the previous chunk map
// artifact when enrichment is on and nothing changed since.
func (a *App) loadChunks(ctx context.Context, dir string, changed bool) (*chunks.Set, bool, error) {
	_, end := observability.StartPhase(ctx, "extract")
	defer end()

	cachePath := report.ChunkMapPath(a.paths.OutputBase)
	if a.Config.AI.Enabled && !changed && chunks.Exists(cachePath) {
		set, err := chunks.Load(cachePath)
		if err == nil {
			slog.Info("loaded chunk map from previous output", "path", cachePath, "chunks", set.Len())
			return set, true, nil
		}
		slog.Warn("previous chunk map unreadable, extracting again", "path", cachePath, "error", err)
	}

	ex, err := chunks.NewExtractor(a.Parser, chunks.Options{
		Signatures:   a.Config.Input.Signatures,
		HeaderLines:  a.Config.Input.HeaderLines,
		Exclude:      a.Config.Input.Exclude,
		MaxFileBytes: a.Config.Input.MaxFileBytes,
	})
	if err != nil {
		return nil, false, err
	}
	set, err := ex.Extract(dir)
	if err != nil {
		return nil, false, err
	}
	slog.Info("chunks extracted", "dir", dir, "chunks", set.Len(), "files", len(set.Files()))
	return set, false, nil
}

// traceCalls flags fetch chunks, traces axios clients and resolves fetch
// calls. Each phase parses the chunks on its own.
func (a *App) traceCalls(ctx context.Context, set *chunks.Set, lines *calls.LineIndex, sink *calls.Collector) []axios.Client {
	cfg := a.Config.Analysis
	fetchEnabled := cfg.FetchEnabled()

	if fetchEnabled {
		_, end := observability.StartPhase(ctx, "fetch_detect")
		modules := graph.NewModuleCache(a.Parser, set, "fetch_detect")
		n := fetch.MarkChunks(set, modules)
		modules.Close()
		end()
		slog.Info("fetch chunks flagged", "count", n)
	} else {
		for _, c := range set.All() {
			c.ContainsFetch = false
		}
	}

	var clients []axios.Client
	if cfg.AxiosEnabled() {
		_, end := observability.StartPhase(ctx, "axios")
		modules := graph.NewModuleCache(a.Parser, set, "axios")
		values := resolver.New(modules, resolver.WithMaxDepth(cfg.MaxResolveDepth))
		clients = axios.NewTracer(modules, values, lines, sink, cfg.HTTPVerbs).Run()
		modules.Close()
		end()
	} else {
		for _, c := range set.All() {
			c.IsAxiosClient = false
		}
	}

	if fetchEnabled {
		_, end := observability.StartPhase(ctx, "fetch_calls")
		modules := graph.NewModuleCache(a.Parser, set, "fetch_calls")
		values := resolver.New(modules, resolver.WithMaxDepth(cfg.MaxResolveDepth))
		cr := fetch.NewCallResolver(a.Parser, modules, values, lines, sink)
		n := cr.Run(set)
		cr.Close()
		modules.Close()
		end()
		slog.Info("fetch calls resolved", "count", n)
	}
	return clients
}

// persist saves the run when a store is configured. A failed save is
// logged; the artifacts on disk are already complete.
func (a *App) persist(ctx context.Context, res ports.AnalyzeResult) {
	if a.store == nil {
		return
	}
	_, end := observability.StartPhase(ctx, "persist")
	defer end()
	chunkCount, fetchChunks, axiosClients := res.Counts()
	_, err := a.store.SaveRun(ctx, findings.Run{
		ID:            res.RunID,
		Dir:           res.Dir,
		StartedAt:     res.StartedAt,
		Duration:      res.Duration,
		ChunkCount:    chunkCount,
		FetchChunks:   fetchChunks,
		AxiosClients:  axiosClients,
		CallCount:     len(res.Calls),
		SchemaVersion: findings.SchemaVersion,
	}, res.Calls)
	if err != nil {
		slog.Warn("failed to persist run", "run_id", res.RunID, "error", err)
	}
}
