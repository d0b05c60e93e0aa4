package app

import (
	"context"
	"fmt"

	"chunkmap/internal/core/config"
	"chunkmap/internal/core/errors"
	"chunkmap/internal/core/ports"
	"chunkmap/internal/engine/graph"
	"chunkmap/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type analysisService struct {
	app *App
}

var _ ports.AnalysisService = (*analysisService)(nil)

func NewAnalysisService(app *App) ports.AnalysisService {
	return &analysisService{app: app}
}

func (s *analysisService) Unwrap() *App {
	return s.app
}

func (a *App) AnalysisService() ports.AnalysisService {
	return NewAnalysisService(a)
}

func (s *analysisService) Analyze(ctx context.Context, req ports.AnalyzeRequest) (ports.AnalyzeResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.AnalyzeResult{}, err
	}
	if s.app == nil {
		return ports.AnalyzeResult{}, fmt.Errorf("app is required")
	}
	res, err := s.app.Analyze(ctx, req)
	if err != nil {
		return res, errors.AddContext(err, errors.CtxOperation, "analyze")
	}
	return res, nil
}

func (s *analysisService) Last() (ports.AnalyzeResult, bool) {
	if s.app == nil {
		return ports.AnalyzeResult{}, false
	}
	return s.app.Last()
}

func (s *analysisService) TraceImportChain(ctx context.Context, from, to string) ([]string, error) {
	_, span := observability.Tracer.Start(ctx, "analysisService.TraceImportChain", trace.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.app == nil {
		return nil, fmt.Errorf("app is required")
	}
	chain, err := s.app.TraceImportChain(from, to)
	if err != nil {
		err = errors.AddContext(err, "from", from)
		err = errors.AddContext(err, "to", to)
		return nil, err
	}
	return chain, nil
}

func (s *analysisService) AnalyzeImpact(ctx context.Context, chunkID string) (graph.ImpactReport, error) {
	if err := ctx.Err(); err != nil {
		return graph.ImpactReport{}, err
	}
	if s.app == nil {
		return graph.ImpactReport{}, fmt.Errorf("app is required")
	}
	report, err := s.app.AnalyzeImpact(chunkID)
	if err != nil {
		return graph.ImpactReport{}, errors.AddContext(err, errors.CtxChunk, chunkID)
	}
	return report, nil
}

func (s *analysisService) TopChunks(ctx context.Context, n int) ([]graph.ChunkMetrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.app == nil {
		return nil, fmt.Errorf("app is required")
	}
	return s.app.TopChunks(n)
}

func (s *analysisService) UpdateConfig(ctx context.Context, cfg *config.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.app == nil {
		return fmt.Errorf("app is required")
	}
	return s.app.UpdateConfig(cfg)
}

// UpdateConfig applies a reloaded config to later runs. The input
// directory, the AI provider and the database stay as they were at start.
func (a *App) UpdateConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	a.runMu.Lock()
	defer a.runMu.Unlock()

	next := *a.Config
	next.Input.Exclude = cfg.Input.Exclude
	next.Input.Signatures = cfg.Input.Signatures
	next.Input.HeaderLines = cfg.Input.HeaderLines
	next.Input.MaxFileBytes = cfg.Input.MaxFileBytes
	next.Analysis = cfg.Analysis
	next.Output.Formats = cfg.Output.Formats
	next.Watch = cfg.Watch
	a.Config = &next
	if a.activeWatcher != nil {
		a.activeWatcher.SetDebounce(cfg.Watch.Debounce)
	}
	return nil
}
