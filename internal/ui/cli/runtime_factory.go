package cli

import (
	"fmt"

	coreapp "chunkmap/internal/core/app"
	"chunkmap/internal/core/config"
	"chunkmap/internal/core/ports"
)

type analysisFactory interface {
	New(cfg *config.Config) (ports.AnalysisService, *coreapp.App, error)
}

type coreAnalysisFactory struct{}

func (coreAnalysisFactory) New(cfg *config.Config) (ports.AnalysisService, *coreapp.App, error) {
	app, err := coreapp.New(cfg, coreapp.WithVersion(versionString))
	if err != nil {
		return nil, nil, err
	}
	return app.AnalysisService(), app, nil
}

func initializeAnalysis(cfg *config.Config, factory analysisFactory) (ports.AnalysisService, *coreapp.App, error) {
	if factory == nil {
		return nil, nil, fmt.Errorf("analysis factory is required")
	}
	return factory.New(cfg)
}
