package app

import (
	"context"
	"log/slog"

	"chunkmap/internal/core/errors"
	"chunkmap/internal/core/ports"
	"chunkmap/internal/core/watcher"
)

// StartWatcher re-runs the analysis whenever bundle files under the input
// directory change. It returns once the watcher is installed.
func (a *App) StartWatcher(ctx context.Context, dir string) error {
	if dir == "" {
		dir = a.paths.InputDir
	}
	w, err := watcher.NewWatcher(a.Config.Watch.Debounce, a.Config.Input.Exclude, func(paths []string) {
		a.HandleChanges(ctx, dir, paths)
	})
	if err != nil {
		return err
	}
	if err := w.Watch(dir); err != nil {
		_ = w.Close()
		return err
	}
	a.activeWatcher = w
	slog.Info("watching for bundle changes", "dir", dir, "debounce", a.Config.Watch.Debounce)
	return nil
}

func (a *App) HandleChanges(ctx context.Context, dir string, paths []string) {
	slog.Info("detected changes", "count", len(paths))
	if _, err := a.Analyze(ctx, ports.AnalyzeRequest{Dir: dir, Changed: paths}); err != nil {
		slog.Error("re-analysis failed", errors.LogArgs(err)...)
	}
}
