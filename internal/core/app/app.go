// Package app wires the chunk map pipeline together: extraction, import
// graph, fetch and axios resolution, optional enrichment, report output
// and the findings store.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"chunkmap/internal/core/config"
	"chunkmap/internal/core/ports"
	"chunkmap/internal/core/watcher"
	"chunkmap/internal/data/findings"
	"chunkmap/internal/engine/parser"
	"chunkmap/internal/enrich"
)

type Option func(*App)

// WithSummarizer replaces the summarizer built from the [ai] section.
func WithSummarizer(s ports.Summarizer) Option {
	return func(a *App) {
		a.summarizer = s
	}
}

// WithStore replaces the store opened from the [db] section.
func WithStore(s ports.FindingsStore) Option {
	return func(a *App) {
		a.store = s
	}
}

func WithVersion(version string) Option {
	return func(a *App) {
		a.version = version
	}
}

// WithBaseDir anchors relative config paths somewhere other than the
// working directory.
func WithBaseDir(dir string) Option {
	return func(a *App) {
		a.baseDir = dir
	}
}

type App struct {
	Config *config.Config
	Parser *parser.Parser

	paths      config.ResolvedPaths
	baseDir    string
	version    string
	summarizer ports.Summarizer
	store      ports.FindingsStore

	// runMu serializes pipeline runs; watch mode may trigger one while
	// another is in flight.
	runMu sync.Mutex

	lastMu  sync.RWMutex
	last    ports.AnalyzeResult
	hasLast bool

	updateMu sync.RWMutex
	onUpdate func(ports.AnalyzeResult)

	descMu       sync.RWMutex
	descriptions map[uint64]string

	activeWatcher *watcher.Watcher
}

func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	a := &App{
		Config:       cfg,
		Parser:       parser.NewParser(nil, parser.WithPartialTrees(cfg.Parser.AllowPartial)),
		version:      "dev",
		descriptions: make(map[uint64]string),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.baseDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("detect working directory: %w", err)
		}
		a.baseDir = cwd
	}
	a.paths = config.ResolvePaths(cfg, a.baseDir)

	if a.summarizer == nil && cfg.AI.Enabled {
		s, err := newSummarizer(cfg.AI)
		if err != nil {
			return nil, err
		}
		a.summarizer = s
	}
	if a.store == nil && cfg.DB.Enabled {
		store, err := openStore(a.paths.DBPath, cfg.DB.BusyTimeout)
		if err != nil {
			return nil, err
		}
		a.store = store
	}
	return a, nil
}

// openStore opens the findings database. A corrupt file is moved aside and
// a fresh one created, since past runs can always be re-analyzed.
func openStore(path string, busyTimeout time.Duration) (*findings.Store, error) {
	store, err := findings.Open(path, busyTimeout)
	if err == nil || !findings.IsCorruptError(err) {
		return store, err
	}
	aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	if rerr := os.Rename(path, aside); rerr != nil {
		return nil, fmt.Errorf("%w (move aside: %v)", err, rerr)
	}
	slog.Warn("findings database corrupt, starting a new one", "path", path, "moved_to", aside, "error", err)
	return findings.Open(path, busyTimeout)
}

func newSummarizer(ai config.AI) (ports.Summarizer, error) {
	switch strings.ToLower(ai.Provider) {
	case "", "openai":
		key := strings.TrimSpace(os.Getenv(ai.APIKeyEnv))
		if key == "" {
			slog.Warn("AI enrichment enabled without an API key", "env", ai.APIKeyEnv)
		}
		return enrich.NewOpenAI(ai.Endpoint, ai.Model, key, ai.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider %q", ai.Provider)
	}
}

func (a *App) Paths() config.ResolvedPaths {
	return a.paths
}

func (a *App) Version() string {
	return a.version
}

// Store returns the findings store, or nil when persistence is off.
func (a *App) Store() ports.FindingsStore {
	return a.store
}

// SetUpdateHandler registers a callback invoked after every completed run.
func (a *App) SetUpdateHandler(handler func(ports.AnalyzeResult)) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.onUpdate = handler
}

func (a *App) emitUpdate(res ports.AnalyzeResult) {
	a.updateMu.RLock()
	handler := a.onUpdate
	a.updateMu.RUnlock()
	if handler != nil {
		handler(res)
	}
}

// Last returns the result of the most recent completed run.
func (a *App) Last() (ports.AnalyzeResult, bool) {
	a.lastMu.RLock()
	defer a.lastMu.RUnlock()
	return a.last, a.hasLast
}

func (a *App) setLast(res ports.AnalyzeResult) {
	a.lastMu.Lock()
	a.last = res
	a.hasLast = true
	a.lastMu.Unlock()
}

func (a *App) Close(ctx context.Context) error {
	if a.activeWatcher != nil {
		if err := a.activeWatcher.Close(); err != nil {
			slog.Warn("failed to close watcher", "error", err)
		}
		a.activeWatcher = nil
	}
	if a.store != nil {
		err := a.store.Close()
		a.store = nil
		return err
	}
	return nil
}
