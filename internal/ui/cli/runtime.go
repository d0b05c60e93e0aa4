package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	coreapp "chunkmap/internal/core/app"
	"chunkmap/internal/core/config"
	"chunkmap/internal/core/errors"
	"chunkmap/internal/core/ports"
	"chunkmap/internal/shared/observability"
)

const defaultConfigPath = "./" + config.DefaultPath

func Run(args []string) int {
	opts, err := parseOptions(args)
	if err != nil {
		return 2
	}

	if opts.version {
		fmt.Printf("chunkmap v%s\n", versionString)
		return 0
	}

	cleanupLogs := configureLogging(opts.ui, opts.verbose)
	defer cleanupLogs()

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	if err := applyModeOptions(&opts, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	if strings.TrimSpace(cfg.Input.Dir) == "" {
		fmt.Fprintln(os.Stderr, "an input directory is required: chunkmap [flags] <dir>")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := initTracing(ctx, cfg)
	defer shutdownTracing()

	analysis, app, err := initializeAnalysis(cfg, coreAnalysisFactory{})
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			slog.Warn("failed to close app", "error", err)
		}
	}()

	server := startObservability(ctx, cfg, app)
	if server != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(shutdownCtx)
		}()
	}

	res, err := analysis.Analyze(ctx, ports.AnalyzeRequest{})
	if err != nil {
		slog.Error("analysis failed", errors.LogArgs(err)...)
		return 1
	}

	if stop, code := runSingleCommand(ctx, analysis, opts); stop {
		return code
	}

	if !opts.ui {
		coreapp.PrintSummary(os.Stdout, res)
	}

	if opts.watch {
		if err := app.StartWatcher(ctx, ""); err != nil {
			slog.Error("failed to start watcher", "error", err)
			return 1
		}
		if cfgWatcher := watchConfig(ctx, opts.configPath, analysis); cfgWatcher != nil {
			defer cfgWatcher.Stop()
		}
		if !opts.ui {
			app.SetUpdateHandler(func(res ports.AnalyzeResult) {
				coreapp.PrintSummary(os.Stdout, res)
			})
		}
	}

	if opts.ui {
		if err := runUI(app, analysis); err != nil {
			slog.Error("failed to run UI", "error", err)
			return 1
		}
		return 0
	}

	if !opts.watch {
		return 0
	}
	<-ctx.Done()
	return 0
}

// applyModeOptions folds flags and positional arguments into cfg.
func applyModeOptions(opts *cliOptions, cfg *config.Config) error {
	modes := 0
	for _, on := range []bool{opts.trace, opts.impact != "", opts.top > 0} {
		if on {
			modes++
		}
	}
	if modes > 1 {
		return errors.New(errors.CodeValidationError, "--trace, --impact and --top cannot be combined")
	}
	if modes == 1 && (opts.watch || opts.ui) {
		return errors.New(errors.CodeValidationError, "--trace, --impact and --top print a single answer and cannot be combined with --watch or --ui")
	}

	args := opts.args
	if opts.trace {
		switch len(args) {
		case 2:
		case 3:
			cfg.Input.Dir = args[0]
			args = args[1:]
		default:
			return errors.New(errors.CodeValidationError, "trace mode requires two chunk arguments: chunkmap --trace [dir] <from> <to>")
		}
		opts.args = args
	} else {
		if len(args) > 1 {
			return fmt.Errorf("expected one input directory, got %d arguments", len(args))
		}
		if len(args) == 1 {
			cfg.Input.Dir = args[0]
		}
	}

	if opts.output != "" {
		cfg.Output.Path = opts.output
	}
	if opts.formats != "" {
		cfg.Output.Formats = splitFormats(opts.formats)
	}
	if opts.ai {
		cfg.AI.Enabled = true
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if path == defaultConfigPath {
		if _, statErr := os.Stat(path); statErr != nil {
			slog.Debug("no config file found, using defaults", "path", path)
		}
	}
	config.ApplyEnvOverrides(cfg)
	return cfg, nil
}

func runSingleCommand(ctx context.Context, analysis ports.AnalysisService, opts cliOptions) (bool, int) {
	if analysis == nil {
		fmt.Fprintln(os.Stderr, "analysis service unavailable")
		return true, 1
	}

	if opts.trace {
		chain, err := analysis.TraceImportChain(ctx, opts.args[0], opts.args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			return true, 1
		}
		fmt.Println(coreapp.FormatImportChain(chain))
		return true, 0
	}

	if opts.impact != "" {
		report, err := analysis.AnalyzeImpact(ctx, opts.impact)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			return true, 1
		}
		fmt.Print(coreapp.FormatImpactReport(report))
		return true, 0
	}

	if opts.top > 0 {
		top, err := analysis.TopChunks(ctx, opts.top)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			return true, 1
		}
		fmt.Printf("%-12s %7s %7s %7s\n", "CHUNK", "FAN-IN", "FAN-OUT", "SCORE")
		for _, m := range top {
			fmt.Printf("%-12s %7d %7d %7.0f\n", m.Chunk, m.FanIn, m.FanOut, m.ImportanceScore)
		}
		return true, 0
	}

	return false, 0
}

func initTracing(ctx context.Context, cfg *config.Config) func() {
	if !cfg.Observability.EnableTracing || cfg.Observability.OTLPEndpoint == "" {
		return func() {}
	}
	shutdown, err := observability.InitTracing(ctx, observability.TracingOptions{
		Endpoint: cfg.Observability.OTLPEndpoint,
		Version:  versionString,
		Insecure: true,
	})
	if err != nil {
		slog.Warn("tracing disabled", "endpoint", cfg.Observability.OTLPEndpoint, "error", err)
		return func() {}
	}
	return func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}
}

func startObservability(ctx context.Context, cfg *config.Config, app *coreapp.App) *observability.Server {
	addr := strings.TrimSpace(cfg.Observability.MetricsAddr)
	if addr == "" {
		return nil
	}
	server := observability.NewServer(addr, app.Health)
	if err := server.Start(ctx); err != nil {
		slog.Warn("failed to start observability server", "addr", addr, "error", err)
		return nil
	}
	return server
}

// watchConfig applies edits of the config file to later runs. Nothing is
// watched when the file does not exist.
func watchConfig(ctx context.Context, path string, analysis ports.AnalysisService) *config.Watcher {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	w := config.NewWatcher(path, func(cfg *config.Config) {
		if err := analysis.UpdateConfig(ctx, cfg); err != nil {
			slog.Warn("ignoring reloaded config", "path", path, "error", err)
			return
		}
		slog.Info("config reloaded", "path", path)
	})
	if err := w.Start(ctx); err != nil {
		slog.Warn("failed to watch config", "path", path, "error", err)
		return nil
	}
	return w
}

func configureLogging(uiMode, verbose bool) func() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	output := os.Stdout
	var closeFn func() = func() {}
	if uiMode {
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else {
			if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
				fmt.Fprintf(os.Stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
			} else {
				f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
				if err == nil {
					output = f
					closeFn = func() { _ = f.Close() }
				} else {
					fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
				}
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return closeFn
}

func resolveLogPath() string {
	return filepath.Join(config.StateDir(), "chunkmap.log")
}
