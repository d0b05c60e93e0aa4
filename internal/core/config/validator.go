package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

var knownFormats = map[string]bool{
	FormatJSON:     true,
	FormatCalls:    true,
	FormatOpenAPI:  true,
	FormatMarkdown: true,
}

func validateInput(cfg *Config) error {
	for i, pattern := range cfg.Input.Exclude {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf("input.exclude[%d] %q is not a valid glob: %w", i, pattern, err)
		}
	}
	if len(cfg.Input.Signatures) == 0 {
		return fmt.Errorf("input.signatures must not be empty")
	}
	if cfg.Input.HeaderLines < 1 {
		return fmt.Errorf("input.header_lines must be >= 1, got %d", cfg.Input.HeaderLines)
	}
	if cfg.Input.MaxFileBytes < 1 {
		return fmt.Errorf("input.max_file_bytes must be >= 1, got %d", cfg.Input.MaxFileBytes)
	}
	return nil
}

func validateAnalysis(cfg *Config) error {
	if cfg.Analysis.MaxResolveDepth < 1 {
		return fmt.Errorf("analysis.max_resolve_depth must be >= 1, got %d", cfg.Analysis.MaxResolveDepth)
	}
	for i, verb := range cfg.Analysis.HTTPVerbs {
		for _, r := range verb {
			if !(r >= 'a' && r <= 'z' || r == '_' || r == '$') {
				return fmt.Errorf("analysis.http_verbs[%d] %q is not a method name", i, verb)
			}
		}
	}
	return nil
}

func validateOutput(cfg *Config) error {
	if cfg.Output.Path == "" {
		return fmt.Errorf("output.path must not be empty")
	}
	for _, f := range cfg.Output.Formats {
		if !knownFormats[f] {
			return fmt.Errorf("output.formats contains unknown format %q; supported: json, calls, openapi, markdown", f)
		}
	}
	return nil
}

func validateAI(cfg *Config) error {
	if !cfg.AI.Enabled {
		return nil
	}
	if cfg.AI.Provider != DefaultAIProvider {
		return fmt.Errorf("ai.provider must be %q, got %q", DefaultAIProvider, cfg.AI.Provider)
	}
	u, err := url.Parse(cfg.AI.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("ai.endpoint must be an http(s) URL, got %q", cfg.AI.Endpoint)
	}
	if strings.TrimSpace(cfg.AI.Model) == "" {
		return fmt.Errorf("ai.model must not be empty")
	}
	if cfg.AI.Concurrency < 1 {
		return fmt.Errorf("ai.concurrency must be >= 1, got %d", cfg.AI.Concurrency)
	}
	if cfg.AI.RequestsPerSecond <= 0 {
		return fmt.Errorf("ai.requests_per_second must be > 0, got %v", cfg.AI.RequestsPerSecond)
	}
	if cfg.AI.Timeout < 0 {
		return fmt.Errorf("ai.timeout must not be negative")
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if !cfg.DB.Enabled {
		return nil
	}
	if cfg.DB.Path == "" {
		return fmt.Errorf("db.path must not be empty")
	}
	if cfg.DB.BusyTimeout < 0 {
		return fmt.Errorf("db.busy_timeout must not be negative")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}
