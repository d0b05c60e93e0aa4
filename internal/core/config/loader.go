package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"chunkmap/internal/engine/axios"
	"chunkmap/internal/engine/chunks"

	"github.com/BurntSushi/toml"
)

const (
	DefaultOutputPath      = "output"
	DefaultDBPath          = "chunkmap.db"
	DefaultMaxResolveDepth = 64
	DefaultAIProvider      = "openai"
	DefaultAIEndpoint      = "https://api.openai.com/v1"
	DefaultAIModel         = "gpt-4o-mini"
	DefaultAIKeyEnv        = "OPENAI_API_KEY"
	DefaultSystemPrompt    = "You describe what a minified webpack module does in one short sentence. Answer with the sentence only."
)

var DefaultSignatures = chunks.DefaultSignatures

// Load reads the TOML file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, err
		}
	}

	applyDefaults(&cfg)
	normalize(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration holding only defaults.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Validate runs every section validator.
func Validate(cfg *Config) error {
	if err := validateInput(cfg); err != nil {
		return err
	}
	if err := validateAnalysis(cfg); err != nil {
		return err
	}
	if err := validateOutput(cfg); err != nil {
		return err
	}
	if err := validateAI(cfg); err != nil {
		return err
	}
	if err := validateDatabase(cfg); err != nil {
		return err
	}
	return validateWatch(cfg)
}

func applyDefaults(cfg *Config) {
	if len(cfg.Input.Signatures) == 0 {
		cfg.Input.Signatures = append([]string(nil), DefaultSignatures...)
	}
	if cfg.Input.HeaderLines == 0 {
		cfg.Input.HeaderLines = chunks.DefaultHeaderLines
	}
	if cfg.Input.MaxFileBytes == 0 {
		cfg.Input.MaxFileBytes = chunks.DefaultMaxFileBytes
	}

	if len(cfg.Analysis.HTTPVerbs) == 0 {
		cfg.Analysis.HTTPVerbs = append([]string(nil), axios.DefaultVerbs...)
	}
	if cfg.Analysis.MaxResolveDepth == 0 {
		cfg.Analysis.MaxResolveDepth = DefaultMaxResolveDepth
	}

	if strings.TrimSpace(cfg.Output.Path) == "" {
		cfg.Output.Path = DefaultOutputPath
	}
	if len(cfg.Output.Formats) == 0 {
		cfg.Output.Formats = []string{FormatJSON}
	}

	if strings.TrimSpace(cfg.AI.Provider) == "" {
		cfg.AI.Provider = DefaultAIProvider
	}
	if strings.TrimSpace(cfg.AI.Endpoint) == "" {
		cfg.AI.Endpoint = DefaultAIEndpoint
	}
	if strings.TrimSpace(cfg.AI.Model) == "" {
		cfg.AI.Model = DefaultAIModel
	}
	if strings.TrimSpace(cfg.AI.APIKeyEnv) == "" {
		cfg.AI.APIKeyEnv = DefaultAIKeyEnv
	}
	if cfg.AI.Concurrency == 0 {
		cfg.AI.Concurrency = 4
	}
	if cfg.AI.RequestsPerSecond == 0 {
		cfg.AI.RequestsPerSecond = 2
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 30 * time.Second
	}
	if strings.TrimSpace(cfg.AI.SystemPrompt) == "" {
		cfg.AI.SystemPrompt = DefaultSystemPrompt
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = DefaultDBPath
	}
	if cfg.DB.BusyTimeout == 0 {
		cfg.DB.BusyTimeout = 5 * time.Second
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 750 * time.Millisecond
	}
}

func normalize(cfg *Config) {
	cfg.Input.Dir = strings.TrimSpace(cfg.Input.Dir)
	cfg.Input.Exclude = trimAll(cfg.Input.Exclude)
	cfg.Input.Signatures = trimAll(cfg.Input.Signatures)

	verbs := trimAll(cfg.Analysis.HTTPVerbs)
	for i, v := range verbs {
		verbs[i] = strings.ToLower(v)
	}
	cfg.Analysis.HTTPVerbs = dedupe(verbs)

	formats := trimAll(cfg.Output.Formats)
	for i, f := range formats {
		formats[i] = strings.ToLower(f)
	}
	cfg.Output.Formats = dedupe(formats)
	cfg.Output.Path = strings.TrimSpace(cfg.Output.Path)

	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	cfg.AI.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.AI.Endpoint), "/")
	cfg.DB.Path = strings.TrimSpace(cfg.DB.Path)
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
