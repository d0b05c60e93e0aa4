package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: CHUNKMAP_[SECTION]_[KEY] (e.g., CHUNKMAP_OUTPUT_PATH).
func ApplyEnvOverrides(cfg *Config) {
	// Input
	setEnvString(&cfg.Input.Dir, "CHUNKMAP_INPUT_DIR")
	setEnvList(&cfg.Input.Exclude, "CHUNKMAP_INPUT_EXCLUDE")
	setEnvList(&cfg.Input.Signatures, "CHUNKMAP_INPUT_SIGNATURES")
	setEnvInt(&cfg.Input.HeaderLines, "CHUNKMAP_INPUT_HEADER_LINES")
	setEnvInt64(&cfg.Input.MaxFileBytes, "CHUNKMAP_INPUT_MAX_FILE_BYTES")

	// Parser
	setEnvBool(&cfg.Parser.AllowPartial, "CHUNKMAP_PARSER_ALLOW_PARTIAL")

	// Analysis
	setEnvBoolPtr(&cfg.Analysis.Fetch, "CHUNKMAP_ANALYSIS_FETCH")
	setEnvBoolPtr(&cfg.Analysis.Axios, "CHUNKMAP_ANALYSIS_AXIOS")
	setEnvList(&cfg.Analysis.HTTPVerbs, "CHUNKMAP_ANALYSIS_HTTP_VERBS")
	setEnvInt(&cfg.Analysis.MaxResolveDepth, "CHUNKMAP_ANALYSIS_MAX_RESOLVE_DEPTH")

	// Output
	setEnvString(&cfg.Output.Path, "CHUNKMAP_OUTPUT_PATH")
	setEnvList(&cfg.Output.Formats, "CHUNKMAP_OUTPUT_FORMATS")

	// AI
	setEnvBool(&cfg.AI.Enabled, "CHUNKMAP_AI_ENABLED")
	setEnvString(&cfg.AI.Provider, "CHUNKMAP_AI_PROVIDER")
	setEnvString(&cfg.AI.Endpoint, "CHUNKMAP_AI_ENDPOINT")
	setEnvString(&cfg.AI.Model, "CHUNKMAP_AI_MODEL")
	setEnvString(&cfg.AI.APIKeyEnv, "CHUNKMAP_AI_API_KEY_ENV")
	setEnvInt(&cfg.AI.Concurrency, "CHUNKMAP_AI_CONCURRENCY")
	setEnvFloat64(&cfg.AI.RequestsPerSecond, "CHUNKMAP_AI_REQUESTS_PER_SECOND")
	setEnvDuration(&cfg.AI.Timeout, "CHUNKMAP_AI_TIMEOUT")

	// Database
	setEnvBool(&cfg.DB.Enabled, "CHUNKMAP_DB_ENABLED")
	setEnvString(&cfg.DB.Path, "CHUNKMAP_DB_PATH")
	setEnvDuration(&cfg.DB.BusyTimeout, "CHUNKMAP_DB_BUSY_TIMEOUT")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddr, "CHUNKMAP_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "CHUNKMAP_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.EnableTracing, "CHUNKMAP_OBSERVABILITY_ENABLE_TRACING")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "CHUNKMAP_WATCH_DEBOUNCE")
}

func logOverride(key, val string) {
	slog.Debug("applying env override", "key", key, "value", val)
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		logOverride(key, val)
		*target = val
	}
}

// setEnvList splits a comma separated value.
func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		logOverride(key, val)
		*target = trimAll(strings.Split(val, ","))
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			logOverride(key, val)
			*target = i
		}
	}
}

func setEnvInt64(target *int64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			logOverride(key, val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			logOverride(key, val)
			*target = b
		}
	}
}

func setEnvBoolPtr(target **bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			logOverride(key, val)
			*target = &b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			logOverride(key, val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			logOverride(key, val)
			*target = d
		}
	}
}
