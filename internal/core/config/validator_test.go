package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad glob", func(c *Config) { c.Input.Exclude = []string{"[a"} }, "input.exclude[0]"},
		{"zero header lines", func(c *Config) { c.Input.HeaderLines = -1 }, "input.header_lines"},
		{"unknown format", func(c *Config) { c.Output.Formats = []string{"xml"} }, "unknown format"},
		{"empty output path", func(c *Config) { c.Output.Path = "" }, "output.path"},
		{"verb with dot", func(c *Config) { c.Analysis.HTTPVerbs = []string{"get.x"} }, "analysis.http_verbs[0]"},
		{"depth", func(c *Config) { c.Analysis.MaxResolveDepth = 0 }, "max_resolve_depth"},
		{"ai provider ignored when disabled", func(c *Config) { c.AI.Provider = "other" }, ""},
		{"ai provider", func(c *Config) { c.AI.Enabled = true; c.AI.Provider = "other" }, "ai.provider"},
		{"ai endpoint", func(c *Config) { c.AI.Enabled = true; c.AI.Endpoint = "localhost" }, "ai.endpoint"},
		{"ai rate", func(c *Config) { c.AI.Enabled = true; c.AI.RequestsPerSecond = -1 }, "requests_per_second"},
		{"db path", func(c *Config) { c.DB.Enabled = true; c.DB.Path = "" }, "db.path"},
		{"watch", func(c *Config) { c.Watch.Debounce = -1 }, "watch.debounce"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
