package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolvedPaths holds the absolute locations a run reads and writes.
type ResolvedPaths struct {
	InputDir   string
	OutputBase string
	DBPath     string
	StateDir   string
}

// ResolvePaths anchors relative paths at base, normally the working
// directory.
func ResolvePaths(cfg *Config, base string) ResolvedPaths {
	return ResolvedPaths{
		InputDir:   ResolveRelative(base, cfg.Input.Dir),
		OutputBase: ResolveRelative(base, cfg.Output.Path),
		DBPath:     ResolveRelative(base, cfg.DB.Path),
		StateDir:   StateDir(),
	}
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// StateDir is where logs go when the terminal belongs to the explorer:
// $XDG_STATE_HOME/chunkmap, falling back to ~/.local/state/chunkmap.
func StateDir() string {
	if dir := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); dir != "" {
		return filepath.Join(dir, "chunkmap")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "chunkmap")
	}
	return filepath.Join(home, ".local", "state", "chunkmap")
}
