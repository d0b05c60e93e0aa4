package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chunkmap/internal/core/config"
	"chunkmap/internal/core/ports"
	"chunkmap/internal/engine/calls"
	"chunkmap/internal/engine/chunks"
	"chunkmap/internal/engine/graph"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Input.Dir = t.TempDir()
	a, err := New(cfg, WithBaseDir(t.TempDir()), WithVersion("test"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return a
}

func TestNew_RequiresConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestNew_ResolvesPathsAgainstBaseDir(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Input.Dir = "dist"
	a, err := New(cfg, WithBaseDir(base))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(a.Paths().InputDir, base) || !strings.HasSuffix(a.Paths().InputDir, "dist") {
		t.Fatalf("unexpected input dir %q", a.Paths().InputDir)
	}
	if a.Store() != nil {
		t.Fatal("store must stay nil while the database is disabled")
	}
}

func TestHealth_StartingUntilFirstRun(t *testing.T) {
	a := newTestApp(t)
	if got := a.Health(context.Background()).Status; got != "starting" {
		t.Fatalf("expected starting, got %q", got)
	}
	if _, err := a.TopChunks(3); err == nil {
		t.Fatal("expected an error before the first run")
	}

	set := chunks.NewSet()
	set.Add(&chunks.Chunk{ID: "1"})
	a.setLast(ports.AnalyzeResult{RunID: "r1", Chunks: set, Graph: graph.New(set)})

	h := a.Health(context.Background())
	if h.Status != "up" || h.LastRunID != "r1" || h.Chunks != 1 {
		t.Fatalf("unexpected health %+v", h)
	}
}

func TestUpdateHandlerReceivesResults(t *testing.T) {
	a := newTestApp(t)
	var got string
	a.SetUpdateHandler(func(res ports.AnalyzeResult) { got = res.RunID })
	a.emitUpdate(ports.AnalyzeResult{RunID: "r2"})
	if got != "r2" {
		t.Fatalf("expected handler to see r2, got %q", got)
	}
}

func TestUpdateConfig(t *testing.T) {
	a := newTestApp(t)
	originalDir := a.Config.Input.Dir

	next := config.Default()
	next.Input.Dir = "/elsewhere"
	next.Output.Formats = []string{config.FormatCalls}
	next.Analysis.HTTPVerbs = []string{"get"}
	next.Watch.Debounce = 2 * time.Second
	if err := a.UpdateConfig(next); err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}
	if a.Config.Input.Dir != originalDir {
		t.Fatalf("input dir must not change, got %q", a.Config.Input.Dir)
	}
	if len(a.Config.Output.Formats) != 1 || a.Config.Output.Formats[0] != config.FormatCalls {
		t.Fatalf("formats not applied: %v", a.Config.Output.Formats)
	}
	if a.Config.Watch.Debounce != 2*time.Second {
		t.Fatalf("debounce not applied: %v", a.Config.Watch.Debounce)
	}

	bad := config.Default()
	bad.Output.Formats = []string{"dot"}
	if err := a.UpdateConfig(bad); err == nil {
		t.Fatal("expected validation error")
	}
	if a.Config.Output.Formats[0] != config.FormatCalls {
		t.Fatal("a rejected config must not be applied")
	}
}

func TestFormatImpactReport(t *testing.T) {
	out := FormatImpactReport(graph.ImpactReport{
		Chunk:               "3",
		File:                "vendor.js",
		DirectImporters:     []string{"2"},
		TransitiveImporters: []string{"1"},
		Exports:             []string{"Z"},
	})
	for _, want := range []string{"Target chunk: 3", "Bundle file: vendor.js", "Direct importers (1)\n- 2", "Transitive impact (1)\n- 1", "Exports (1)\n- Z"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatImportChain(t *testing.T) {
	if got := FormatImportChain(nil); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
	got := FormatImportChain([]string{"1", "2", "3"})
	want := "Import chain: 1 -> 3\n\n1\n  -> 2\n  -> 3"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPrintSummary(t *testing.T) {
	set := chunks.NewSet()
	set.Add(&chunks.Chunk{ID: "1", ContainsFetch: true})
	set.Add(&chunks.Chunk{ID: "2", IsAxiosClient: true})

	var buf bytes.Buffer
	PrintSummary(&buf, ports.AnalyzeResult{
		RunID:  "r3",
		Chunks: set,
		Cycles: [][]string{{"1", "2"}},
		Calls: []calls.DiscoveredAPICall{
			{URL: "/api/a", Method: "GET", ChunkID: "2", FunctionFile: "main.js", FunctionFileLine: 4, CalledFrom: "1"},
		},
		Outputs: []string{"out/chunkmap.json"},
	})
	out := buf.String()
	for _, want := range []string{
		"Run r3: 2 chunks extracted",
		"Fetch chunks: 1 | Axios clients: 1",
		"FOUND 1 IMPORT CYCLES",
		"1 -> 2",
		"GET     /api/a (chunk 2, main.js:4) via chunk 1",
		"out/chunkmap.json",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestDescriptionCache(t *testing.T) {
	a := newTestApp(t)
	first := chunks.NewSet()
	first.Add(&chunks.Chunk{ID: "1", Code: "fetch('/a')", Description: "calls /a"})
	first.Add(&chunks.Chunk{ID: "2", Code: "x()", Description: "[description unavailable]"})
	a.rememberDescriptions(first)

	next := chunks.NewSet()
	next.Add(&chunks.Chunk{ID: "9", Code: "fetch('/a')"})
	next.Add(&chunks.Chunk{ID: "2", Code: "x()"})
	a.applyDescriptions(next)

	c, _ := next.Get("9")
	if c.Description != "calls /a" {
		t.Fatalf("expected cached description by content, got %q", c.Description)
	}
	c, _ = next.Get("2")
	if c.Description != "" {
		t.Fatalf("failed descriptions must not be cached, got %q", c.Description)
	}
}

func TestOpenStore_MovesCorruptFileAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunkmap.db")
	if err := os.WriteFile(path, []byte("this is not sqlite, just bytes padded out to a page"), 0o600); err != nil {
		t.Fatal(err)
	}

	store, err := openStore(path, time.Second)
	if err != nil {
		t.Fatalf("expected a fresh store, got %v", err)
	}
	defer store.Close()

	aside, err := filepath.Glob(path + ".corrupt-*")
	if err != nil {
		t.Fatal(err)
	}
	if len(aside) != 1 {
		t.Fatalf("expected the corrupt file moved aside, got %v", aside)
	}
}
