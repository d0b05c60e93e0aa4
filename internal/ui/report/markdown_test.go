package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chunkmap/internal/engine/chunks"
	"chunkmap/internal/engine/graph"
)

func TestMarkdownGenerator_Generate(t *testing.T) {
	dir := t.TempDir()
	out := NewMarkdownGenerator(DefaultMarkdownOptions()).Generate(sampleData(dir))

	for _, want := range []string{
		"run_id: run-1",
		"## Executive Summary",
		"| Chunks | 3 |",
		"| Bundle Files | 2 |",
		"| Axios Clients | 1 |",
		"| API Calls (fetch / axios) | 2 (1 / 1) |",
		"| Partially Resolved URLs | 1 |",
		"`vendor.js:4`",
		"| `3` | `i` | `n(7).Z` | `https://api.example.com/v1` | X-App |",
		"## Circular Imports",
		"`2 -> 3 -> 2`",
		"```mermaid",
		"c_1 --> c_2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in report:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<details>") {
		t.Error("small tables must not collapse")
	}
}

func TestMarkdownGenerator_Empty(t *testing.T) {
	opts := DefaultMarkdownOptions()
	opts.IncludeMermaid = false
	out := NewMarkdownGenerator(opts).Generate(Data{Chunks: chunks.NewSet()})
	for _, want := range []string{
		"No API calls discovered.",
		"No axios client creation found.",
		"No circular imports detected.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in report", want)
		}
	}
	if strings.Contains(out, "Network Graph") {
		t.Error("diagram disabled but rendered")
	}
}

func TestMarkdownGenerator_CollapsesLongTables(t *testing.T) {
	data := sampleData(t.TempDir())
	for i := 0; i < collapseThreshold; i++ {
		data.Calls = append(data.Calls, data.Calls[1])
	}
	out := NewMarkdownGenerator(DefaultMarkdownOptions()).Generate(data)
	if !strings.Contains(out, "<summary>Call details</summary>") {
		t.Fatal("expected the calls table to collapse")
	}
}

func TestWriteMarkdown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "report.md")
	if err := WriteMarkdown(path, sampleData(dir)); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(raw), "---\n") {
		t.Fatal("expected frontmatter")
	}
}

func TestNetworkDiagram(t *testing.T) {
	set := chunks.NewSet()
	set.Add(&chunks.Chunk{ID: "a-1", Imports: []string{"f"}})
	set.Add(&chunks.Chunk{ID: "f", ContainsFetch: true})
	set.Add(&chunks.Chunk{ID: "x", IsAxiosClient: true, ContainsFetch: true})
	set.Add(&chunks.Chunk{ID: "idle"})

	out := NetworkDiagram(graph.New(set))
	for _, want := range []string{
		`c_a_1["chunk a-1"]`,
		`c_f["chunk f\n(fetch)"]`,
		`c_x["chunk x\n(fetch, axios)"]`,
		"class c_f fetchNode;",
		"class c_x axiosNode;",
		"class c_a_1 importerNode;",
		"c_a_1 --> c_f",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in diagram:\n%s", want, out)
		}
	}
	if strings.Contains(out, "idle") {
		t.Error("chunks unrelated to requests must be left out")
	}

	if NetworkDiagram(graph.New(chunks.NewSet())) != "" {
		t.Error("expected no diagram without network chunks")
	}
}

func TestMakeIDs(t *testing.T) {
	ids := makeIDs([]string{"a-1", "a_1", "7"})
	if ids["a-1"] != "c_a_1" || ids["a_1"] != "c_a_1_2" || ids["7"] != "c_7" {
		t.Fatalf("unexpected ids %v", ids)
	}
}
