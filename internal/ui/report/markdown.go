package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"chunkmap/internal/engine/calls"
	"chunkmap/internal/engine/graph"
	"chunkmap/internal/engine/resolver"
	"chunkmap/internal/shared/util"
)

const collapseThreshold = 25

type MarkdownOptions struct {
	TableOfContents     bool
	CollapsibleSections bool
	IncludeMermaid      bool
	TopChunks           int
}

func DefaultMarkdownOptions() MarkdownOptions {
	return MarkdownOptions{
		TableOfContents:     true,
		CollapsibleSections: true,
		IncludeMermaid:      true,
		TopChunks:           10,
	}
}

type MarkdownGenerator struct {
	opts MarkdownOptions
}

func NewMarkdownGenerator(opts MarkdownOptions) *MarkdownGenerator {
	return &MarkdownGenerator{opts: opts}
}

func WriteMarkdown(path string, data Data) error {
	out := NewMarkdownGenerator(DefaultMarkdownOptions()).Generate(data)
	return util.WriteStringWithDirs(path, out, 0o644)
}

func (m *MarkdownGenerator) Generate(data Data) string {
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now().UTC()
	}
	g := data.Graph
	if g == nil && data.Chunks != nil {
		g = graph.New(data.Chunks)
	}

	var fetchChunks, fetchCalls, axiosCalls int
	if data.Chunks != nil {
		for _, c := range data.Chunks.All() {
			if c.ContainsFetch {
				fetchChunks++
			}
		}
	}
	for _, c := range data.Calls {
		switch c.Source {
		case calls.SourceFetch:
			fetchCalls++
		case calls.SourceAxios:
			axiosCalls++
		}
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("title: Chunk Map Report\n")
	b.WriteString("input: " + nonEmpty(data.Dir, "unknown") + "\n")
	if data.RunID != "" {
		b.WriteString("run_id: " + data.RunID + "\n")
	}
	b.WriteString("generated_at: " + data.GeneratedAt.UTC().Format(time.RFC3339) + "\n")
	b.WriteString("version: " + nonEmpty(data.Version, "unknown") + "\n")
	b.WriteString("---\n\n")

	b.WriteString("# Chunk Map Report\n\n")
	includeDiagram := m.opts.IncludeMermaid && g != nil
	if m.opts.TableOfContents {
		b.WriteString("## Table of Contents\n")
		b.WriteString("- [Executive Summary](#executive-summary)\n")
		b.WriteString("- [Discovered API Calls](#discovered-api-calls)\n")
		b.WriteString("- [Axios Clients](#axios-clients)\n")
		b.WriteString("- [Top Chunks](#top-chunks)\n")
		b.WriteString("- [Circular Imports](#circular-imports)\n")
		if includeDiagram {
			b.WriteString("- [Network Graph](#network-graph)\n")
		}
		b.WriteString("\n")
	}

	chunkCount, files, edges, missing := 0, 0, 0, 0
	if data.Chunks != nil {
		chunkCount = data.Chunks.Len()
		files = len(data.Chunks.Files())
	}
	if g != nil {
		edges = g.EdgeCount()
		missing = len(g.Missing())
	}

	b.WriteString("## Executive Summary\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("| --- | --- |\n")
	b.WriteString(fmt.Sprintf("| Chunks | %d |\n", chunkCount))
	b.WriteString(fmt.Sprintf("| Bundle Files | %d |\n", files))
	b.WriteString(fmt.Sprintf("| Import Edges | %d |\n", edges))
	b.WriteString(fmt.Sprintf("| Missing Chunk References | %d |\n", missing))
	b.WriteString(fmt.Sprintf("| Chunks Calling fetch | %d |\n", fetchChunks))
	b.WriteString(fmt.Sprintf("| Axios Clients | %d |\n", len(data.Clients)))
	b.WriteString(fmt.Sprintf("| Circular Imports | %d |\n", len(data.Cycles)))
	b.WriteString(fmt.Sprintf("| API Calls (fetch / axios) | %d (%d / %d) |\n", len(data.Calls), fetchCalls, axiosCalls))
	b.WriteString(fmt.Sprintf("| Partially Resolved URLs | %d |\n\n", unresolvedCount(data.Calls)))

	m.writeCalls(&b, data)
	m.writeClients(&b, data)
	m.writeTopChunks(&b, g)
	m.writeCycles(&b, data.Cycles)

	if includeDiagram {
		if diagram := NetworkDiagram(g); diagram != "" {
			b.WriteString("## Network Graph\n")
			b.WriteString("```mermaid\n")
			b.WriteString(strings.TrimSpace(diagram))
			b.WriteString("\n```\n")
		}
	}
	return b.String()
}

func (m *MarkdownGenerator) writeCalls(b *strings.Builder, data Data) {
	b.WriteString("## Discovered API Calls\n")
	if len(data.Calls) == 0 {
		b.WriteString("No API calls discovered.\n\n")
		return
	}
	rows := make([]string, 0, len(data.Calls))
	for _, c := range calls.Sorted(data.Calls) {
		from := "-"
		if c.CalledFrom != "" {
			from = "`" + c.CalledFrom + "`"
		}
		rows = append(rows, fmt.Sprintf("| %s | `%s` | `%s` | %s | `%s:%d` | %s |\n",
			c.Method, escapeCell(c.URL), c.ChunkID, from, relPath(data.Dir, c.FunctionFile), c.FunctionFileLine, c.Source))
	}
	m.writeTableWithCollapse(b, "Call details", len(rows) > collapseThreshold,
		[]string{"| Method | URL | Chunk | Called From | Location | Source |\n", "| --- | --- | --- | --- | --- | --- |\n"},
		rows)
}

func (m *MarkdownGenerator) writeClients(b *strings.Builder, data Data) {
	b.WriteString("## Axios Clients\n")
	if len(data.Clients) == 0 {
		b.WriteString("No axios client creation found.\n\n")
		return
	}
	rows := make([]string, 0, len(data.Clients))
	for _, cl := range data.Clients {
		headers := "-"
		if len(cl.Headers) > 0 {
			headers = strings.Join(util.SortedStringKeys(cl.Headers), ", ")
		}
		rows = append(rows, fmt.Sprintf("| `%s` | `%s` | `%s` | `%s` | %s |\n",
			cl.ChunkID, nonEmpty(cl.Name, "-"), escapeCell(cl.Creation.Factory), nonEmpty(escapeCell(cl.BaseURL), "-"), headers))
	}
	m.writeTableWithCollapse(b, "Client details", len(rows) > collapseThreshold,
		[]string{"| Chunk | Variable | Factory | Base URL | Default Headers |\n", "| --- | --- | --- | --- | --- |\n"},
		rows)
}

func (m *MarkdownGenerator) writeTopChunks(b *strings.Builder, g *graph.Graph) {
	b.WriteString("## Top Chunks\n")
	var top []graph.ChunkMetrics
	if g != nil {
		top = g.TopChunks(m.opts.TopChunks)
	}
	if len(top) == 0 {
		b.WriteString("No chunks extracted.\n\n")
		return
	}
	rows := make([]string, 0, len(top))
	for _, cm := range top {
		rows = append(rows, fmt.Sprintf("| `%s` | %d | %d | %.0f |\n", cm.Chunk, cm.FanIn, cm.FanOut, cm.ImportanceScore))
	}
	m.writeTableWithCollapse(b, "", false,
		[]string{"| Chunk | Fan-In | Fan-Out | Score |\n", "| --- | --- | --- | --- |\n"},
		rows)
}

func (m *MarkdownGenerator) writeCycles(b *strings.Builder, cycles [][]string) {
	b.WriteString("## Circular Imports\n")
	if len(cycles) == 0 {
		b.WriteString("No circular imports detected.\n\n")
		return
	}
	rows := make([]string, 0, len(cycles))
	for i, cycle := range cycles {
		rows = append(rows, fmt.Sprintf("| %d | `%s` | %d |\n", i+1, strings.Join(cycle, " -> ")+" -> "+cycle[0], len(cycle)))
	}
	m.writeTableWithCollapse(b, "Cycle details", len(rows) > 10,
		[]string{"| # | Cycle Path | Length |\n", "| --- | --- | --- |\n"},
		rows)
}

func (m *MarkdownGenerator) writeTableWithCollapse(b *strings.Builder, summary string, collapse bool, header, rows []string) {
	collapsed := m.opts.CollapsibleSections && collapse
	if collapsed {
		b.WriteString("<details>\n")
		b.WriteString("<summary>")
		b.WriteString(summary)
		b.WriteString("</summary>\n\n")
	}
	for _, line := range header {
		b.WriteString(line)
	}
	for _, line := range rows {
		b.WriteString(line)
	}
	b.WriteString("\n")
	if collapsed {
		b.WriteString("</details>\n\n")
	}
}

// escapeCell keeps a value from breaking a table row.
func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", "\\|"), "\n", " ")
}

func relPath(root, path string) string {
	root = strings.TrimSpace(root)
	path = strings.TrimSpace(path)
	if root == "" || path == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// unresolvedCount counts calls whose URL kept a placeholder.
func unresolvedCount(list []calls.DiscoveredAPICall) int {
	n := 0
	for _, c := range list {
		if resolver.ContainsUnresolved(c.URL) {
			n++
		}
	}
	return n
}

