package cli

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"chunkmap/internal/core/config"
	"chunkmap/internal/core/ports"
	"chunkmap/internal/engine/calls"
	"chunkmap/internal/engine/chunks"
	"chunkmap/internal/engine/graph"

	tea "github.com/charmbracelet/bubbletea"
)

type graphService struct {
	res ports.AnalyzeResult
}

func (s graphService) Analyze(context.Context, ports.AnalyzeRequest) (ports.AnalyzeResult, error) {
	return s.res, nil
}

func (s graphService) Last() (ports.AnalyzeResult, bool) { return s.res, true }

func (s graphService) TraceImportChain(_ context.Context, from, to string) ([]string, error) {
	chain, ok := s.res.Graph.FindImportChain(from, to)
	if !ok {
		return nil, fmt.Errorf("no import chain from %s to %s", from, to)
	}
	return chain, nil
}

func (s graphService) AnalyzeImpact(_ context.Context, id string) (graph.ImpactReport, error) {
	return s.res.Graph.AnalyzeImpact(id)
}

func (s graphService) TopChunks(_ context.Context, n int) ([]graph.ChunkMetrics, error) {
	return s.res.Graph.TopChunks(n), nil
}

func (s graphService) UpdateConfig(context.Context, *config.Config) error { return nil }

func sampleResult() ports.AnalyzeResult {
	set := chunks.NewSet()
	set.Add(&chunks.Chunk{ID: "1", File: "main.js", Line: 1, Imports: []string{"2"}})
	set.Add(&chunks.Chunk{ID: "2", File: "main.js", Line: 4, Imports: []string{"3"}, ContainsFetch: true})
	set.Add(&chunks.Chunk{ID: "3", File: "vendor.js", Line: 2, Exports: []string{"Z"}, IsAxiosClient: true})
	g := graph.New(set)
	return ports.AnalyzeResult{
		RunID:  "run-1",
		Chunks: set,
		Graph:  g,
		Calls: []calls.DiscoveredAPICall{
			{URL: "/api/items", Method: calls.MethodUnknown, ChunkID: "2", FunctionFile: "main.js", FunctionFileLine: 5, Source: calls.SourceFetch},
			{URL: "/users/[unresolved: e]", Method: "GET", ChunkID: "3", FunctionFile: "vendor.js", FunctionFileLine: 3, Source: calls.SourceAxios, CalledFrom: "1"},
		},
		Cycles: g.DetectCycles(),
	}
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestModel_UpdateAndPanelSwitch(t *testing.T) {
	res := sampleResult()
	m := initialModel(graphService{res: res})

	updated, _ := m.Update(updateMsg{result: res})
	state, ok := updated.(model)
	if !ok {
		t.Fatalf("expected model type, got %T", updated)
	}
	if len(state.callList.Items()) != 2 {
		t.Fatalf("expected 2 call items, got %d", len(state.callList.Items()))
	}
	if len(state.chunkList.Items()) != 3 {
		t.Fatalf("expected 3 chunk items, got %d", len(state.chunkList.Items()))
	}
	first := state.callList.Items()[0].(item)
	if first.title != "UNKNOWN /api/items" {
		t.Fatalf("unexpected call title %q", first.title)
	}
	second := state.callList.Items()[1].(item)
	if !strings.Contains(second.desc, "via chunk 1") {
		t.Fatalf("expected caller in description, got %q", second.desc)
	}

	view := state.View()
	if !strings.Contains(view, "3 chunks") || !strings.Contains(view, "1 partial") {
		t.Fatalf("unexpected view header:\n%s", view)
	}

	updated, _ = state.Update(tea.KeyMsg{Type: tea.KeyTab})
	state = updated.(model)
	if state.mode != panelChunks {
		t.Fatalf("expected chunk panel after tab, got %v", state.mode)
	}

	updated, _ = state.Update(tea.KeyMsg{Type: tea.KeyTab})
	state = updated.(model)
	if state.mode != panelCalls {
		t.Fatalf("expected calls panel after second tab, got %v", state.mode)
	}
}

func TestModel_ImpactDrillDown(t *testing.T) {
	res := sampleResult()
	m := initialModel(graphService{res: res})
	updated, _ := m.Update(updateMsg{result: res})
	state := updated.(model)

	updated, _ = state.Update(tea.KeyMsg{Type: tea.KeyTab})
	state = updated.(model)
	state.chunkList.Select(2)

	updated, _ = state.Update(tea.KeyMsg{Type: tea.KeyEnter})
	state = updated.(model)
	if !state.hasImpact {
		t.Fatalf("expected impact details, err=%q", state.impactErr)
	}
	if state.impact.Chunk != "3" || len(state.impact.DirectImporters) != 1 || state.impact.DirectImporters[0] != "2" {
		t.Fatalf("unexpected impact %+v", state.impact)
	}
	if len(state.impact.TransitiveImporters) != 1 || state.impact.TransitiveImporters[0] != "1" {
		t.Fatalf("expected transitive importer 1, got %v", state.impact.TransitiveImporters)
	}

	target, ok := selectedSourceTarget(state)
	if !ok || target.file != "main.js" || target.line != 4 {
		t.Fatalf("expected importer source target, got %+v", target)
	}

	updated, _ = state.Update(tea.KeyMsg{Type: tea.KeyEsc})
	state = updated.(model)
	if state.hasImpact {
		t.Fatal("expected impact details to close on esc")
	}
}

func TestModel_ImportChain(t *testing.T) {
	res := sampleResult()
	m := initialModel(graphService{res: res})
	updated, _ := m.Update(updateMsg{result: res})
	state := updated.(model)
	updated, _ = state.Update(tea.KeyMsg{Type: tea.KeyTab})
	state = updated.(model)

	updated, _ = state.Update(key('c'))
	state = updated.(model)
	if state.chainErr == "" {
		t.Fatal("expected an error without a marked origin")
	}

	state.chunkList.Select(0)
	updated, _ = state.Update(key('m'))
	state = updated.(model)
	if state.marked != "1" {
		t.Fatalf("expected chunk 1 marked, got %q", state.marked)
	}

	state.chunkList.Select(2)
	updated, _ = state.Update(key('c'))
	state = updated.(model)
	if strings.Join(state.chain, " -> ") != "1 -> 2 -> 3" {
		t.Fatalf("unexpected chain %v (err %q)", state.chain, state.chainErr)
	}
	if !strings.Contains(renderChunkPanel(state), "Import chain: 1 -> 2 -> 3") {
		t.Fatal("expected chain in chunk panel")
	}
}

func TestChunkFlags(t *testing.T) {
	tests := []struct {
		fetch, axios bool
		want         string
	}{
		{false, false, ""},
		{true, false, " [fetch]"},
		{false, true, " [axios]"},
		{true, true, " [fetch, axios]"},
	}
	for _, tt := range tests {
		if got := chunkFlags(tt.fetch, tt.axios); got != tt.want {
			t.Errorf("chunkFlags(%v, %v) = %q, want %q", tt.fetch, tt.axios, got, tt.want)
		}
	}
}
