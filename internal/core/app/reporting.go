package app

import (
	"fmt"
	"io"
	"strings"
	"time"

	"chunkmap/internal/core/errors"
	"chunkmap/internal/core/ports"
	"chunkmap/internal/engine/calls"
	"chunkmap/internal/engine/graph"
)

func (a *App) lastGraph() (*graph.Graph, error) {
	res, ok := a.Last()
	if !ok || res.Graph == nil {
		return nil, errors.New(errors.CodeNotFound, "no completed analysis")
	}
	return res.Graph, nil
}

func (a *App) TraceImportChain(from, to string) ([]string, error) {
	g, err := a.lastGraph()
	if err != nil {
		return nil, err
	}
	if _, ok := g.Chunk(from); !ok {
		return nil, errors.AddContext(errors.New(errors.CodeNotFound, "source chunk not found"), errors.CtxChunk, from)
	}
	if _, ok := g.Chunk(to); !ok {
		return nil, errors.AddContext(errors.New(errors.CodeNotFound, "target chunk not found"), errors.CtxChunk, to)
	}
	chain, ok := g.FindImportChain(from, to)
	if !ok {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("no import chain found from %s to %s", from, to))
	}
	return chain, nil
}

func (a *App) AnalyzeImpact(id string) (graph.ImpactReport, error) {
	g, err := a.lastGraph()
	if err != nil {
		return graph.ImpactReport{}, err
	}
	return g.AnalyzeImpact(id)
}

func (a *App) TopChunks(n int) ([]graph.ChunkMetrics, error) {
	g, err := a.lastGraph()
	if err != nil {
		return nil, err
	}
	return g.TopChunks(n), nil
}

// PrintSummary writes a short human summary of res to w.
func PrintSummary(w io.Writer, res ports.AnalyzeResult) {
	chunkCount, fetchChunks, axiosClients := res.Counts()

	fmt.Fprintln(w, strings.Repeat("-", 40))
	source := "extracted"
	if res.FromCache {
		source = "loaded from previous output"
	}
	fmt.Fprintf(w, "Run %s: %d chunks %s in %v\n", res.RunID, chunkCount, source, res.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Fetch chunks: %d | Axios clients: %d\n", fetchChunks, axiosClients)

	if len(res.Cycles) > 0 {
		fmt.Fprintf(w, "⚠️  FOUND %d IMPORT CYCLES:\n", len(res.Cycles))
		for _, c := range res.Cycles {
			fmt.Fprintf(w, "   %s\n", strings.Join(c, " -> "))
		}
	} else {
		fmt.Fprintln(w, "✅ No import cycles found.")
	}

	if len(res.Calls) > 0 {
		fmt.Fprintf(w, "🌐 FOUND %d API CALLS:\n", len(res.Calls))
		for _, c := range calls.Sorted(res.Calls) {
			line := fmt.Sprintf("   %-7s %s (chunk %s, %s:%d)", c.Method, c.URL, c.ChunkID, c.FunctionFile, c.FunctionFileLine)
			if c.CalledFrom != "" {
				line += " via chunk " + c.CalledFrom
			}
			fmt.Fprintln(w, line)
		}
	} else {
		fmt.Fprintln(w, "No API calls discovered.")
	}

	for _, out := range res.Outputs {
		fmt.Fprintf(w, "📝 %s\n", out)
	}
}
