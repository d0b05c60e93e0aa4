// Package report renders the chunk map and the discovered API calls into
// the output artifacts: the chunk map JSON, the calls JSON, an OpenAPI
// document and a Markdown summary.
package report

import (
	"fmt"
	"log/slog"
	"time"

	"chunkmap/internal/engine/axios"
	"chunkmap/internal/engine/calls"
	"chunkmap/internal/engine/chunks"
	"chunkmap/internal/engine/graph"
)

// Artifact suffixes appended to the output base path.
const (
	ChunkMapSuffix = ".json"
	CallsSuffix    = ".calls.json"
	OpenAPISuffix  = ".openapi.yaml"
	MarkdownSuffix = ".md"
)

// Data is everything a report can draw from.
type Data struct {
	RunID       string
	Dir         string
	Version     string
	GeneratedAt time.Time
	Chunks      *chunks.Set
	Graph       *graph.Graph
	Clients     []axios.Client
	Calls       []calls.DiscoveredAPICall
	Cycles      [][]string
}

// ChunkMapPath returns the path of the chunk map artifact for base.
func ChunkMapPath(base string) string {
	return base + ChunkMapSuffix
}

// Write renders every requested format next to base and returns the files
// written. An unknown format is an error; nothing is written for it.
func Write(base string, formats []string, data Data) ([]string, error) {
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now().UTC()
	}
	var written []string
	for _, format := range formats {
		var (
			path string
			err  error
		)
		switch format {
		case "json":
			path = ChunkMapPath(base)
			err = chunks.Save(path, data.Chunks)
		case "calls":
			path = base + CallsSuffix
			err = WriteCalls(path, data)
		case "openapi":
			path = base + OpenAPISuffix
			err = WriteOpenAPI(path, data)
		case "markdown":
			path = base + MarkdownSuffix
			err = WriteMarkdown(path, data)
		default:
			return written, fmt.Errorf("unknown output format %q", format)
		}
		if err != nil {
			return written, err
		}
		slog.Info("wrote output", "format", format, "path", path)
		written = append(written, path)
	}
	return written, nil
}
