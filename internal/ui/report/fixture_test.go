package report

import (
	"path/filepath"
	"time"

	"chunkmap/internal/engine/axios"
	"chunkmap/internal/engine/calls"
	"chunkmap/internal/engine/chunks"
	"chunkmap/internal/engine/graph"
)

func sampleData(dir string) Data {
	set := chunks.NewSet()
	set.Add(&chunks.Chunk{ID: "1", File: filepath.Join(dir, "main.js"), Imports: []string{"2", "3"}})
	set.Add(&chunks.Chunk{ID: "2", File: filepath.Join(dir, "main.js"), Imports: []string{"3"}, ContainsFetch: true})
	set.Add(&chunks.Chunk{ID: "3", File: filepath.Join(dir, "vendor.js"), Imports: []string{"2"}, IsAxiosClient: true})

	g := graph.New(set)
	return Data{
		RunID:       "run-1",
		Dir:         dir,
		Version:     "1.2.3",
		GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Chunks:      set,
		Graph:       g,
		Clients: []axios.Client{{
			ChunkID:  "3",
			Name:     "i",
			BaseURL:  "https://api.example.com/v1",
			Headers:  map[string]string{"X-App": "web"},
			Creation: axios.Creation{Factory: "n(7).Z", Pattern: "require-member"},
		}},
		Calls: []calls.DiscoveredAPICall{
			{
				URL:              "https://api.example.com/v1/users/[unresolved: e]?page=1",
				Method:           "GET",
				Headers:          map[string]string{"X-App": "web", "Accept": "application/json"},
				ChunkID:          "3",
				FunctionFile:     filepath.Join(dir, "vendor.js"),
				FunctionFileLine: 4,
				CalledFrom:       "1",
				Source:           calls.SourceAxios,
			},
			{
				URL:              "/api/items",
				Method:           calls.MethodUnknown,
				Body:             map[string]any{"name": "a", "count": 2.0, "tags": []any{"x"}},
				ChunkID:          "2",
				FunctionFile:     filepath.Join(dir, "main.js"),
				FunctionFileLine: 12,
				Source:           calls.SourceFetch,
			},
		},
		Cycles: g.DetectCycles(),
	}
}
