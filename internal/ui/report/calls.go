package report

import (
	"time"

	"chunkmap/internal/engine/calls"
	"chunkmap/internal/shared/jsonutil"
)

// CallsDocument is the calls artifact.
type CallsDocument struct {
	RunID       string                    `json:"runId,omitempty"`
	GeneratedAt time.Time                 `json:"generatedAt"`
	Dir         string                    `json:"dir"`
	Count       int                       `json:"count"`
	Calls       []calls.DiscoveredAPICall `json:"calls"`
}

func WriteCalls(path string, data Data) error {
	list := data.Calls
	if list == nil {
		list = []calls.DiscoveredAPICall{}
	}
	return jsonutil.WriteFile(path, CallsDocument{
		RunID:       data.RunID,
		GeneratedAt: data.GeneratedAt.UTC(),
		Dir:         data.Dir,
		Count:       len(list),
		Calls:       list,
	})
}

// ReadCalls loads a calls artifact.
func ReadCalls(path string) (CallsDocument, error) {
	var doc CallsDocument
	err := jsonutil.ReadFile(path, &doc)
	return doc, err
}
