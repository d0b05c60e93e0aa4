// Package findings persists analysis runs and the API calls they
// discovered in SQLite.
package findings

import "time"

const SchemaVersion = 1

// Run is one completed analysis of an input directory.
type Run struct {
	ID            string
	Dir           string
	StartedAt     time.Time
	Duration      time.Duration
	ChunkCount    int
	FetchChunks   int
	AxiosClients  int
	CallCount     int
	SchemaVersion int
}
