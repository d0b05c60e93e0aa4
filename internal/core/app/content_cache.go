package app

import (
	"chunkmap/internal/engine/chunks"
	"chunkmap/internal/enrich"

	"github.com/spaolacci/murmur3"
)

// Descriptions are keyed by a hash of the chunk code so a re-run in watch
// mode does not ask the summarizer about code it has already described.

func codeKey(code string) uint64 {
	return murmur3.Sum64([]byte(code))
}

func (a *App) applyDescriptions(set *chunks.Set) {
	a.descMu.RLock()
	defer a.descMu.RUnlock()
	for _, c := range set.All() {
		if c.Description != "" {
			continue
		}
		if desc, ok := a.descriptions[codeKey(c.Code)]; ok {
			c.Description = desc
		}
	}
}

func (a *App) rememberDescriptions(set *chunks.Set) {
	a.descMu.Lock()
	defer a.descMu.Unlock()
	for _, c := range set.All() {
		if c.Description == "" || c.Description == enrich.FailedDescription {
			continue
		}
		a.descriptions[codeKey(c.Code)] = c.Description
	}
}
