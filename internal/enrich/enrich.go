// Package enrich fills chunk descriptions through an optional AI
// summarizer. Failures never abort a run: the chunk keeps
// FailedDescription instead.
package enrich

import (
	"context"
	"log/slog"
	"sync"

	"chunkmap/internal/core/ports"
	"chunkmap/internal/engine/chunks"
	"chunkmap/internal/shared/observability"
	"chunkmap/internal/shared/util"
)

// FailedDescription marks a chunk whose summary request failed.
const FailedDescription = "[description unavailable]"

// maxCodeBytes bounds the code sent per request.
const maxCodeBytes = 12 << 10

type Options struct {
	SystemPrompt      string
	Concurrency       int
	RequestsPerSecond float64
}

type Enricher struct {
	summarizer ports.Summarizer
	prompt     string
	throttle   *util.Throttle
}

func New(s ports.Summarizer, opts Options) *Enricher {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &Enricher{
		summarizer: s,
		prompt:     opts.SystemPrompt,
		throttle:   util.NewThrottle(opts.Concurrency, rps),
	}
}

// Describe requests a description for every chunk that has none, or whose
// previous attempt failed. Chunks loaded from a cached map keep theirs. It
// returns the number of chunks described.
func (e *Enricher) Describe(ctx context.Context, set *chunks.Set) int {
	pending := set.Filter(func(c *chunks.Chunk) bool {
		return c.Description == "" || c.Description == FailedDescription
	})
	if len(pending) == 0 {
		return 0
	}
	slog.Info("describing chunks", "pending", len(pending), "cached", set.Len()-len(pending))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		described int
	)
	for _, c := range pending {
		release, err := e.throttle.Acquire(ctx)
		if err != nil {
			observability.EnrichRequestsTotal.WithLabelValues("cancelled").Inc()
			c.Description = FailedDescription
			continue
		}
		wg.Add(1)
		go func(c *chunks.Chunk) {
			defer wg.Done()
			defer release()
			desc, ok := e.describe(ctx, c)
			c.Description = desc
			if ok {
				mu.Lock()
				described++
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()
	return described
}

func (e *Enricher) describe(ctx context.Context, c *chunks.Chunk) (string, bool) {
	desc, err := e.summarizer.Summarize(ctx, util.Truncate(c.Code, maxCodeBytes), e.prompt)
	if err != nil || desc == "" {
		slog.Warn("chunk description failed", "chunk", c.ID, "error", err)
		observability.EnrichRequestsTotal.WithLabelValues("failed").Inc()
		return FailedDescription, false
	}
	observability.EnrichRequestsTotal.WithLabelValues("ok").Inc()
	return desc, true
}
