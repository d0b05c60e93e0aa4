package enrich

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chunkmap/internal/engine/chunks"
)

type fakeSummarizer struct {
	mu       sync.Mutex
	prompts  []string
	inFlight atomic.Int32
	peak     atomic.Int32
	fail     map[string]bool
}

func (f *fakeSummarizer) Summarize(ctx context.Context, code, systemPrompt string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.prompts = append(f.prompts, systemPrompt)
	f.mu.Unlock()
	if f.fail[code] {
		return "", errors.New("provider down")
	}
	return "does " + code, nil
}

func newSet(codes ...string) *chunks.Set {
	set := chunks.NewSet()
	for i, code := range codes {
		set.Add(&chunks.Chunk{ID: string(rune('a' + i)), Code: code})
	}
	return set
}

func TestEnricher_Describe(t *testing.T) {
	set := newSet("x", "y", "z", "boom")
	cached, _ := set.Get("b")
	cached.Description = "kept"

	s := &fakeSummarizer{fail: map[string]bool{"boom": true}}
	e := New(s, Options{SystemPrompt: "describe", Concurrency: 2, RequestsPerSecond: 1000})

	n := e.Describe(context.Background(), set)
	if n != 2 {
		t.Fatalf("expected 2 described chunks, got %d", n)
	}

	want := map[string]string{"a": "does x", "b": "kept", "c": "does z", "d": FailedDescription}
	for id, desc := range want {
		c, _ := set.Get(id)
		if c.Description != desc {
			t.Errorf("chunk %s: expected %q, got %q", id, desc, c.Description)
		}
	}
	if peak := s.peak.Load(); peak > 2 {
		t.Errorf("expected at most 2 requests in flight, saw %d", peak)
	}
	for _, p := range s.prompts {
		if p != "describe" {
			t.Errorf("unexpected system prompt %q", p)
		}
	}
}

func TestEnricher_RetriesFailedDescriptions(t *testing.T) {
	set := newSet("x")
	c, _ := set.Get("a")
	c.Description = FailedDescription

	e := New(&fakeSummarizer{}, Options{Concurrency: 1, RequestsPerSecond: 1000})
	if n := e.Describe(context.Background(), set); n != 1 {
		t.Fatalf("expected the failed chunk to be retried, got %d", n)
	}
	if c.Description != "does x" {
		t.Fatalf("unexpected description %q", c.Description)
	}
}

func TestEnricher_CancelledContextDegrades(t *testing.T) {
	set := newSet(strings.Repeat("x", 10), "y")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(&fakeSummarizer{}, Options{Concurrency: 1, RequestsPerSecond: 1000})
	if n := e.Describe(ctx, set); n != 0 {
		t.Fatalf("expected no descriptions, got %d", n)
	}
	for _, c := range set.All() {
		if c.Description != FailedDescription {
			t.Errorf("chunk %s: expected sentinel, got %q", c.ID, c.Description)
		}
	}
}
