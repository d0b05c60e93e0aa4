// Package calls holds the API calls recovered from a bundle and the
// collector every resolver appends them to.
package calls

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"chunkmap/internal/shared/observability"
)

const (
	SourceFetch = "fetch"
	SourceAxios = "axios"
)

// MethodUnknown is recorded when a call's HTTP method cannot be determined.
const MethodUnknown = "UNKNOWN"

// DiscoveredAPICall is one recovered network call site.
type DiscoveredAPICall struct {
	URL              string            `json:"url"`
	Method           string            `json:"method"`
	Headers          map[string]string `json:"headers"`
	Body             any               `json:"body"`
	ChunkID          string            `json:"chunkId"`
	FunctionFile     string            `json:"functionFile"`
	FunctionFileLine int               `json:"functionFileLine"`
	// CalledFrom is the chunk whose call site supplied the arguments when the
	// request is issued through an exported wrapper.
	CalledFrom string `json:"calledFrom,omitempty"`
	Source     string `json:"source"`

	// SiteOffset is the byte offset of the call site in FunctionFile.
	SiteOffset int `json:"-"`
	// CallerOffset locates the call in CalledFrom that supplied the
	// arguments.
	CallerOffset int `json:"-"`
}

func (c DiscoveredAPICall) key() string {
	return fmt.Sprintf("%s|%s|%s|%d|%s|%d", c.Source, c.ChunkID, c.FunctionFile, c.SiteOffset, c.CalledFrom, c.CallerOffset)
}

// Collector accumulates discovered calls. A call site is recorded once no
// matter how many trace paths reach it.
type Collector struct {
	mu    sync.Mutex
	calls []DiscoveredAPICall
	seen  map[string]bool
}

func NewCollector() *Collector {
	return &Collector{seen: make(map[string]bool)}
}

// Add records c and reports whether it was new.
func (col *Collector) Add(c DiscoveredAPICall) bool {
	if c.Method == "" {
		c.Method = MethodUnknown
	}
	if c.Headers == nil {
		c.Headers = map[string]string{}
	}
	col.mu.Lock()
	defer col.mu.Unlock()
	k := c.key()
	if col.seen[k] {
		return false
	}
	col.seen[k] = true
	col.calls = append(col.calls, c)
	observability.DiscoveredCallsTotal.WithLabelValues(c.Source).Inc()
	slog.Info("discovered API call", "source", c.Source, "method", c.Method, "url", c.URL, "chunk", c.ChunkID, "file", c.FunctionFile, "line", c.FunctionFileLine)
	return true
}

// Calls returns the recorded calls in discovery order.
func (col *Collector) Calls() []DiscoveredAPICall {
	col.mu.Lock()
	defer col.mu.Unlock()
	out := make([]DiscoveredAPICall, len(col.calls))
	copy(out, col.calls)
	return out
}

func (col *Collector) Len() int {
	col.mu.Lock()
	defer col.mu.Unlock()
	return len(col.calls)
}

// Sorted returns the calls ordered by URL, method and location.
func Sorted(in []DiscoveredAPICall) []DiscoveredAPICall {
	out := append([]DiscoveredAPICall(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.URL != b.URL {
			return a.URL < b.URL
		}
		if a.Method != b.Method {
			return a.Method < b.Method
		}
		if a.FunctionFile != b.FunctionFile {
			return a.FunctionFile < b.FunctionFile
		}
		return a.FunctionFileLine < b.FunctionFileLine
	})
	return out
}
