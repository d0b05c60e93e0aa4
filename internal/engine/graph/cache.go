package graph

import (
	"log/slog"

	"chunkmap/internal/engine/chunks"
	"chunkmap/internal/engine/parser"
	"chunkmap/internal/shared/observability"
)

// ModuleCache parses chunks on demand, at most once per cache. Each
// analysis phase owns its own cache and closes it when done.
type ModuleCache struct {
	parser  *parser.Parser
	set     *chunks.Set
	modules map[string]*Module
	failed  map[string]bool
	phase   string
}

func NewModuleCache(p *parser.Parser, set *chunks.Set, phase string) *ModuleCache {
	return &ModuleCache{
		parser:  p,
		set:     set,
		modules: make(map[string]*Module),
		failed:  make(map[string]bool),
		phase:   phase,
	}
}

func (mc *ModuleCache) Chunks() *chunks.Set {
	return mc.set
}

func (mc *ModuleCache) Parser() *parser.Parser {
	return mc.parser
}

// Get returns the parsed module of chunk id.
func (mc *ModuleCache) Get(id string) (*Module, bool) {
	if m, ok := mc.modules[id]; ok {
		return m, true
	}
	if mc.failed[id] {
		return nil, false
	}
	c, ok := mc.set.Get(id)
	if !ok {
		return nil, false
	}
	src, err := mc.parser.ParseChunk(id, c.Code)
	if err != nil {
		slog.Debug("skipping unparsable chunk", "chunk", id, "phase", mc.phase, "error", err)
		observability.ParseFailuresTotal.WithLabelValues(mc.phase).Inc()
		mc.failed[id] = true
		return nil, false
	}
	m := AnalyzeModule(src)
	mc.modules[id] = m
	return m, true
}

func (mc *ModuleCache) Close() {
	for id, m := range mc.modules {
		m.Src.Close()
		delete(mc.modules, id)
	}
}
