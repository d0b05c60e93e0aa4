package graph

import (
	"log/slog"

	"chunkmap/internal/engine/chunks"
	"chunkmap/internal/engine/parser"
	"chunkmap/internal/shared/observability"
)

// Connect re-parses every chunk and fills its Imports and Exports. Chunks
// that fail to parse or lack a require alias keep empty lists.
func Connect(set *chunks.Set, p *parser.Parser) {
	for _, c := range set.All() {
		c.Imports = nil
		c.Exports = nil

		src, err := p.ParseChunk(c.ID, c.Code)
		if err != nil {
			slog.Debug("skipping unparsable chunk", "chunk", c.ID, "error", err)
			observability.ParseFailuresTotal.WithLabelValues("connect").Inc()
			continue
		}
		m := AnalyzeModule(src)
		if !m.HasAlias() {
			slog.Debug("no require alias in chunk", "chunk", c.ID)
			src.Close()
			continue
		}
		c.Imports = m.Imports()
		c.Exports = m.ExportNames()
		src.Close()
	}
}
