package graph

import (
	"chunkmap/internal/core/errors"
)

// ImpactReport describes who depends on a chunk.
type ImpactReport struct {
	Chunk               string
	File                string
	DirectImporters     []string
	TransitiveImporters []string
	Exports             []string
}

// AnalyzeImpact collects the direct and transitive importers of id.
func (g *Graph) AnalyzeImpact(id string) (ImpactReport, error) {
	c, ok := g.set.Get(id)
	if !ok {
		return ImpactReport{}, errors.AddContext(errors.New(errors.CodeNotFound, "chunk not found"), errors.CtxChunk, id)
	}
	report := ImpactReport{
		Chunk:           id,
		File:            c.File,
		DirectImporters: g.Importers(id),
		Exports:         append([]string(nil), c.Exports...),
	}

	seen := map[string]bool{id: true}
	direct := make(map[string]bool, len(report.DirectImporters))
	for _, d := range report.DirectImporters {
		direct[d] = true
	}
	queue := append([]string(nil), report.DirectImporters...)
	for _, d := range queue {
		seen[d] = true
	}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		if !direct[curr] {
			report.TransitiveImporters = append(report.TransitiveImporters, curr)
		}
		for _, importer := range g.Importers(curr) {
			if seen[importer] {
				continue
			}
			seen[importer] = true
			queue = append(queue, importer)
		}
	}
	return report, nil
}
