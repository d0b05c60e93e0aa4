// Package graph resolves the import relation between webpack chunks and
// answers reachability questions over it.
package graph

import (
	"sort"

	"chunkmap/internal/engine/chunks"
	"chunkmap/internal/shared/observability"
)

// Graph is the chunk import graph of one run. It is built once from a
// connected chunk set and not mutated afterwards.
type Graph struct {
	set *chunks.Set

	imports    map[string]map[string]bool // from -> to
	importedBy map[string]map[string]bool // to -> from
}

func New(set *chunks.Set) *Graph {
	g := &Graph{
		set:        set,
		imports:    make(map[string]map[string]bool),
		importedBy: make(map[string]map[string]bool),
	}
	for _, c := range set.All() {
		g.imports[c.ID] = make(map[string]bool, len(c.Imports))
		for _, to := range c.Imports {
			g.imports[c.ID][to] = true
			if g.importedBy[to] == nil {
				g.importedBy[to] = make(map[string]bool)
			}
			g.importedBy[to][c.ID] = true
		}
	}

	observability.GraphNodes.Set(float64(set.Len()))
	observability.GraphEdges.Set(float64(g.EdgeCount()))
	return g
}

func (g *Graph) Chunks() *chunks.Set {
	return g.set
}

func (g *Graph) Chunk(id string) (*chunks.Chunk, bool) {
	return g.set.Get(id)
}

// Importers returns the chunks that import id, in chunk order.
func (g *Graph) Importers(id string) []string {
	from := g.importedBy[id]
	if len(from) == 0 {
		return nil
	}
	out := make([]string, 0, len(from))
	for _, cid := range g.set.IDs() {
		if from[cid] {
			out = append(out, cid)
		}
	}
	return out
}

// Imports returns the ids id imports that exist in the chunk set, in the
// order they were requested.
func (g *Graph) Imports(id string) []string {
	c, ok := g.set.Get(id)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c.Imports))
	for _, to := range c.Imports {
		if _, known := g.set.Get(to); known {
			out = append(out, to)
		}
	}
	return out
}

// Missing returns imported ids no extracted chunk provides, sorted. These
// usually live in bundles that were never downloaded.
func (g *Graph) Missing() []string {
	var out []string
	for to := range g.importedBy {
		if _, ok := g.set.Get(to); !ok {
			out = append(out, to)
		}
	}
	sort.Strings(out)
	return out
}

func (g *Graph) NodeCount() int {
	return g.set.Len()
}

func (g *Graph) EdgeCount() int {
	count := 0
	for _, targets := range g.imports {
		count += len(targets)
	}
	return count
}
