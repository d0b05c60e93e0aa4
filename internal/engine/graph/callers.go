package graph

import (
	"chunkmap/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// CallSite is a call made from one chunk to an export of another.
type CallSite struct {
	Chunk  string
	Module *Module
	Call   *sitter.Node
}

// Callers finds the calls, in every chunk importing chunkID, whose callee
// refers to one of the given export names of chunkID.
func Callers(mc *ModuleCache, chunkID string, names []string) []CallSite {
	if mc == nil || len(names) == 0 {
		return nil
	}
	exported := make(map[string]bool, len(names))
	for _, n := range names {
		exported[n] = true
	}

	var out []CallSite
	for _, other := range mc.Chunks().All() {
		if other.ID == chunkID || !other.HasImport(chunkID) {
			continue
		}
		m, ok := mc.Get(other.ID)
		if !ok || !m.HasAlias() {
			continue
		}
		parser.Walk(m.Fn, func(n *sitter.Node) bool {
			if n.Kind() != "call_expression" {
				return true
			}
			ref, ok := m.ImportRefOf(n.ChildByFieldName("function"))
			if ok && ref.Chunk == chunkID && exported[ref.Export] {
				out = append(out, CallSite{Chunk: other.ID, Module: m, Call: n})
			}
			return true
		})
	}
	return out
}

// Importers lists the chunks whose imports contain id, in set order.
func (mc *ModuleCache) Importers(id string) []string {
	var out []string
	for _, c := range mc.set.All() {
		if c.ID != id && c.HasImport(id) {
			out = append(out, c.ID)
		}
	}
	return out
}
