package resolver

import (
	"strconv"

	"chunkmap/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// BindArguments resolves args in the caller's scope and binds them to the
// parameters of fn, declared in src. An unresolved argument does not
// replace a parameter default.
func (r *Resolver) BindArguments(src *parser.Source, fn *sitter.Node, caller Scope, args []*sitter.Node) Overrides {
	values := make([]any, len(args))
	for i, a := range args {
		values[i] = r.Resolve(caller, a)
	}

	overrides := Overrides{}
	for _, b := range src.Scopes().Bindings(fn) {
		if b.Kind != parser.BindParam || !parser.SameNode(b.Function, fn) {
			continue
		}
		var v any
		switch {
		case b.ParamIndex < len(values):
			v = pick(values[b.ParamIndex], b.Path)
		case b.Init != nil:
			continue
		}
		if IsUnresolved(v) && b.Init != nil {
			continue
		}
		overrides[b.Key()] = v
	}
	return overrides
}

// pick follows a destructuring path through a resolved value.
func pick(v any, path []string) any {
	for _, key := range path {
		switch x := v.(type) {
		case map[string]any:
			v = x[key]
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(x) {
				return nil
			}
			v = x[i]
		default:
			return Unresolved(key)
		}
	}
	return v
}

// Fallback looks up a value for a placeholder name outside the expression's
// own scope: declarations anywhere in the same source, then the exports of
// the chunks imported by scope.ChunkID, then any chunk exporting the name.
func (r *Resolver) Fallback(scope Scope) func(string) (any, bool) {
	return func(name string) (any, bool) {
		for _, b := range scope.Src.Scopes().Declarations(name) {
			if b.Kind == parser.BindParam || b.Kind == parser.BindCatch {
				continue
			}
			if v := r.Resolve(scope, b.Decl); v != nil && !IsUnresolved(v) {
				return v, true
			}
		}
		if r.modules == nil {
			return nil, false
		}
		c, ok := r.modules.Chunks().Get(scope.ChunkID)
		if ok {
			for _, id := range c.Imports {
				if v := r.ResolveExport(id, name); !IsUnresolved(v) {
					return v, true
				}
			}
		}
		for _, other := range r.modules.Chunks().All() {
			if other.ID == scope.ChunkID || !other.HasExport(name) {
				continue
			}
			if v := r.ResolveExport(other.ID, name); !IsUnresolved(v) {
				return v, true
			}
		}
		return nil, false
	}
}

// ResolveString resolves node to a string and fills remaining placeholders
// through Fallback.
func (r *Resolver) ResolveString(scope Scope, node *sitter.Node, overrides Overrides) string {
	s := Stringify(r.ResolveWith(scope, node, overrides))
	if ContainsUnresolved(s) {
		s = Substitute(s, r.Fallback(scope))
	}
	return s
}
