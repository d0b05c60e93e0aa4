package axios

import (
	"chunkmap/internal/engine/graph"
	"chunkmap/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// refSet holds the exports, across all chunks reached so far, that denote
// one traced instance or one of its bound verbs.
type refSet struct {
	instances map[graph.ImportRef]bool
	methods   map[graph.ImportRef]string
}

func newRefSet() *refSet {
	return &refSet{
		instances: make(map[graph.ImportRef]bool),
		methods:   make(map[graph.ImportRef]string),
	}
}

// Instance answers "does this expression denote the traced client" inside
// one chunk.
type Instance struct {
	m     *graph.Module
	verbs map[string]bool
	refs  *refSet

	locals   map[parser.NodeKey]bool
	globals  map[string]bool
	creation *sitter.Node
}

func newInstance(m *graph.Module, verbs map[string]bool, refs *refSet) *Instance {
	return &Instance{
		m:       m,
		verbs:   verbs,
		refs:    refs,
		locals:  make(map[parser.NodeKey]bool),
		globals: make(map[string]bool),
	}
}

// bindCreation registers the creation call and the variable it is stored
// in.
func (in *Instance) bindCreation(call *sitter.Node) {
	in.creation = call
	if target := AssignedTo(call); target != nil {
		in.bindIdent(target)
	}
}

func (in *Instance) bindIdent(ident *sitter.Node) {
	if b := in.m.Src.Scopes().Resolve(ident); b != nil {
		in.locals[b.Key()] = true
		return
	}
	in.globals[in.m.Src.Text(ident)] = true
}

// Is reports whether node evaluates to the traced instance.
func (in *Instance) Is(node *sitter.Node) bool {
	node = parser.Unwrap(node)
	if node == nil {
		return false
	}
	if in.creation != nil && parser.SameNode(node, in.creation) {
		return true
	}
	if node.Kind() == "identifier" {
		b := in.m.Src.Scopes().Resolve(node)
		if b == nil {
			return in.globals[in.m.Src.Text(node)]
		}
		if len(b.Path) == 0 && in.locals[b.Key()] {
			return true
		}
	}
	ref, ok := in.m.ImportRefOf(node)
	return ok && in.refs.instances[ref]
}

// boundVerb reports whether ident was destructured as a verb from the
// instance.
func (in *Instance) boundVerb(ident *sitter.Node) (string, bool) {
	if ident == nil || ident.Kind() != "identifier" {
		return "", false
	}
	b := in.m.Src.Scopes().Resolve(ident)
	if b == nil || len(b.Path) != 1 || b.Init == nil {
		return "", false
	}
	if !in.verbs[b.Path[0]] || !in.Is(b.Init) {
		return "", false
	}
	return b.Path[0], true
}

// collectAliases follows plain copies (`const api = inst`) until no new
// alias appears.
func (in *Instance) collectAliases() {
	if !in.m.HasAlias() {
		return
	}
	for {
		added := false
		parser.Walk(in.m.Fn, func(n *sitter.Node) bool {
			var target, value *sitter.Node
			switch n.Kind() {
			case "variable_declarator":
				target, value = n.ChildByFieldName("name"), n.ChildByFieldName("value")
			case "assignment_expression":
				target, value = n.ChildByFieldName("left"), n.ChildByFieldName("right")
			default:
				return true
			}
			if target == nil || target.Kind() != "identifier" || value == nil {
				return true
			}
			if in.Is(target) || !in.Is(value) {
				return true
			}
			in.bindIdent(target)
			added = true
			return true
		})
		if !added {
			return
		}
	}
}

// exports returns the names under which the chunk exports the instance and
// the names of exported verbs bound from it.
func (in *Instance) exports() (instances []string, methods map[string]string) {
	methods = make(map[string]string)
	for _, e := range in.m.Exports() {
		if e.Value == nil {
			continue
		}
		if in.Is(e.Value) {
			instances = append(instances, e.Name)
			continue
		}
		if verb, ok := in.boundVerb(parser.Unwrap(e.Value)); ok {
			methods[e.Name] = verb
		}
	}
	return instances, methods
}
