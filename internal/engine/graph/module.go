package graph

import (
	"chunkmap/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Module is the webpack wrapper function of one parsed chunk:
// `function(module, exports, require) {...}`.
type Module struct {
	Src *parser.Source
	// Fn is the first function declaring exactly three parameters. Nil when
	// the chunk does not follow the wrapper convention.
	Fn *sitter.Node
	// Alias is the local name of the require function.
	Alias string

	aliasParam   *sitter.Node
	exportsParam *sitter.Node
}

// Export is one symbol a chunk exposes, with the expression its getter or
// assignment yields.
type Export struct {
	Name  string
	Value *sitter.Node
}

// AnalyzeModule locates the wrapper function and its require alias. Chunks
// outside the three-parameter convention yield a Module with nil Fn.
func AnalyzeModule(src *parser.Source) *Module {
	return ModuleAt(src, src.Root)
}

// ModuleAt analyzes the wrapper function found within root. Used when a
// chunk is located inside its whole originating file.
func ModuleAt(src *parser.Source, root *sitter.Node) *Module {
	m := &Module{Src: src}
	parser.Walk(root, func(n *sitter.Node) bool {
		if m.Fn != nil {
			return false
		}
		if !parser.IsFunction(n) {
			return true
		}
		params := parser.Params(n)
		if len(params) != 3 || params[2].Kind() != "identifier" {
			return true
		}
		m.Fn = n
		m.aliasParam = params[2]
		m.Alias = src.Text(params[2])
		if params[1].Kind() == "identifier" {
			m.exportsParam = params[1]
		}
		return false
	})
	return m
}

func (m *Module) HasAlias() bool {
	return m != nil && m.Fn != nil
}

// IsAlias reports whether ident refers to the require parameter rather than
// a shadowing declaration of the same name.
func (m *Module) IsAlias(ident *sitter.Node) bool {
	if !m.HasAlias() || ident == nil || ident.Kind() != "identifier" {
		return false
	}
	if m.Src.Text(ident) != m.Alias {
		return false
	}
	b := m.Src.Scopes().Resolve(ident)
	return b != nil && parser.SameNode(b.Decl, m.aliasParam)
}

func (m *Module) isExportsRef(node *sitter.Node) bool {
	node = parser.Unwrap(node)
	if m.exportsParam == nil || node == nil || node.Kind() != "identifier" {
		return false
	}
	b := m.Src.Scopes().Resolve(node)
	return b != nil && parser.SameNode(b.Decl, m.exportsParam)
}

// RequireCall returns the requested chunk id when call is `<alias>(<literal>)`.
func (m *Module) RequireCall(call *sitter.Node) (string, bool) {
	call = parser.Unwrap(call)
	if call == nil || call.Kind() != "call_expression" {
		return "", false
	}
	if !m.IsAlias(parser.Unwrap(call.ChildByFieldName("function"))) {
		return "", false
	}
	args := parser.CallArgs(call)
	if len(args) == 0 {
		return "", false
	}
	return m.Src.LiteralKey(args[0])
}

// Imports lists the chunk ids requested through the alias, first occurrence
// first.
func (m *Module) Imports() []string {
	if !m.HasAlias() {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	parser.Walk(m.Fn, func(n *sitter.Node) bool {
		if n.Kind() != "call_expression" {
			return true
		}
		if id, ok := m.RequireCall(n); ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
		return true
	})
	return out
}

// Exports lists the symbols registered through `<alias>.d(exports, {...})`,
// `<alias>.d(exports, "name", getter)`, `exports.name = value` and
// `Object.defineProperty(exports, "name", {get|value})`.
func (m *Module) Exports() []Export {
	if !m.HasAlias() {
		return nil
	}
	var out []Export
	seen := make(map[string]bool)
	add := func(name string, value *sitter.Node) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, Export{Name: name, Value: value})
	}
	src := m.Src
	parser.Walk(m.Fn, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "call_expression":
			callee := parser.Unwrap(n.ChildByFieldName("function"))
			obj, prop, ok := src.MemberParts(callee)
			if !ok {
				return true
			}
			args := parser.CallArgs(n)
			switch {
			case prop == "d" && m.IsAlias(parser.Unwrap(obj)) && len(args) >= 2:
				if args[1].Kind() == "object" {
					for _, pair := range parser.NamedChildren(args[1]) {
						if pair.Kind() != "pair" {
							continue
						}
						name, ok := src.PropertyKey(pair.ChildByFieldName("key"))
						if ok {
							add(name, GetterValue(pair.ChildByFieldName("value")))
						}
					}
				} else if name, ok := src.LiteralKey(args[1]); ok && len(args) >= 3 {
					add(name, GetterValue(args[2]))
				}
			case prop == "defineProperty" && src.Text(obj) == "Object" && len(args) >= 3 && m.isExportsRef(args[0]):
				name, ok := src.LiteralKey(args[1])
				if ok && name != "__esModule" {
					add(name, descriptorValue(src, args[2]))
				}
			}
		case "assignment_expression":
			obj, prop, ok := src.MemberParts(n.ChildByFieldName("left"))
			if ok && m.isExportsRef(obj) && prop != "__esModule" {
				add(prop, n.ChildByFieldName("right"))
			}
		}
		return true
	})
	return out
}

// ExportNames returns the names of Exports.
func (m *Module) ExportNames() []string {
	exports := m.Exports()
	if len(exports) == 0 {
		return nil
	}
	names := make([]string, len(exports))
	for i, e := range exports {
		names[i] = e.Name
	}
	return names
}

// Export returns the value expression of the named export.
func (m *Module) Export(name string) (*sitter.Node, bool) {
	for _, e := range m.Exports() {
		if e.Name == name {
			return e.Value, e.Value != nil
		}
	}
	return nil, false
}

// GetterValue reduces an export getter to the expression it returns:
// `function(){return o}` and `() => o` both yield `o`. Other nodes are
// returned as they are.
func GetterValue(node *sitter.Node) *sitter.Node {
	node = parser.Unwrap(node)
	if node == nil || !parser.IsFunction(node) || len(parser.Params(node)) != 0 {
		return node
	}
	body := parser.FunctionBody(node)
	if body == nil {
		return node
	}
	if body.Kind() != "statement_block" {
		return parser.Unwrap(body)
	}
	stmts := parser.NamedChildren(body)
	if len(stmts) != 1 || stmts[0].Kind() != "return_statement" {
		return node
	}
	ret := parser.NamedChildren(stmts[0])
	if len(ret) != 1 {
		return node
	}
	return parser.Unwrap(ret[0])
}

func descriptorValue(src *parser.Source, desc *sitter.Node) *sitter.Node {
	desc = parser.Unwrap(desc)
	if desc == nil || desc.Kind() != "object" {
		return nil
	}
	for _, prop := range parser.NamedChildren(desc) {
		switch prop.Kind() {
		case "pair":
			key, _ := src.PropertyKey(prop.ChildByFieldName("key"))
			switch key {
			case "get":
				return GetterValue(prop.ChildByFieldName("value"))
			case "value":
				return prop.ChildByFieldName("value")
			}
		case "method_definition":
			if name, _ := src.PropertyKey(prop.ChildByFieldName("name")); name == "get" {
				return GetterValue(prop)
			}
		}
	}
	return nil
}

// ImportRef names an export of another chunk as referenced from this one.
type ImportRef struct {
	Chunk  string
	Export string
}

// ImportRefOf recognizes references to another chunk's export:
// `<alias>(id).name`, `r.name` where `r = <alias>(id)`, and `name` bound by
// `const {name} = <alias>(id)`.
func (m *Module) ImportRefOf(node *sitter.Node) (ImportRef, bool) {
	if !m.HasAlias() {
		return ImportRef{}, false
	}
	node = parser.Unwrap(node)
	if node == nil {
		return ImportRef{}, false
	}
	switch node.Kind() {
	case "member_expression", "subscript_expression":
		obj, prop, ok := m.Src.MemberParts(node)
		if !ok {
			return ImportRef{}, false
		}
		if id, ok := m.requiredChunk(obj); ok {
			return ImportRef{Chunk: id, Export: prop}, true
		}
	case "identifier":
		b := m.Src.Scopes().Resolve(node)
		if b == nil || len(b.Path) != 1 || b.Init == nil {
			return ImportRef{}, false
		}
		if id, ok := m.RequireCall(b.Init); ok {
			return ImportRef{Chunk: id, Export: b.Path[0]}, true
		}
	}
	return ImportRef{}, false
}

// requiredChunk resolves `<alias>(id)` or an identifier initialized with it.
func (m *Module) requiredChunk(node *sitter.Node) (string, bool) {
	node = parser.Unwrap(node)
	if node == nil {
		return "", false
	}
	if node.Kind() == "call_expression" {
		return m.RequireCall(node)
	}
	if node.Kind() != "identifier" {
		return "", false
	}
	b := m.Src.Scopes().Resolve(node)
	if b == nil || len(b.Path) != 0 || b.Init == nil {
		return "", false
	}
	return m.RequireCall(b.Init)
}

// ExportsOf returns the names under which the chunk exports node, either
// directly or through the identifier bound to it.
func (m *Module) ExportsOf(node *sitter.Node) []string {
	var names []string
	for _, e := range m.Exports() {
		if e.Value == nil {
			continue
		}
		if parser.SameNode(e.Value, node) {
			names = append(names, e.Name)
			continue
		}
		if e.Value.Kind() != "identifier" {
			continue
		}
		b := m.Src.Scopes().Resolve(e.Value)
		if b == nil {
			continue
		}
		if parser.SameNode(b.Decl, node) || parser.SameNode(parser.Unwrap(b.Init), node) {
			names = append(names, e.Name)
		}
	}
	return names
}
