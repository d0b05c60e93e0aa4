// Package resolver is a best-effort partial evaluator for JavaScript
// expressions found in bundled code. It never fails: whatever cannot be
// determined comes back as a bracketed placeholder string.
package resolver

import (
	"fmt"
	"log/slog"

	"chunkmap/internal/engine/graph"
	"chunkmap/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

const (
	DefaultMaxDepth = 64
	// DefaultMaxSteps bounds the node evaluations of one Resolve call.
	DefaultMaxSteps = 100_000
)

type Option func(*Resolver)

func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithMaxSteps caps the number of nodes one evaluation may visit. Once
// spent, the remaining subexpressions resolve to placeholders.
func WithMaxSteps(steps int) Option {
	return func(r *Resolver) {
		if steps > 0 {
			r.maxSteps = steps
		}
	}
}

type Resolver struct {
	modules  *graph.ModuleCache
	maxDepth int
	maxSteps int
}

// New returns a resolver. modules may be nil, which disables cross-chunk
// lookups.
func New(modules *graph.ModuleCache, opts ...Option) *Resolver {
	r := &Resolver{modules: modules, maxDepth: DefaultMaxDepth, maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scope is where an expression lives: its source, the module wrapper it
// belongs to (for the require alias) and the chunk id (for imports).
type Scope struct {
	Src     *parser.Source
	Module  *graph.Module
	ChunkID string
}

// Overrides binds parameters, keyed by the parameter's declaration node in
// Scope.Src, to caller-supplied values.
type Overrides map[parser.NodeKey]any

type bindingKey struct {
	src *parser.Source
	key parser.NodeKey
}

type frame struct {
	src     *parser.Source
	module  *graph.Module
	chunkID string
}

type funcRef struct {
	f    *frame
	node *sitter.Node
	name string
}

// evaluation is the state of one top-level Resolve call. Binding values
// are memoized unless a cut (depth, budget or cycle) shaped them, so a
// binding shared along many paths is evaluated once.
type evaluation struct {
	r         *Resolver
	depth     int
	steps     int
	cuts      int
	visiting  map[bindingKey]bool
	overrides map[bindingKey]any
	memo      map[bindingKey]any
}

// Resolve evaluates node.
func (r *Resolver) Resolve(scope Scope, node *sitter.Node) any {
	return r.ResolveWith(scope, node, nil)
}

// ResolveWith evaluates node with some parameters bound to known values.
func (r *Resolver) ResolveWith(scope Scope, node *sitter.Node, overrides Overrides) (result any) {
	if node == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Debug("resolver recovered", "chunk", scope.ChunkID, "panic", rec)
			result = fmt.Sprintf(unsupportedNode, node.Kind())
		}
	}()
	ev := r.newEvaluation()
	for k, v := range overrides {
		ev.overrides[bindingKey{src: scope.Src, key: k}] = v
	}
	f := &frame{src: scope.Src, module: scope.Module, chunkID: scope.ChunkID}
	return finalize(ev.eval(f, node))
}

// ResolveExport evaluates the named export of a chunk.
func (r *Resolver) ResolveExport(chunkID, name string) (result any) {
	defer func() {
		if rec := recover(); rec != nil {
			result = Unresolved(name)
		}
	}()
	ev := r.newEvaluation()
	v, ok := ev.export(chunkID, name)
	if !ok {
		return Unresolved(name)
	}
	return finalize(v)
}

func (r *Resolver) newEvaluation() *evaluation {
	return &evaluation{
		r:         r,
		visiting:  make(map[bindingKey]bool),
		overrides: make(map[bindingKey]any),
		memo:      make(map[bindingKey]any),
	}
}

func (ev *evaluation) eval(f *frame, node *sitter.Node) any {
	node = parser.Unwrap(node)
	if node == nil {
		return nil
	}
	if ev.depth >= ev.r.maxDepth || ev.steps >= ev.r.maxSteps {
		ev.cuts++
		return Unresolved(shorten(f.src.Text(node)))
	}
	ev.steps++
	ev.depth++
	defer func() { ev.depth-- }()

	src := f.src
	switch node.Kind() {
	case "string":
		s, _ := src.StringValue(node)
		return s
	case "number":
		if n, ok := src.NumberValue(node); ok {
			return n
		}
		return fmt.Sprintf(unsupportedNode, node.Kind())
	case "true":
		return true
	case "false":
		return false
	case "null", "undefined":
		return nil
	case "template_string":
		return ev.template(f, node)
	case "identifier", "shorthand_property_identifier":
		return ev.identifier(f, node)
	case "object":
		return ev.object(f, node)
	case "array":
		return ev.array(f, node)
	case "member_expression", "subscript_expression":
		return ev.member(f, node)
	case "call_expression":
		return ev.call(f, node)
	case "new_expression":
		return ev.newExpr(f, node)
	case "binary_expression":
		return ev.binary(f, node)
	case "ternary_expression":
		cons := ev.eval(f, node.ChildByFieldName("consequence"))
		if !IsUnresolved(cons) {
			return cons
		}
		return ev.eval(f, node.ChildByFieldName("alternative"))
	case "unary_expression":
		return ev.unary(f, node)
	case "await_expression", "as_expression", "satisfies_expression", "non_null_expression", "type_assertion":
		children := parser.NamedChildren(node)
		if len(children) == 0 {
			return nil
		}
		if node.Kind() == "type_assertion" {
			return ev.eval(f, children[len(children)-1])
		}
		return ev.eval(f, children[0])
	case "assignment_expression":
		return ev.eval(f, node.ChildByFieldName("right"))
	case "function_expression", "function", "arrow_function", "function_declaration":
		name := "anonymous"
		if n := node.ChildByFieldName("name"); n != nil {
			name = src.Text(n)
		}
		return &funcRef{f: f, node: node, name: name}
	}
	return fmt.Sprintf(unsupportedNode, node.Kind())
}

func (ev *evaluation) template(f *frame, node *sitter.Node) any {
	var out []byte
	cursor := node.StartByte() + 1
	end := node.EndByte() - 1
	code := f.src.Code
	for _, child := range parser.NamedChildren(node) {
		if child.Kind() != "template_substitution" {
			continue
		}
		out = append(out, parser.UnquoteJS(string(code[cursor:child.StartByte()]))...)
		exprs := parser.NamedChildren(child)
		if len(exprs) > 0 {
			out = append(out, Stringify(ev.eval(f, exprs[len(exprs)-1]))...)
		}
		cursor = child.EndByte()
	}
	if cursor < end {
		out = append(out, parser.UnquoteJS(string(code[cursor:end]))...)
	}
	return string(out)
}

func (ev *evaluation) identifier(f *frame, node *sitter.Node) any {
	name := f.src.Text(node)
	switch name {
	case "undefined":
		return nil
	case "NaN", "Infinity":
		return Unresolved(name)
	}
	b := f.src.Scopes().Resolve(node)
	if b == nil {
		if v, ok := ev.importedExport(f, name); ok {
			return v
		}
		return Unresolved(name)
	}
	return ev.binding(f, b)
}

func (ev *evaluation) binding(f *frame, b *parser.Binding) any {
	key := bindingKey{src: f.src, key: b.Key()}
	if v, ok := ev.overrides[key]; ok {
		return v
	}
	if v, ok := ev.memo[key]; ok {
		return v
	}
	if ev.visiting[key] {
		ev.cuts++
		return Unresolved(b.Name)
	}
	ev.visiting[key] = true
	defer delete(ev.visiting, key)

	cuts := ev.cuts
	v := ev.bindingValue(f, b)
	if ev.cuts == cuts {
		ev.memo[key] = v
	}
	return v
}

func (ev *evaluation) bindingValue(f *frame, b *parser.Binding) any {
	switch b.Kind {
	case parser.BindFunction, parser.BindClass:
		if b.Kind == parser.BindClass {
			return Unresolved(b.Name)
		}
		return &funcRef{f: f, node: b.Init, name: b.Name}
	case parser.BindParam, parser.BindCatch:
		if b.Init == nil {
			return Unresolved(b.Name)
		}
	}

	init := b.Init
	if init == nil {
		init = assignedValue(f.src, b)
	}
	if init == nil {
		return Unresolved(b.Name)
	}
	v := ev.eval(f, init)
	for _, key := range b.Path {
		v = ev.property(v, key)
	}
	return v
}

// assignedValue finds the right-hand side of the first plain assignment to
// a binding declared without initializer.
func assignedValue(src *parser.Source, b *parser.Binding) *sitter.Node {
	if b.Scope == nil {
		return nil
	}
	var found *sitter.Node
	parser.Walk(b.Scope, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.Kind() != "assignment_expression" {
			return true
		}
		left := n.ChildByFieldName("left")
		if left == nil || left.Kind() != "identifier" || src.Text(left) != b.Name {
			return true
		}
		if target := src.Scopes().Resolve(left); target != nil && target.Key() == b.Key() {
			found = n.ChildByFieldName("right")
		}
		return true
	})
	return found
}

// importedExport searches the chunks imported by the current chunk for an
// export named name.
func (ev *evaluation) importedExport(f *frame, name string) (any, bool) {
	mc := ev.r.modules
	if mc == nil || f.chunkID == "" || f.module == nil || !f.module.HasAlias() {
		return nil, false
	}
	c, ok := mc.Chunks().Get(f.chunkID)
	if !ok {
		return nil, false
	}
	for _, imp := range c.Imports {
		if v, ok := ev.export(imp, name); ok && !IsUnresolved(v) {
			return v, true
		}
	}
	return nil, false
}

// export evaluates chunk id's export inside that chunk.
func (ev *evaluation) export(id, name string) (any, bool) {
	mc := ev.r.modules
	if mc == nil {
		return nil, false
	}
	m, ok := mc.Get(id)
	if !ok {
		return nil, false
	}
	value, ok := m.Export(name)
	if !ok {
		return nil, false
	}
	key := bindingKey{src: m.Src, key: parser.Key(value)}
	if ev.visiting[key] {
		ev.cuts++
		return Unresolved(name), true
	}
	ev.visiting[key] = true
	defer delete(ev.visiting, key)
	return ev.eval(&frame{src: m.Src, module: m, chunkID: id}, value), true
}

func (ev *evaluation) object(f *frame, node *sitter.Node) any {
	out := make(map[string]any)
	src := f.src
	for _, prop := range parser.NamedChildren(node) {
		switch prop.Kind() {
		case "pair":
			keyNode := prop.ChildByFieldName("key")
			key, ok := src.PropertyKey(keyNode)
			if !ok && keyNode != nil && keyNode.Kind() == "computed_property_name" {
				inner := parser.NamedChildren(keyNode)
				if len(inner) > 0 {
					key, ok = Stringify(ev.eval(f, inner[0])), true
				}
			}
			if !ok {
				continue
			}
			out[key] = ev.eval(f, prop.ChildByFieldName("value"))
		case "shorthand_property_identifier":
			out[src.Text(prop)] = ev.identifier(f, prop)
		case "spread_element":
			children := parser.NamedChildren(prop)
			if len(children) == 0 {
				continue
			}
			if spread, ok := ev.eval(f, children[0]).(map[string]any); ok {
				for k, v := range spread {
					out[k] = v
				}
			}
		case "method_definition":
			if key, ok := src.PropertyKey(prop.ChildByFieldName("name")); ok {
				out[key] = &funcRef{f: f, node: prop, name: key}
			}
		}
	}
	return out
}

func (ev *evaluation) array(f *frame, node *sitter.Node) any {
	out := make([]any, 0, node.NamedChildCount())
	for _, elem := range parser.NamedChildren(node) {
		if elem.Kind() == "spread_element" {
			children := parser.NamedChildren(elem)
			if len(children) > 0 {
				if spread, ok := ev.eval(f, children[0]).([]any); ok {
					out = append(out, spread...)
				}
			}
			continue
		}
		out = append(out, ev.eval(f, elem))
	}
	return out
}

func (ev *evaluation) member(f *frame, node *sitter.Node) any {
	objNode, prop, ok := f.src.MemberParts(node)
	if !ok && node.Kind() == "subscript_expression" {
		index := ev.eval(f, node.ChildByFieldName("index"))
		if IsUnresolved(index) {
			return unresolvedMember
		}
		prop, ok = Stringify(index), true
		objNode = node.ChildByFieldName("object")
	}
	if !ok {
		return unresolvedMember
	}
	return ev.property(ev.eval(f, objNode), prop)
}

// property indexes an evaluated receiver.
func (ev *evaluation) property(obj any, prop string) any {
	switch x := obj.(type) {
	case map[string]any:
		return x[prop]
	case []any:
		if prop == "length" {
			return float64(len(x))
		}
		if i, ok := parser.ParseNumber(prop); ok && i >= 0 && int(i) < len(x) && float64(int(i)) == i {
			return x[int(i)]
		}
		return nil
	case string:
		if prop == "length" && !IsUnresolved(x) {
			return float64(len([]rune(x)))
		}
	case moduleRef:
		if v, ok := ev.export(x.id, prop); ok {
			return v
		}
	}
	return unresolvedMember
}
