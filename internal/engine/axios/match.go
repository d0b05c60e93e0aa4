// Package axios recognizes HTTP client instances created through a
// `create()` factory, follows them across chunk exports and records the
// requests issued through them.
package axios

import (
	"chunkmap/internal/engine/graph"
	"chunkmap/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// DefaultVerbs are the instance methods treated as requests.
var DefaultVerbs = []string{"get", "post", "put", "patch", "delete", "head", "options", "request"}

// Globals whose create() never yields an HTTP client.
var factoryDenylist = map[string]bool{
	"Object": true, "Reflect": true, "Symbol": true, "Promise": true,
	"Array": true, "document": true, "crypto": true, "Math": true, "JSON": true,
}

// Creation is one recognized `<factory>.create(config)` call.
type Creation struct {
	Call    *sitter.Node
	Factory string
	Pattern string
}

// Config returns the config argument of the create call, or nil.
func (c Creation) Config() *sitter.Node {
	args := parser.CallArgs(c.Call)
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

// CreationMatcher tests one call expression against a creation idiom.
type CreationMatcher func(m *graph.Module, call *sitter.Node) (Creation, bool)

// CreationMatchers are tried in order; the first match wins.
var CreationMatchers = []CreationMatcher{
	MatchRequiredFactory,
	MatchImportedFactory,
	MatchNamedFactory,
}

// MatchCreation runs every creation matcher against call.
func MatchCreation(m *graph.Module, call *sitter.Node) (Creation, bool) {
	for _, match := range CreationMatchers {
		if c, ok := match(m, call); ok {
			return c, true
		}
	}
	return Creation{}, false
}

// createFactory returns the receiver of a `<x>.create(...)` call taking at
// most one argument.
func createFactory(m *graph.Module, call *sitter.Node) *sitter.Node {
	if call == nil || call.Kind() != "call_expression" {
		return nil
	}
	obj, prop, ok := m.Src.MemberParts(call.ChildByFieldName("function"))
	if !ok || prop != "create" || obj == nil {
		return nil
	}
	if len(parser.CallArgs(call)) > 1 {
		return nil
	}
	return parser.Unwrap(obj)
}

// MatchRequiredFactory matches `<require>(<id>).<X>.create()`.
func MatchRequiredFactory(m *graph.Module, call *sitter.Node) (Creation, bool) {
	factory := createFactory(m, call)
	if factory == nil || !m.HasAlias() {
		return Creation{}, false
	}
	inner, _, ok := m.Src.MemberParts(factory)
	if !ok {
		return Creation{}, false
	}
	if _, ok := m.RequireCall(inner); !ok {
		return Creation{}, false
	}
	return Creation{Call: call, Factory: m.Src.Text(factory), Pattern: "require-member"}, true
}

// MatchImportedFactory matches `r.<X>.create()` with `r = <require>(<id>)`
// and `X.create()` with X destructured from a require call.
func MatchImportedFactory(m *graph.Module, call *sitter.Node) (Creation, bool) {
	factory := createFactory(m, call)
	if factory == nil {
		return Creation{}, false
	}
	if _, ok := m.ImportRefOf(factory); !ok {
		return Creation{}, false
	}
	return Creation{Call: call, Factory: m.Src.Text(factory), Pattern: "import-ref"}, true
}

// MatchNamedFactory matches `axios.create()` and `o.a.create()` on any
// identifier root outside the denylist.
func MatchNamedFactory(m *graph.Module, call *sitter.Node) (Creation, bool) {
	factory := createFactory(m, call)
	if factory == nil {
		return Creation{}, false
	}
	root := factory
	for root.Kind() == "member_expression" {
		root = parser.Unwrap(root.ChildByFieldName("object"))
		if root == nil {
			return Creation{}, false
		}
	}
	if root.Kind() != "identifier" || factoryDenylist[m.Src.Text(root)] {
		return Creation{}, false
	}
	if m.IsAlias(root) {
		return Creation{}, false
	}
	if args := parser.CallArgs(call); len(args) == 1 {
		switch parser.Unwrap(args[0]).Kind() {
		case "object", "identifier":
		default:
			return Creation{}, false
		}
	}
	return Creation{Call: call, Factory: m.Src.Text(factory), Pattern: "identifier"}, true
}

// AssignedTo returns the identifier a creation's result is stored in, or
// nil when the result is used directly.
func AssignedTo(call *sitter.Node) *sitter.Node {
	child := call
	for parent := call.Parent(); parent != nil; child, parent = parent, parent.Parent() {
		switch parent.Kind() {
		case "parenthesized_expression", "await_expression":
			continue
		case "sequence_expression":
			named := parser.NamedChildren(parent)
			if len(named) > 0 && parser.SameNode(named[len(named)-1], child) {
				continue
			}
			return nil
		case "variable_declarator":
			if !parser.SameNode(parent.ChildByFieldName("value"), child) {
				return nil
			}
			name := parent.ChildByFieldName("name")
			if name != nil && name.Kind() == "identifier" {
				return name
			}
			return nil
		case "assignment_expression":
			if !parser.SameNode(parent.ChildByFieldName("right"), child) {
				return nil
			}
			left := parent.ChildByFieldName("left")
			if left != nil && left.Kind() == "identifier" {
				return left
			}
			return nil
		default:
			return nil
		}
	}
	return nil
}

// Use is one request issued through an instance.
type Use struct {
	Call    *sitter.Node
	Verb    string
	Pattern string
}

// UseMatcher tests one call expression against a usage idiom.
type UseMatcher func(in *Instance, call *sitter.Node) (Use, bool)

var UseMatchers = []UseMatcher{
	MatchMemberCall,
	MatchSequenceCall,
	MatchConditionalCall,
	MatchDestructuredCall,
	MatchExportedMethodCall,
	MatchDirectCall,
}

// MatchUse runs every use matcher against call.
func MatchUse(in *Instance, call *sitter.Node) (Use, bool) {
	if call == nil || call.Kind() != "call_expression" {
		return Use{}, false
	}
	for _, match := range UseMatchers {
		if u, ok := match(in, call); ok {
			return u, true
		}
	}
	return Use{}, false
}

func (in *Instance) verbMember(node *sitter.Node) (string, bool) {
	if node == nil || node.Kind() != "member_expression" && node.Kind() != "subscript_expression" {
		return "", false
	}
	obj, prop, ok := in.m.Src.MemberParts(node)
	if !ok || !in.verbs[prop] || !in.Is(obj) {
		return "", false
	}
	return prop, true
}

// MatchMemberCall matches `inst.get(...)`.
func MatchMemberCall(in *Instance, call *sitter.Node) (Use, bool) {
	verb, ok := in.verbMember(call.ChildByFieldName("function"))
	if !ok {
		return Use{}, false
	}
	return Use{Call: call, Verb: verb, Pattern: "member"}, true
}

// MatchSequenceCall matches `(0, inst.get)(...)`.
func MatchSequenceCall(in *Instance, call *sitter.Node) (Use, bool) {
	callee := call.ChildByFieldName("function")
	if callee == nil || callee.Kind() != "parenthesized_expression" {
		return Use{}, false
	}
	verb, ok := in.verbMember(parser.Unwrap(callee))
	if !ok {
		return Use{}, false
	}
	return Use{Call: call, Verb: verb, Pattern: "sequence"}, true
}

// MatchConditionalCall matches `(c ? inst.get : inst.post)(...)`, taking
// the consequent when both branches are verbs.
func MatchConditionalCall(in *Instance, call *sitter.Node) (Use, bool) {
	callee := parser.Unwrap(call.ChildByFieldName("function"))
	if callee == nil || callee.Kind() != "ternary_expression" {
		return Use{}, false
	}
	for _, field := range []string{"consequence", "alternative"} {
		if verb, ok := in.verbMember(parser.Unwrap(callee.ChildByFieldName(field))); ok {
			return Use{Call: call, Verb: verb, Pattern: "conditional"}, true
		}
	}
	return Use{}, false
}

// MatchDestructuredCall matches `get(...)` after `const {get} = inst`.
func MatchDestructuredCall(in *Instance, call *sitter.Node) (Use, bool) {
	callee := parser.Unwrap(call.ChildByFieldName("function"))
	if verb, ok := in.boundVerb(callee); ok {
		return Use{Call: call, Verb: verb, Pattern: "destructured"}, true
	}
	return Use{}, false
}

// MatchExportedMethodCall matches `r.get(...)` where another chunk exports
// a verb bound from the instance.
func MatchExportedMethodCall(in *Instance, call *sitter.Node) (Use, bool) {
	ref, ok := in.m.ImportRefOf(call.ChildByFieldName("function"))
	if !ok {
		return Use{}, false
	}
	verb, ok := in.refs.methods[ref]
	if !ok {
		return Use{}, false
	}
	return Use{Call: call, Verb: verb, Pattern: "exported-method"}, true
}

// MatchDirectCall matches `inst(config)`.
func MatchDirectCall(in *Instance, call *sitter.Node) (Use, bool) {
	if !in.Is(call.ChildByFieldName("function")) {
		return Use{}, false
	}
	return Use{Call: call, Verb: "request", Pattern: "direct"}, true
}

// WrapperCall returns the call a thin wrapper function delegates to: the
// expression of its first return statement or of its arrow body.
func WrapperCall(fn *sitter.Node) (*sitter.Node, bool) {
	body := parser.FunctionBody(fn)
	if body == nil {
		return nil, false
	}
	var expr *sitter.Node
	if body.Kind() == "statement_block" {
		for _, stmt := range parser.NamedChildren(body) {
			if stmt.Kind() == "return_statement" {
				if ret := parser.NamedChildren(stmt); len(ret) > 0 {
					expr = ret[0]
				}
				break
			}
		}
	} else {
		expr = body
	}
	for expr != nil {
		expr = parser.Unwrap(expr)
		if expr == nil || expr.Kind() != "await_expression" {
			break
		}
		named := parser.NamedChildren(expr)
		if len(named) == 0 {
			return nil, false
		}
		expr = named[0]
	}
	if expr == nil || expr.Kind() != "call_expression" {
		return nil, false
	}
	return expr, true
}
