// Package fetch finds calls to the fetch primitive, including calls through
// aliases, and resolves their request parameters.
package fetch

import (
	"chunkmap/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

var globalObjects = map[string]bool{"window": true, "self": true, "globalThis": true, "global": true}

// Site is one call of fetch or of an alias of it.
type Site struct {
	Call   *sitter.Node
	Callee string
	Alias  bool
}

// Detection is the result of scanning one subtree.
type Detection struct {
	Sites   []Site
	Aliases []string
}

func (d Detection) Found() bool {
	return len(d.Sites) > 0
}

type detector struct {
	src     *parser.Source
	aliases map[aliasKey]bool
	names   []string
	sites   []Site
	added   bool
}

// Detect scans root in two passes: the first collects bindings assigned a
// fetch reference, the second collects calls of fetch or of those bindings.
func Detect(src *parser.Source, root *sitter.Node) Detection {
	d := &detector{src: src, aliases: make(map[aliasKey]bool)}
	ctx := &parser.WalkContext{Source: src}

	aliasPass := parser.NewDispatcher(map[string]parser.NodeHandler{
		"variable_declarator":   d.declarator,
		"assignment_expression": d.assignment,
	})
	// Repeat until no new alias appears so that chains like `a = fetch;
	// b = a` are followed.
	for {
		d.added = false
		aliasPass.Walk(ctx, root)
		if !d.added {
			break
		}
	}

	callPass := parser.NewDispatcher(map[string]parser.NodeHandler{
		"call_expression": d.call,
	})
	callPass.Walk(ctx, root)
	return Detection{Sites: d.sites, Aliases: d.names}
}

func (d *detector) declarator(_ *parser.WalkContext, n *sitter.Node) bool {
	d.bind(n.ChildByFieldName("name"), n.ChildByFieldName("value"))
	return false
}

func (d *detector) assignment(_ *parser.WalkContext, n *sitter.Node) bool {
	d.bind(n.ChildByFieldName("left"), n.ChildByFieldName("right"))
	return false
}

func (d *detector) bind(target, value *sitter.Node) {
	if target == nil || target.Kind() != "identifier" || !d.isFetchRef(value) {
		return
	}
	key := d.aliasKey(target)
	if d.aliases[key] {
		return
	}
	d.aliases[key] = true
	d.names = append(d.names, d.src.Text(target))
	d.added = true
}

func (d *detector) call(ctx *parser.WalkContext, n *sitter.Node) bool {
	callee := parser.Unwrap(n.ChildByFieldName("function"))
	if callee == nil {
		return false
	}
	if d.isPrimitive(callee) {
		d.sites = append(d.sites, Site{Call: n, Callee: ctx.Source.Text(callee)})
	} else if callee.Kind() == "identifier" && d.aliases[d.aliasKey(callee)] {
		d.sites = append(d.sites, Site{Call: n, Callee: ctx.Source.Text(callee), Alias: true})
	}
	return false
}

// aliasKey identifies the binding an identifier refers to. Undeclared
// names share one global key per name.
type aliasKey struct {
	global string
	decl   parser.NodeKey
}

func (d *detector) aliasKey(ident *sitter.Node) aliasKey {
	b := d.src.Scopes().Resolve(ident)
	if b == nil {
		return aliasKey{global: d.src.Text(ident)}
	}
	return aliasKey{decl: b.Key()}
}

func (d *detector) isPrimitive(node *sitter.Node) bool {
	switch node.Kind() {
	case "identifier":
		return d.src.Text(node) == "fetch"
	case "member_expression":
		obj, prop, ok := d.src.MemberParts(node)
		return ok && prop == "fetch" && obj != nil && globalObjects[d.src.Text(obj)]
	}
	return false
}

// isFetchRef matches `fetch`, `window.fetch`, `x || fetch`, `x ?? fetch`,
// `c ? x : fetch`, `fetch.bind(...)` and known aliases.
func (d *detector) isFetchRef(node *sitter.Node) bool {
	node = parser.Unwrap(node)
	if node == nil {
		return false
	}
	if d.isPrimitive(node) {
		return true
	}
	switch node.Kind() {
	case "identifier":
		return d.aliases[d.aliasKey(node)]
	case "binary_expression":
		op := node.ChildByFieldName("operator")
		if op == nil {
			return false
		}
		switch d.src.Text(op) {
		case "||", "??":
			return d.isFetchRef(node.ChildByFieldName("right"))
		}
	case "ternary_expression":
		return d.isFetchRef(node.ChildByFieldName("alternative"))
	case "call_expression":
		obj, prop, ok := d.src.MemberParts(node.ChildByFieldName("function"))
		return ok && prop == "bind" && d.isFetchRef(obj)
	}
	return false
}
