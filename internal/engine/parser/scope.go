package parser

import (
	"strconv"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type BindingKind int

const (
	BindVar BindingKind = iota
	BindLet
	BindConst
	BindParam
	BindFunction
	BindClass
	BindCatch
)

func (k BindingKind) String() string {
	switch k {
	case BindVar:
		return "var"
	case BindLet:
		return "let"
	case BindConst:
		return "const"
	case BindParam:
		return "param"
	case BindFunction:
		return "function"
	case BindClass:
		return "class"
	case BindCatch:
		return "catch"
	}
	return "unknown"
}

// Binding is one declared name.
type Binding struct {
	Name string
	Kind BindingKind
	// Decl is the identifier node at the declaration site.
	Decl *sitter.Node
	// Init is the initializer expression, the function node of a function
	// declaration, or a parameter's default value.
	Init *sitter.Node
	// Path is the destructuring path from Init to the bound value.
	Path []string
	// Scope is the node that owns the binding.
	Scope *sitter.Node
	// Function and ParamIndex are set for parameters.
	Function   *sitter.Node
	ParamIndex int
}

func (b *Binding) Key() NodeKey {
	if b == nil {
		return NodeKey{}
	}
	return Key(b.Decl)
}

// Scopes answers "which declaration does this identifier refer to" for one
// source. Bindings per scope node are computed on first use.
type Scopes struct {
	src   *Source
	cache map[NodeKey][]*Binding
}

func newScopes(src *Source) *Scopes {
	return &Scopes{src: src, cache: make(map[NodeKey][]*Binding)}
}

// Lookup resolves name as seen from ref by walking outwards through the
// enclosing scopes. The innermost declaration wins.
func (sc *Scopes) Lookup(ref *sitter.Node, name string) *Binding {
	if ref == nil || name == "" {
		return nil
	}
	for cur := ref; cur != nil; cur = cur.Parent() {
		if !isScopeNode(cur) {
			continue
		}
		for _, b := range sc.bindingsOf(cur) {
			if b.Name == name {
				return b
			}
		}
	}
	return nil
}

// Resolve looks up the identifier node's own name.
func (sc *Scopes) Resolve(ident *sitter.Node) *Binding {
	return sc.Lookup(ident, sc.src.Text(ident))
}

// Declarations returns every binding whose name matches, across all scopes
// of the source. Used when a value has to be found "anywhere in the file".
func (sc *Scopes) Declarations(name string) []*Binding {
	var out []*Binding
	Walk(sc.src.Root, func(n *sitter.Node) bool {
		if isScopeNode(n) {
			for _, b := range sc.bindingsOf(n) {
				if b.Name == name {
					out = append(out, b)
				}
			}
		}
		return true
	})
	return out
}

// Bindings returns the bindings owned directly by a scope node.
func (sc *Scopes) Bindings(scope *sitter.Node) []*Binding {
	if !isScopeNode(scope) {
		return nil
	}
	return sc.bindingsOf(scope)
}

func isScopeNode(node *sitter.Node) bool {
	switch node.Kind() {
	case "program", "statement_block", "catch_clause", "for_statement", "for_in_statement":
		return true
	}
	return IsFunction(node)
}

func (sc *Scopes) bindingsOf(scope *sitter.Node) []*Binding {
	key := Key(scope)
	if cached, ok := sc.cache[key]; ok {
		return cached
	}
	c := &collector{src: sc.src, scope: scope}
	switch {
	case scope.Kind() == "program":
		c.hoistVars(scope)
		c.blockDeclarations(scope)
	case scope.Kind() == "statement_block":
		c.blockDeclarations(scope)
	case scope.Kind() == "catch_clause":
		if param := scope.ChildByFieldName("parameter"); param != nil {
			c.pattern(param, BindCatch, nil, nil)
		}
	case scope.Kind() == "for_statement":
		if init := scope.ChildByFieldName("initializer"); init != nil && init.Kind() == "lexical_declaration" {
			c.declaration(init)
		}
	case scope.Kind() == "for_in_statement":
		if kind := scope.ChildByFieldName("kind"); kind != nil {
			if left := scope.ChildByFieldName("left"); left != nil {
				c.pattern(left, declKind(sc.src.Text(kind)), nil, nil)
			}
		}
	default:
		c.function(scope)
	}
	sc.cache[key] = c.out
	return c.out
}

type collector struct {
	src   *Source
	scope *sitter.Node
	out   []*Binding
}

func (c *collector) add(b *Binding) {
	b.Scope = c.scope
	c.out = append(c.out, b)
}

func (c *collector) function(fn *sitter.Node) {
	if fn.Kind() == "function_expression" || fn.Kind() == "function" || fn.Kind() == "generator_function" {
		if name := fn.ChildByFieldName("name"); name != nil {
			c.add(&Binding{Name: c.src.Text(name), Kind: BindFunction, Decl: name, Init: fn, ParamIndex: -1})
		}
	}
	for i, param := range Params(fn) {
		c.param(fn, i, param)
	}
	if body := FunctionBody(fn); body != nil && body.Kind() == "statement_block" {
		c.hoistVars(body)
	}
}

func (c *collector) param(fn *sitter.Node, index int, param *sitter.Node) {
	switch param.Kind() {
	case "identifier":
		c.add(&Binding{Name: c.src.Text(param), Kind: BindParam, Decl: param, Function: fn, ParamIndex: index})
	case "assignment_pattern":
		left := param.ChildByFieldName("left")
		if left != nil && left.Kind() == "identifier" {
			c.add(&Binding{
				Name: c.src.Text(left), Kind: BindParam, Decl: left,
				Init: param.ChildByFieldName("right"), Function: fn, ParamIndex: index,
			})
			return
		}
		start := len(c.out)
		c.pattern(left, BindParam, nil, nil)
		for _, b := range c.out[start:] {
			b.Function = fn
			b.ParamIndex = index
		}
	case "rest_pattern":
		for _, child := range NamedChildren(param) {
			c.param(fn, index, child)
		}
	default:
		start := len(c.out)
		c.pattern(param, BindParam, nil, nil)
		for _, b := range c.out[start:] {
			b.Function = fn
			b.ParamIndex = index
		}
	}
}

// hoistVars collects `var` declarations and nested function declarations
// reachable from root without entering another function.
func (c *collector) hoistVars(root *sitter.Node) {
	Walk(root, func(n *sitter.Node) bool {
		if !SameNode(n, root) && IsFunction(n) {
			return false
		}
		if n.Kind() == "variable_declaration" {
			c.declaration(n)
			return true
		}
		return true
	})
}

// blockDeclarations collects lexical declarations that are direct children
// of a block or program.
func (c *collector) blockDeclarations(block *sitter.Node) {
	for _, stmt := range NamedChildren(block) {
		switch stmt.Kind() {
		case "lexical_declaration":
			c.declaration(stmt)
		case "function_declaration", "generator_function_declaration":
			if name := stmt.ChildByFieldName("name"); name != nil {
				c.add(&Binding{Name: c.src.Text(name), Kind: BindFunction, Decl: name, Init: stmt, ParamIndex: -1})
			}
		case "class_declaration":
			if name := stmt.ChildByFieldName("name"); name != nil {
				c.add(&Binding{Name: c.src.Text(name), Kind: BindClass, Decl: name, Init: stmt, ParamIndex: -1})
			}
		case "export_statement":
			if decl := stmt.ChildByFieldName("declaration"); decl != nil && decl.Kind() == "lexical_declaration" {
				c.declaration(decl)
			}
		}
	}
}

func (c *collector) declaration(decl *sitter.Node) {
	kind := BindVar
	if decl.Kind() == "lexical_declaration" {
		kind = BindLet
		if k := decl.ChildByFieldName("kind"); k != nil {
			kind = declKind(c.src.Text(k))
		} else if decl.ChildCount() > 0 {
			kind = declKind(c.src.Text(decl.Child(0)))
		}
	}
	for _, declarator := range NamedChildren(decl) {
		if declarator.Kind() != "variable_declarator" {
			continue
		}
		c.pattern(declarator.ChildByFieldName("name"), kind, declarator.ChildByFieldName("value"), nil)
	}
}

func declKind(text string) BindingKind {
	switch text {
	case "const":
		return BindConst
	case "let":
		return BindLet
	}
	return BindVar
}

// pattern binds every identifier of a (possibly destructuring) target.
func (c *collector) pattern(target *sitter.Node, kind BindingKind, init *sitter.Node, path []string) {
	if target == nil {
		return
	}
	switch target.Kind() {
	case "identifier", "shorthand_property_identifier_pattern":
		c.add(&Binding{Name: c.src.Text(target), Kind: kind, Decl: target, Init: init, Path: path, ParamIndex: -1})
	case "object_pattern":
		for _, prop := range NamedChildren(target) {
			switch prop.Kind() {
			case "shorthand_property_identifier_pattern":
				c.pattern(prop, kind, init, appendPath(path, c.src.Text(prop)))
			case "pair_pattern":
				key, ok := c.src.PropertyKey(prop.ChildByFieldName("key"))
				if !ok {
					continue
				}
				c.pattern(prop.ChildByFieldName("value"), kind, init, appendPath(path, key))
			case "object_assignment_pattern":
				left := prop.ChildByFieldName("left")
				c.pattern(left, kind, init, appendPath(path, c.src.Text(left)))
			case "rest_pattern":
				for _, child := range NamedChildren(prop) {
					c.pattern(child, kind, nil, nil)
				}
			}
		}
	case "array_pattern":
		// Holes are bare commas, so positions are counted from separators.
		index := 0
		for i := uint(0); i < target.ChildCount(); i++ {
			elem := target.Child(i)
			switch {
			case elem.Kind() == ",":
				index++
			case !elem.IsNamed() || elem.Kind() == "comment" || elem.Kind() == "rest_pattern":
			default:
				c.pattern(elem, kind, init, appendPath(path, strconv.Itoa(index)))
			}
		}
	case "assignment_pattern":
		c.pattern(target.ChildByFieldName("left"), kind, init, path)
	}
}

func appendPath(path []string, key string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, key)
}
