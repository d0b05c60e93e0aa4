package resolver

import (
	"fmt"
	"math"
	"strings"

	"chunkmap/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func (ev *evaluation) call(f *frame, node *sitter.Node) any {
	src := f.src
	callee := parser.Unwrap(node.ChildByFieldName("function"))
	args := parser.CallArgs(node)

	if f.module != nil {
		if id, ok := f.module.RequireCall(node); ok {
			return moduleRef{id: id}
		}
	}

	if objNode, prop, ok := src.MemberParts(callee); ok {
		switch {
		case prop == "toString" && len(args) == 0:
			recv := ev.eval(f, objNode)
			if IsUnresolved(recv) {
				return recv
			}
			return Stringify(recv)
		case prop == "concat":
			recv := ev.eval(f, objNode)
			switch x := recv.(type) {
			case string:
				var b strings.Builder
				b.WriteString(x)
				for _, arg := range args {
					b.WriteString(Stringify(ev.eval(f, arg)))
				}
				return b.String()
			case []any:
				out := append([]any(nil), x...)
				for _, arg := range args {
					v := ev.eval(f, arg)
					if arr, ok := v.([]any); ok {
						out = append(out, arr...)
					} else {
						out = append(out, v)
					}
				}
				return out
			}
		case prop == "stringify" && src.Text(objNode) == "JSON" && len(args) > 0:
			return ev.eval(f, args[0])
		}
	}

	if callee != nil && callee.Kind() == "identifier" && src.Text(callee) == "String" && len(args) == 1 {
		if f.src.Scopes().Resolve(callee) == nil {
			v := ev.eval(f, args[0])
			if IsUnresolved(v) {
				return v
			}
			return Stringify(v)
		}
	}

	if fn, ok := ev.eval(f, callee).(*funcRef); ok {
		if v, ok := ev.invoke(f, fn, args); ok {
			return v
		}
	}
	return fmt.Sprintf(unresolvedCall, shorten(src.Text(callee)))
}

// invoke evaluates a call to a local function whose result is a single
// expression: an arrow body or a lone return statement. Parameters are
// bound to the arguments evaluated in the caller's frame.
func (ev *evaluation) invoke(caller *frame, fn *funcRef, args []*sitter.Node) (any, bool) {
	result := returnedExpression(fn.node)
	if result == nil {
		return nil, false
	}
	callee := fn.f
	var bound []bindingKey
	for i, param := range parser.Params(fn.node) {
		target := param
		if param.Kind() == "assignment_pattern" {
			target = param.ChildByFieldName("left")
		}
		if target == nil || target.Kind() != "identifier" {
			continue
		}
		key := bindingKey{src: callee.src, key: parser.Key(target)}
		if _, exists := ev.overrides[key]; exists {
			continue
		}
		if i < len(args) {
			ev.overrides[key] = ev.eval(caller, args[i])
			bound = append(bound, key)
		}
	}
	// Locals may depend on the bound parameters; memoized values must not
	// cross this call.
	memo := ev.memo
	if len(bound) > 0 {
		ev.memo = make(map[bindingKey]any)
	}
	defer func() {
		ev.memo = memo
		for _, key := range bound {
			delete(ev.overrides, key)
		}
	}()
	return ev.eval(callee, result), true
}

// returnedExpression returns the expression a function returns when its
// body is a concise arrow body or ends in a return statement.
func returnedExpression(fn *sitter.Node) *sitter.Node {
	body := parser.FunctionBody(fn)
	if body == nil {
		return nil
	}
	if body.Kind() != "statement_block" {
		return body
	}
	stmts := parser.NamedChildren(body)
	if len(stmts) == 0 {
		return nil
	}
	last := stmts[len(stmts)-1]
	if last.Kind() != "return_statement" {
		return nil
	}
	ret := parser.NamedChildren(last)
	if len(ret) == 0 {
		return nil
	}
	return ret[0]
}

func (ev *evaluation) newExpr(f *frame, node *sitter.Node) any {
	ctor := parser.Unwrap(node.ChildByFieldName("constructor"))
	args := parser.CallArgs(node)
	name := f.src.Text(ctor)
	switch name {
	case "URL", "Headers":
		if len(args) == 0 {
			if name == "Headers" {
				return map[string]any{}
			}
			return Unresolved("URL")
		}
		return ev.eval(f, args[0])
	}
	return fmt.Sprintf(unresolvedCall, "new "+shorten(name))
}

func (ev *evaluation) binary(f *frame, node *sitter.Node) any {
	opNode := node.ChildByFieldName("operator")
	op := ""
	if opNode != nil {
		op = f.src.Text(opNode)
	}
	left := ev.eval(f, node.ChildByFieldName("left"))

	switch op {
	case "||":
		if t, known := truthy(left); known && t {
			return left
		}
		return ev.eval(f, node.ChildByFieldName("right"))
	case "??":
		if left != nil && !IsUnresolved(left) {
			return left
		}
		return ev.eval(f, node.ChildByFieldName("right"))
	case "&&":
		if t, known := truthy(left); known && !t {
			return left
		}
		return ev.eval(f, node.ChildByFieldName("right"))
	}

	right := ev.eval(f, node.ChildByFieldName("right"))
	if IsUnresolved(left) || IsUnresolved(right) {
		return fmt.Sprintf(unresolvedBinary, op)
	}
	switch op {
	case "+":
		ln, lok := left.(float64)
		rn, rok := right.(float64)
		if lok && rok {
			return ln + rn
		}
		if isPrimitive(left) && isPrimitive(right) {
			return Stringify(left) + Stringify(right)
		}
	case "-", "*", "/", "%":
		ln, lok := left.(float64)
		rn, rok := right.(float64)
		if !lok || !rok {
			break
		}
		switch op {
		case "-":
			return ln - rn
		case "*":
			return ln * rn
		case "/":
			return ln / rn
		case "%":
			return math.Mod(ln, rn)
		}
	case "===", "==":
		if isPrimitive(left) && isPrimitive(right) {
			return left == right
		}
	case "!==", "!=":
		if isPrimitive(left) && isPrimitive(right) {
			return left != right
		}
	}
	return fmt.Sprintf(unresolvedBinary, op)
}

func (ev *evaluation) unary(f *frame, node *sitter.Node) any {
	opNode := node.ChildByFieldName("operator")
	argNode := node.ChildByFieldName("argument")
	op := ""
	if opNode != nil {
		op = f.src.Text(opNode)
	}
	if op == "void" {
		return nil
	}
	arg := ev.eval(f, argNode)
	switch op {
	case "!":
		if t, known := truthy(arg); known {
			return !t
		}
	case "-":
		if n, ok := arg.(float64); ok {
			return -n
		}
	case "+":
		if n, ok := arg.(float64); ok {
			return n
		}
		if s, ok := arg.(string); ok && !IsUnresolved(s) {
			if n, ok := parser.ParseNumber(s); ok {
				return n
			}
		}
	}
	return fmt.Sprintf(unsupportedNode, "unary_expression "+op)
}

func isPrimitive(v any) bool {
	switch x := v.(type) {
	case nil, bool, float64:
		return true
	case string:
		return !IsUnresolved(x)
	}
	return false
}

// shorten keeps callee text in placeholders readable.
func shorten(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	const limit = 60
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
