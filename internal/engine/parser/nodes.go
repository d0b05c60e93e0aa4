package parser

import (
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeKey identifies a node within one tree. tree-sitter hands out fresh
// *Node values on every traversal, so pointers cannot be compared.
type NodeKey struct {
	Start uint
	End   uint
	Kind  string
}

func Key(node *sitter.Node) NodeKey {
	if node == nil {
		return NodeKey{}
	}
	return NodeKey{Start: node.StartByte(), End: node.EndByte(), Kind: node.Kind()}
}

func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return Key(a) == Key(b)
}

func NamedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// Unwrap strips parentheses and reduces comma sequences to their last
// element, so `(0, r.Z)` yields `r.Z`.
func Unwrap(node *sitter.Node) *sitter.Node {
	for node != nil {
		switch node.Kind() {
		case "parenthesized_expression":
			children := NamedChildren(node)
			if len(children) == 0 {
				return node
			}
			node = children[len(children)-1]
		case "sequence_expression":
			children := NamedChildren(node)
			if len(children) == 0 {
				return node
			}
			node = children[len(children)-1]
		default:
			return node
		}
	}
	return nil
}

func IsFunction(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	switch node.Kind() {
	case "function_expression", "function", "function_declaration",
		"generator_function", "generator_function_declaration",
		"arrow_function", "method_definition":
		return true
	}
	return false
}

// Params returns the declared parameter nodes of a function-like node.
func Params(fn *sitter.Node) []*sitter.Node {
	if fn == nil {
		return nil
	}
	if single := fn.ChildByFieldName("parameter"); single != nil {
		return []*sitter.Node{single}
	}
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	return NamedChildren(params)
}

// FunctionBody returns the body of a function-like node: a statement_block,
// or the expression of a concise arrow function.
func FunctionBody(fn *sitter.Node) *sitter.Node {
	if fn == nil {
		return nil
	}
	return fn.ChildByFieldName("body")
}

// StringValue decodes a string literal node.
func (s *Source) StringValue(node *sitter.Node) (string, bool) {
	if node == nil || node.Kind() != "string" {
		return "", false
	}
	raw := s.Text(node)
	if len(raw) < 2 {
		return "", false
	}
	return UnquoteJS(raw[1 : len(raw)-1]), true
}

// NumberValue decodes a numeric literal node.
func (s *Source) NumberValue(node *sitter.Node) (float64, bool) {
	if node == nil || node.Kind() != "number" {
		return 0, false
	}
	return ParseNumber(s.Text(node))
}

// LiteralKey returns the text of a string or number literal as a key, the
// way object keys and module ids are compared.
func (s *Source) LiteralKey(node *sitter.Node) (string, bool) {
	node = Unwrap(node)
	if node == nil {
		return "", false
	}
	switch node.Kind() {
	case "string":
		return s.StringValue(node)
	case "number":
		if f, ok := s.NumberValue(node); ok {
			return FormatNumber(f), true
		}
		return s.Text(node), true
	}
	return "", false
}

// PropertyKey returns the static name of an object key or member property.
func (s *Source) PropertyKey(node *sitter.Node) (string, bool) {
	if node == nil {
		return "", false
	}
	switch node.Kind() {
	case "property_identifier", "identifier", "shorthand_property_identifier",
		"shorthand_property_identifier_pattern", "private_property_identifier":
		return s.Text(node), true
	case "string", "number":
		return s.LiteralKey(node)
	case "computed_property_name":
		children := NamedChildren(node)
		if len(children) == 1 {
			return s.LiteralKey(children[0])
		}
	}
	return "", false
}

// MemberParts splits `a.b` / `a["b"]` into its object node and static
// property name.
func (s *Source) MemberParts(node *sitter.Node) (*sitter.Node, string, bool) {
	node = Unwrap(node)
	if node == nil {
		return nil, "", false
	}
	switch node.Kind() {
	case "member_expression":
		name, ok := s.PropertyKey(node.ChildByFieldName("property"))
		return node.ChildByFieldName("object"), name, ok
	case "subscript_expression":
		name, ok := s.LiteralKey(node.ChildByFieldName("index"))
		return node.ChildByFieldName("object"), name, ok
	}
	return nil, "", false
}

// CallArgs returns the argument expressions of a call or new expression.
func CallArgs(call *sitter.Node) []*sitter.Node {
	if call == nil {
		return nil
	}
	args := call.ChildByFieldName("arguments")
	if args == nil || args.Kind() != "arguments" {
		return nil
	}
	return NamedChildren(args)
}

// Ancestor returns the nearest ancestor accepted by match.
func Ancestor(node *sitter.Node, match func(*sitter.Node) bool) *sitter.Node {
	if node == nil {
		return nil
	}
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		if match(cur) {
			return cur
		}
	}
	return nil
}

// Contains reports whether inner lies within outer's byte range.
func Contains(outer, inner *sitter.Node) bool {
	if outer == nil || inner == nil {
		return false
	}
	return inner.StartByte() >= outer.StartByte() && inner.EndByte() <= outer.EndByte()
}

func ParseNumber(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "n")
	if text == "" {
		return 0, false
	}
	if i, err := strconv.ParseInt(text, 0, 64); err == nil {
		return float64(i), true
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FormatNumber renders a number the way JavaScript's String(n) does for the
// common cases.
func FormatNumber(f float64) string {
	if f == float64(int64(f)) && f < 1e21 && f > -1e21 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// UnquoteJS decodes the escape sequences of a JavaScript string body.
func UnquoteJS(body string) string {
	if !strings.ContainsRune(body, '\\') {
		return body
	}
	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch != '\\' || i+1 >= len(body) {
			b.WriteByte(ch)
			continue
		}
		i++
		switch esc := body[i]; esc {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
			// line continuation
		case 'x':
			if i+2 < len(body) {
				if v, err := strconv.ParseUint(body[i+1:i+3], 16, 8); err == nil {
					b.WriteRune(rune(v))
					i += 2
					continue
				}
			}
			b.WriteByte(esc)
		case 'u':
			if r, width, ok := decodeUnicodeEscape(body[i+1:]); ok {
				b.WriteRune(r)
				i += width
				continue
			}
			b.WriteByte(esc)
		default:
			b.WriteByte(esc)
		}
	}
	return b.String()
}

func decodeUnicodeEscape(rest string) (rune, int, bool) {
	if strings.HasPrefix(rest, "{") {
		end := strings.IndexByte(rest, '}')
		if end < 2 {
			return 0, 0, false
		}
		v, err := strconv.ParseUint(rest[1:end], 16, 32)
		if err != nil || !utf8.ValidRune(rune(v)) {
			return 0, 0, false
		}
		return rune(v), end + 1, true
	}
	if len(rest) < 4 {
		return 0, 0, false
	}
	v, err := strconv.ParseUint(rest[:4], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	return rune(v), 4, true
}
