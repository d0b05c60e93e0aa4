package parser

import (
	"chunkmap/internal/core/errors"
	"testing"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func mustParse(t *testing.T, code string) *Source {
	t.Helper()
	p := NewParser(nil)
	src, err := p.Parse("test.js", []byte(code))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	t.Cleanup(src.Close)
	return src
}

func firstOfKind(t *testing.T, src *Source, kind string) *sitter.Node {
	t.Helper()
	nodes := FindAll(src.Root, kind)
	if len(nodes) == 0 {
		t.Fatalf("no %s node in %q", kind, src.Code)
	}
	return nodes[0]
}

func TestParse_JavaScript(t *testing.T) {
	src := mustParse(t, "const a = fetch('/x');")
	if src.Language != LangJavaScript {
		t.Fatalf("expected javascript grammar, got %s", src.Language)
	}
	call := firstOfKind(t, src, "call_expression")
	if got := src.Text(call.ChildByFieldName("function")); got != "fetch" {
		t.Fatalf("expected callee fetch, got %q", got)
	}
	if src.Line(call) != 1 {
		t.Fatalf("expected line 1, got %d", src.Line(call))
	}
}

func TestParse_FallsBackToTSX(t *testing.T) {
	p := NewParser(nil)
	src, err := p.Parse("typed.js", []byte("const a: string = 'x' as string;"))
	if err != nil {
		t.Fatalf("expected TSX fallback to parse, got %v", err)
	}
	defer src.Close()
	if src.Language != LangTSX {
		t.Fatalf("expected tsx grammar, got %s", src.Language)
	}
}

func TestParse_SyntaxError(t *testing.T) {
	p := NewParser(nil)
	_, err := p.Parse("broken.js", []byte("function ( {"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !errors.IsCode(err, errors.CodeParse) {
		t.Fatalf("expected PARSE_ERROR, got %v", err)
	}

	partial := NewParser(nil, WithPartialTrees(true))
	src, err := partial.Parse("broken.js", []byte("function ( {"))
	if err != nil {
		t.Fatalf("partial parser should accept broken input: %v", err)
	}
	src.Close()
}

func TestParseChunk_OffsetsAreRelativeToChunk(t *testing.T) {
	p := NewParser(nil)
	code := "function(e, t, n) { n(12); }"
	src, err := p.ParseChunk("7", code)
	if err != nil {
		t.Fatalf("parse chunk: %v", err)
	}
	defer src.Close()

	fn := firstOfKind(t, src, "function_expression")
	if src.Offset(fn) != 0 {
		t.Fatalf("expected function at offset 0, got %d", src.Offset(fn))
	}
	if got := len(Params(fn)); got != 3 {
		t.Fatalf("expected 3 params, got %d", got)
	}
	call := firstOfKind(t, src, "call_expression")
	if want := len("function(e, t, n) { "); src.Offset(call) != want {
		t.Fatalf("expected call at offset %d, got %d", want, src.Offset(call))
	}
}

func TestParseChunk_ErrorCarriesChunkID(t *testing.T) {
	p := NewParser(nil)
	_, err := p.ParseChunk("42", "function(e) { return ( }")
	if err == nil {
		t.Fatal("expected error")
	}
	de, ok := err.(*errors.DomainError)
	if !ok {
		t.Fatalf("expected DomainError, got %T", err)
	}
	if de.Context[errors.CtxChunk] != "42" {
		t.Fatalf("expected chunk context 42, got %v", de.Context)
	}
}

func TestMemberParts(t *testing.T) {
	src := mustParse(t, `a.b; a["c"]; a[0]; a[x];`)
	tests := []struct {
		index int
		name  string
		ok    bool
	}{
		{0, "b", true},
		{1, "c", true},
		{2, "0", true},
		{3, "", false},
	}
	stmts := NamedChildren(src.Root)
	for _, tt := range tests {
		expr := NamedChildren(stmts[tt.index])[0]
		obj, name, ok := src.MemberParts(expr)
		if ok != tt.ok || name != tt.name {
			t.Errorf("stmt %d: got (%q, %v), want (%q, %v)", tt.index, name, ok, tt.name, tt.ok)
		}
		if obj == nil || src.Text(obj) != "a" {
			t.Errorf("stmt %d: expected object a", tt.index)
		}
	}
}

func TestUnwrap(t *testing.T) {
	src := mustParse(t, "(0, r.Z)(1);")
	call := firstOfKind(t, src, "call_expression")
	callee := Unwrap(call.ChildByFieldName("function"))
	if callee.Kind() != "member_expression" || src.Text(callee) != "r.Z" {
		t.Fatalf("expected r.Z, got %s %q", callee.Kind(), src.Text(callee))
	}
}

func TestUnquoteJS(t *testing.T) {
	tests := map[string]string{
		`plain`:       "plain",
		`a\nb`:        "a\nb",
		`\x41B`:       "AB",
		`\u{1F600}`:   "\U0001F600",
		`it\'s`:       "it's",
		`back\\slash`: `back\slash`,
		`bad\xZZ`:     "badxZZ",
		`trailing\`:   `trailing\`,
	}
	for in, want := range tests {
		if got := UnquoteJS(in); got != want {
			t.Errorf("UnquoteJS(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseAndFormatNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12", "12"},
		{"0x1F", "31"},
		{"1.5", "1.5"},
		{"1e3", "1000"},
		{"1_000", "1000"},
	}
	for _, tt := range tests {
		f, ok := ParseNumber(tt.in)
		if !ok {
			t.Errorf("ParseNumber(%q) failed", tt.in)
			continue
		}
		if got := FormatNumber(f); got != tt.want {
			t.Errorf("FormatNumber(ParseNumber(%q)) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if _, ok := ParseNumber("abc"); ok {
		t.Error("expected abc to be rejected")
	}
}

func TestDispatcher_StopsDescending(t *testing.T) {
	src := mustParse(t, "f(g(1)); h();")
	var seen []string
	d := NewDispatcher(map[string]NodeHandler{
		"call_expression": func(ctx *WalkContext, node *sitter.Node) bool {
			seen = append(seen, ctx.Source.Text(node.ChildByFieldName("function")))
			return true
		},
	})
	d.Walk(&WalkContext{Source: src}, src.Root)
	if len(seen) != 2 || seen[0] != "f" || seen[1] != "h" {
		t.Fatalf("expected [f h], got %v", seen)
	}
}

func TestGrammarLoader_Order(t *testing.T) {
	gl := NewGrammarLoader()
	order := gl.Order()
	if len(order) != 2 || order[0] != LangJavaScript || order[1] != LangTSX {
		t.Fatalf("expected [javascript tsx], got %v", order)
	}
	for _, id := range order {
		if _, ok := gl.Language(id); !ok {
			t.Errorf("grammar %s listed but not loaded", id)
		}
	}
	order[0] = "mutated"
	if gl.Order()[0] != LangJavaScript {
		t.Fatal("Order must return a copy")
	}
	if _, ok := gl.Language("python"); ok {
		t.Fatal("only bundle grammars are linked")
	}
}
