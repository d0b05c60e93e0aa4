package resolver

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"chunkmap/internal/engine/chunks"
	"chunkmap/internal/engine/graph"
	"chunkmap/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// lastExpression returns the expression of the final statement.
func lastExpression(t *testing.T, src *parser.Source) *sitter.Node {
	t.Helper()
	stmts := parser.NamedChildren(src.Root)
	if len(stmts) == 0 {
		t.Fatal("empty program")
	}
	last := stmts[len(stmts)-1]
	if last.Kind() != "expression_statement" {
		t.Fatalf("last statement is %s", last.Kind())
	}
	return parser.NamedChildren(last)[0]
}

func resolveLast(t *testing.T, code string) any {
	t.Helper()
	src, err := parser.NewParser(nil).Parse("test.js", []byte(code))
	if err != nil {
		t.Fatalf("parse %q: %v", code, err)
	}
	defer src.Close()
	return New(nil).Resolve(Scope{Src: src}, lastExpression(t, src))
}

func TestResolve_Rules(t *testing.T) {
	tests := []struct {
		name string
		code string
		want any
	}{
		{"string", `"/api"`, "/api"},
		{"escaped string", `"aA\n"`, "aA\n"},
		{"number", `42`, 42.0},
		{"hex number", `0x10`, 16.0},
		{"boolean", `true`, true},
		{"null", `null`, nil},
		{"undefined", `undefined`, nil},
		{"template", "var id = 5; `/api/${id}/x`", "/api/5/x"},
		{"template with placeholder", "`/api/${e}`", "/api/[unresolved: e]"},
		{"unbound identifier", `e`, "[unresolved: e]"},
		{"concat keeps placeholder", `"/api/".concat(e,"/members")`, "/api/[unresolved: e]/members"},
		{"concat numbers", `"/v".concat(1, "/", 2.5)`, "/v1/2.5"},
		{"member on object", `var c = {base: "/b"}; c.base`, "/b"},
		{"subscript on object", `var c = {"x-y": 1}; c["x-y"]`, 1.0},
		{"computed subscript", `var k = "base", c = {base: "/b"}; c[k]`, "/b"},
		{"missing key", `var c = {}; c.nope`, nil},
		{"member on unresolved", `e.x`, "[unresolved member expression]"},
		{"array index", `var a = ["x", "y"]; a[1]`, "y"},
		{"array length", `var a = [1, 2, 3]; a.length`, 3.0},
		{"toString", `var u = 12; u.toString()`, "12"},
		{"unknown call", `getUrl(1)`, "[unresolved call: getUrl]"},
		{"member call", `api.client.get("/x")`, "[unresolved call: api.client.get]"},
		{"new URL", `new URL("/a", location.origin)`, "/a"},
		{"new other", `new Foo()`, "[unresolved call: new Foo]"},
		{"or fallback", `a || "/fallback"`, "/fallback"},
		{"or keeps left", `"/left" || "/right"`, "/left"},
		{"or falsy left", `"" || "/right"`, "/right"},
		{"nullish fallback", `a ?? "/n"`, "/n"},
		{"nullish null", `null ?? "/n"`, "/n"},
		{"and", `!0 && "/x"`, "/x"},
		{"ternary consequent", `c ? "/a" : "/b"`, "/a"},
		{"ternary fallback", `c ? e : "/alt"`, "/alt"},
		{"add numbers", `1 + 2`, 3.0},
		{"add strings", `"/a" + 1`, "/a1"},
		{"add placeholder", `e + "/x"`, "[unresolved binary expression: +]"},
		{"subtract", `10 - 4`, 6.0},
		{"strict equality", `"a" === "a"`, true},
		{"not zero", `!0`, true},
		{"not one", `!1`, false},
		{"negative", `-5`, -5.0},
		{"void", `void 0`, nil},
		{"regex unsupported", `/ab+/`, "[unsupported node type: regex]"},
		{"parenthesized sequence", `(0, "/seq")`, "/seq"},
		{"destructured", `const {api: {base}} = {api: {base: "/v1"}}; base`, "/v1"},
		{"array destructured", `const [, second] = ["a", "b"]; second`, "b"},
		{"local function", `function u(p){return "/users/" + p} u(3)`, "/users/3"},
		{"arrow function", `const u = (p, q = "x") => p + q; u("/a/")`, "/a/x"},
		{"self reference", `var a = b, b = a; a`, "[unresolved: a]"},
		{"late assignment", `var a; a = "/late"; a`, "/late"},
		{"json stringify", `JSON.stringify({a: 1})`, map[string]any{"a": 1.0}},
		{"string call", `String(5)`, "5"},
		{"array", `[1, "a", ...[true]]`, []any{1.0, "a", true}},
		{"object spread", `var h = {a: 1}, k = "b"; ({...h, [k]: 2, c})`, map[string]any{"a": 1.0, "b": 2.0, "c": "[unresolved: c]"}},
		{"unbound param", `function f(p){ return p } f`, "[unresolved function: f]"},
		{"shared binding", `var s = {k: 1}, t = {l: s, r: s}; t`, map[string]any{"l": map[string]any{"k": 1.0}, "r": map[string]any{"k": 1.0}}},
		{"locals per call", `function f(x){ var u = "/a/" + x; return u } f(1) + f(2)`, "/a/1/a/2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveLast(t, tt.code)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("resolve(%s) = %#v, want %#v", tt.code, got, tt.want)
			}
		})
	}
}

func TestResolve_InnermostBindingWins(t *testing.T) {
	src, err := parser.NewParser(nil).Parse("test.js", []byte(`
var url = "/outer";
function f() { var url = "/inner"; return url; }
`))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	ret := parser.FindAll(src.Root, "return_statement")[0]
	got := New(nil).Resolve(Scope{Src: src}, parser.NamedChildren(ret)[0])
	if got != "/inner" {
		t.Fatalf("expected /inner, got %v", got)
	}
}

func TestResolveWith_Overrides(t *testing.T) {
	src, err := parser.NewParser(nil).Parse("test.js", []byte(`function send(body, path = "/default") { return fetch(path, {body: body}) }`))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	fn := parser.FindAll(src.Root, "function_declaration")[0]
	params := parser.Params(fn)
	obj := parser.FindAll(src.Root, "object")[0]
	r := New(nil)

	got := r.Resolve(Scope{Src: src}, obj)
	if !reflect.DeepEqual(got, map[string]any{"body": "[unresolved: body]"}) {
		t.Fatalf("without overrides got %#v", got)
	}
	got = r.ResolveWith(Scope{Src: src}, obj, Overrides{parser.Key(params[0]): map[string]any{"name": "x"}})
	want := map[string]any{"body": map[string]any{"name": "x"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("with overrides got %#v", got)
	}

	path := parser.CallArgs(parser.FindAll(src.Root, "call_expression")[0])[0]
	if got := r.Resolve(Scope{Src: src}, path); got != "/default" {
		t.Fatalf("expected default parameter value, got %v", got)
	}
}

func newModules(t *testing.T, codes ...[2]string) (*graph.ModuleCache, *chunks.Set) {
	t.Helper()
	set := chunks.NewSet()
	for _, c := range codes {
		set.Add(&chunks.Chunk{ID: c[0], Code: c[1]})
	}
	p := parser.NewParser(nil)
	graph.Connect(set, p)
	mc := graph.NewModuleCache(p, set, "test")
	t.Cleanup(mc.Close)
	return mc, set
}

func fetchArg(t *testing.T, mc *graph.ModuleCache, id string) (Scope, *sitter.Node) {
	t.Helper()
	m, ok := mc.Get(id)
	if !ok {
		t.Fatalf("chunk %s not parsed", id)
	}
	for _, call := range parser.FindAll(m.Src.Root, "call_expression") {
		if m.Src.Text(call.ChildByFieldName("function")) == "fetch" {
			return Scope{Src: m.Src, Module: m, ChunkID: id}, parser.CallArgs(call)[0]
		}
	}
	t.Fatalf("no fetch call in chunk %s", id)
	return Scope{}, nil
}

func TestResolve_CrossChunkExport(t *testing.T) {
	mc, _ := newModules(t,
		[2]string{"9", `function(e,t,n){n.d(t,{Z:function(){return r}});var r={base:"/api",v:2}}`},
		[2]string{"7", `function(e,t,n){var o=n(9); fetch(o.Z.base + "/users")}`},
		[2]string{"8", `function(e,t,n){n(9); fetch(Z.base + "/v" + Z.v)}`},
	)
	r := New(mc)

	scope, arg := fetchArg(t, mc, "7")
	if got := r.Resolve(scope, arg); got != "/api/users" {
		t.Fatalf("expected /api/users, got %v", got)
	}
	scope, arg = fetchArg(t, mc, "8")
	if got := r.Resolve(scope, arg); got != "/api/v2" {
		t.Fatalf("expected /api/v2 through imported export, got %v", got)
	}
	if got := r.ResolveExport("9", "Z"); !reflect.DeepEqual(got, map[string]any{"base": "/api", "v": 2.0}) {
		t.Fatalf("unexpected export value %#v", got)
	}
	if got := r.ResolveExport("9", "missing"); got != "[unresolved: missing]" {
		t.Fatalf("unexpected missing export %v", got)
	}
}

func TestResolve_CrossChunkCycleTerminates(t *testing.T) {
	mc, _ := newModules(t,
		[2]string{"1", `function(e,t,n){n.d(t,{A:function(){return n(2).B}})}`},
		[2]string{"2", `function(e,t,n){n.d(t,{B:function(){return n(1).A}}); fetch(n(1).A)}`},
	)
	scope, arg := fetchArg(t, mc, "2")
	got := New(mc).Resolve(scope, arg)
	s, ok := got.(string)
	if !ok || !IsUnresolved(s) {
		t.Fatalf("expected placeholder for cyclic export, got %#v", got)
	}
}

func TestResolve_RequireWithoutModuleCache(t *testing.T) {
	mc, _ := newModules(t, [2]string{"7", `function(e,t,n){fetch(n(3).Z)}`})
	scope, arg := fetchArg(t, mc, "7")
	got := New(nil).Resolve(scope, arg)
	if got != "[unresolved member expression]" {
		t.Fatalf("unexpected %v", got)
	}
	whole := New(nil).Resolve(scope, parser.NamedChildren(arg)[0])
	if s, _ := whole.(string); !strings.HasPrefix(s, "[unresolved module: 3") {
		t.Fatalf("module reference should finalize to a placeholder, got %v", whole)
	}
}

func TestPlaceholderHelpers(t *testing.T) {
	s := "/api/[unresolved: id]/x/[unresolved: tab]"
	if !ContainsUnresolved(s) {
		t.Fatal("expected placeholder")
	}
	if got := strings.Join(PlaceholderNames(s), ","); got != "id,tab" {
		t.Fatalf("unexpected names %s", got)
	}
	out := Substitute(s, func(name string) (any, bool) {
		if name == "id" {
			return 7.0, true
		}
		return nil, false
	})
	if out != "/api/7/x/[unresolved: tab]" {
		t.Fatalf("unexpected substitution %s", out)
	}
	if IsUnresolved("/plain") || !IsUnresolved("[unsupported node type: x]") {
		t.Fatal("IsUnresolved misclassified")
	}
}

// sharedObjects declares a0 = {k: 1} and a_i = {l: a_{i-1}, r: a_{i-1}}, so
// a_n reaches a0 along 2^n paths.
func sharedObjects(n int) string {
	var b strings.Builder
	b.WriteString("var a0 = {k: 1};\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "var a%d = {l: a%d, r: a%d};\n", i, i-1, i-1)
	}
	fmt.Fprintf(&b, "a%d", n)
	return b.String()
}

func TestResolve_SharedBindingsEvaluatedOnce(t *testing.T) {
	const levels = 40
	src, err := parser.NewParser(nil).Parse("dag.js", []byte(sharedObjects(levels)))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	got := New(nil, WithMaxDepth(1000)).Resolve(Scope{Src: src}, lastExpression(t, src))
	for i := 0; i < levels; i++ {
		m, ok := got.(map[string]any)
		if !ok {
			t.Fatalf("level %d: expected object, got %#v", i, got)
		}
		got = m["r"]
	}
	if !reflect.DeepEqual(got, map[string]any{"k": 1.0}) {
		t.Fatalf("expected the innermost object, got %#v", got)
	}
}

func TestResolve_StepBudget(t *testing.T) {
	src, err := parser.NewParser(nil).Parse("dag.js", []byte(sharedObjects(40)))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	// The default depth cuts the chain, so nothing below the cut is
	// memoized and only the budget bounds the work.
	got := New(nil, WithMaxSteps(2000)).Resolve(Scope{Src: src}, lastExpression(t, src))
	if _, ok := got.(map[string]any); !ok {
		t.Fatalf("expected a partial object, got %#v", got)
	}
	if !hasPlaceholder(got) {
		t.Fatalf("expected placeholders once the budget is spent, got %#v", got)
	}
}

func hasPlaceholder(v any) bool {
	switch x := v.(type) {
	case string:
		return IsUnresolved(x)
	case map[string]any:
		for _, e := range x {
			if hasPlaceholder(e) {
				return true
			}
		}
	}
	return false
}
