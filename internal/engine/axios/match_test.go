package axios

import (
	"testing"

	"chunkmap/internal/engine/graph"
	"chunkmap/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func module(t *testing.T, code string) *graph.Module {
	t.Helper()
	src, err := parser.NewParser(nil).ParseChunk("test", code)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	t.Cleanup(src.Close)
	return graph.AnalyzeModule(src)
}

func firstCreate(m *graph.Module) *sitter.Node {
	var found *sitter.Node
	parser.Walk(m.Src.Root, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.Kind() == "call_expression" {
			if _, prop, ok := m.Src.MemberParts(n.ChildByFieldName("function")); ok && prop == "create" {
				found = n
				return false
			}
		}
		return true
	})
	return found
}

func TestMatchCreation(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		pattern string
	}{
		{"require member", `function(e,t,n){ var i = n(3).Z.create() }`, "require-member"},
		{"bound require", `function(e,t,n){ var o = n(3); var i = o.Z.create({baseURL: "/api"}) }`, "import-ref"},
		{"destructured require", `function(e,t,n){ const {Z: ax} = n(3); const i = ax.create() }`, "import-ref"},
		{"named", `function(e,t,n){ const i = axios.create({}) }`, "identifier"},
		{"interop default", `function(e,t,n){ var r = n(3), o = n.n(r); var i = o.a.create(cfg) }`, "identifier"},
		{"denylisted global", `function(e,t,n){ var i = Object.create(null) }`, ""},
		{"too many args", `function(e,t,n){ var i = n(3).Z.create(a, b) }`, ""},
		{"literal arg on named factory", `function(e,t,n){ var i = store.create("x") }`, ""},
		{"require alias itself", `function(e,t,n){ var i = n.create() }`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := module(t, tt.code)
			call := firstCreate(m)
			if call == nil {
				t.Fatal("no create call in fixture")
			}
			c, ok := MatchCreation(m, call)
			if tt.pattern == "" {
				if ok {
					t.Fatalf("unexpected match %+v", c)
				}
				return
			}
			if !ok {
				t.Fatal("expected a match")
			}
			if c.Pattern != tt.pattern {
				t.Fatalf("expected pattern %s, got %s", tt.pattern, c.Pattern)
			}
		})
	}
}

func TestAssignedTo(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{`function(e,t,n){ const i = n(3).Z.create() }`, "i"},
		{`function(e,t,n){ var i; i = (0, n(3).Z.create()) }`, "i"},
		{`function(e,t,n){ use(n(3).Z.create()) }`, ""},
		{`function(e,t,n){ t.client = n(3).Z.create() }`, ""},
	}
	for _, tt := range tests {
		m := module(t, tt.code)
		got := AssignedTo(firstCreate(m))
		if tt.want == "" {
			if got != nil {
				t.Errorf("%s: expected no target, got %s", tt.code, m.Src.Text(got))
			}
			continue
		}
		if got == nil || m.Src.Text(got) != tt.want {
			t.Errorf("%s: expected %s", tt.code, tt.want)
		}
	}
}

func TestWrapperCall(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{`(e) => api.get("/u/" + e)`, `api.get("/u/" + e)`},
		{`function(e){ return api.post("/u", e) }`, `api.post("/u", e)`},
		{`async (e) => await api.get("/a")`, `api.get("/a")`},
		{`function(e){ log(e); return (api.put("/p")) }`, `api.put("/p")`},
		{`function(e){ log(e) }`, ""},
		{`(e) => e + 1`, ""},
	}
	for _, tt := range tests {
		src, err := parser.NewParser(nil).ParseChunk("w", tt.code)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		fn := parser.Unwrap(parser.NamedChildren(parser.NamedChildren(src.Root)[0])[0])
		call, ok := WrapperCall(fn)
		if tt.want == "" {
			if ok {
				t.Errorf("%s: unexpected call %s", tt.code, src.Text(call))
			}
		} else if !ok || src.Text(call) != tt.want {
			t.Errorf("%s: expected %s", tt.code, tt.want)
		}
		src.Close()
	}
}

func TestMatchUse(t *testing.T) {
	m := module(t, `function(e,t,n){
		const i = n(3).Z.create();
		const api = i;
		const {get, post: send} = api;
		i.get("/a");
		(0, api.post)("/b", {});
		(flag ? i.put : i.patch)("/c", 1);
		get("/d");
		send("/e");
		i({url: "/f"});
		i.interceptors.request.use(x);
		other.get("/g");
	}`)
	in := newInstance(m, toSet(DefaultVerbs), newRefSet())
	in.bindCreation(firstCreate(m))
	in.collectAliases()

	var got []string
	parser.Walk(m.Fn, func(n *sitter.Node) bool {
		if u, ok := MatchUse(in, n); ok {
			got = append(got, u.Pattern+":"+u.Verb)
		}
		return true
	})
	want := []string{
		"member:get", "sequence:post", "conditional:put",
		"destructured:get", "destructured:post", "direct:request",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func toSet(verbs []string) map[string]bool {
	out := make(map[string]bool, len(verbs))
	for _, v := range verbs {
		out[v] = true
	}
	return out
}
