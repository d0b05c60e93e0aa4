package graph

import (
	"reflect"
	"testing"

	"chunkmap/internal/engine/chunks"
	"chunkmap/internal/engine/parser"
)

func TestCallers(t *testing.T) {
	set := chunks.NewSet()
	set.Add(&chunks.Chunk{ID: "1", Code: `function(e,t,n){ n.d(t, {go: function(){ return g }}); function g(x){} }`})
	set.Add(&chunks.Chunk{ID: "2", Code: `function(e,t,n){ var r = n(1); r.go(1); (0, r.go)(2); r.other(3) }`})
	set.Add(&chunks.Chunk{ID: "3", Code: `function(e,t,n){ const {go: run} = n(1); run(4) }`})
	set.Add(&chunks.Chunk{ID: "4", Code: `function(e,t,n){ go(5) }`})
	p := parser.NewParser(nil)
	Connect(set, p)
	mc := NewModuleCache(p, set, "test")
	defer mc.Close()

	var got []string
	for _, site := range Callers(mc, "1", []string{"go"}) {
		got = append(got, site.Chunk+":"+site.Module.Src.Text(parser.CallArgs(site.Call)[0]))
	}
	want := []string{"2:1", "2:2", "3:4"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if Callers(mc, "1", nil) != nil {
		t.Fatal("no names means no callers")
	}
	if imp := mc.Importers("1"); !reflect.DeepEqual(imp, []string{"2", "3"}) {
		t.Fatalf("unexpected importers %v", imp)
	}
}
