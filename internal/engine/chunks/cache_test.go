package chunks

import (
	"path/filepath"
	"strings"
	"testing"

	"chunkmap/internal/core/errors"
)

func TestSaveLoad_PreservesOrderAndFields(t *testing.T) {
	set := NewSet()
	set.Add(&Chunk{ID: "10", File: "a.js", Code: "function(){}", Imports: []string{"2"}, ContainsFetch: true})
	set.Add(&Chunk{ID: "2", File: "a.js", Code: "function(e,t,n){}", Exports: []string{"Z"}, IsAxiosClient: true, Description: "client"})

	path := filepath.Join(t.TempDir(), "output.json")
	if err := Save(path, set); err != nil {
		t.Fatal(err)
	}
	if !Exists(path) {
		t.Fatal("expected artifact to exist")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(loaded.IDs(), ","); got != "10,2" {
		t.Fatalf("expected insertion order 10,2 got %s", got)
	}
	a, _ := loaded.Get("10")
	if !a.ContainsFetch || !a.HasImport("2") {
		t.Errorf("chunk 10 lost fields: %+v", a)
	}
	b, _ := loaded.Get("2")
	if !b.IsAxiosClient || !b.HasExport("Z") || b.Description != "client" {
		t.Errorf("chunk 2 lost fields: %+v", b)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.json"))
	if !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestSet_AddRejectsDuplicates(t *testing.T) {
	set := NewSet()
	if !set.Add(&Chunk{ID: "1"}) {
		t.Fatal("first add should succeed")
	}
	if set.Add(&Chunk{ID: "1", Code: "other"}) {
		t.Fatal("duplicate add should be rejected")
	}
	if set.Len() != 1 {
		t.Fatalf("expected 1 chunk, got %d", set.Len())
	}
	files := (&Set{}).Files()
	if len(files) != 0 {
		t.Fatalf("expected no files, got %v", files)
	}
}
