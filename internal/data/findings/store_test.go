package findings

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"chunkmap/internal/engine/calls"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "chunkmap.db"), time.Second)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveRunAndListCalls(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	found := []calls.DiscoveredAPICall{
		{
			URL: "/api/users", Method: "UNKNOWN", ChunkID: "7", FunctionFile: "main.js",
			FunctionFileLine: 1, Source: calls.SourceFetch,
		},
		{
			URL: "https://api.example.com/v1/items", Method: "POST", ChunkID: "6", FunctionFile: "main.js",
			FunctionFileLine: 8, CalledFrom: "9", Source: calls.SourceAxios,
			Headers: map[string]string{"X-App": "web"},
			Body:    map[string]any{"id": 1.0, "tags": []any{"a"}},
		},
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := store.SaveRun(ctx, Run{Dir: "/dl", StartedAt: base, Duration: 1500 * time.Millisecond, ChunkCount: 12, FetchChunks: 1, AxiosClients: 1}, found)
	if err != nil {
		t.Fatalf("save run: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated run id")
	}

	run, err := store.LatestRun(ctx)
	if err != nil {
		t.Fatalf("latest run: %v", err)
	}
	if run.ID != id || run.Dir != "/dl" || run.ChunkCount != 12 || run.CallCount != 2 {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.Duration != 1500*time.Millisecond || !run.StartedAt.Equal(base) {
		t.Fatalf("timing did not roundtrip: %+v", run)
	}

	got, err := store.ListCalls(ctx, id)
	if err != nil {
		t.Fatalf("list calls: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(got))
	}
	if got[0].URL != "/api/users" || got[0].Body != nil || len(got[0].Headers) != 0 {
		t.Fatalf("unexpected first call %+v", got[0])
	}
	if got[1].CalledFrom != "9" || got[1].Headers["X-App"] != "web" {
		t.Fatalf("unexpected second call %+v", got[1])
	}
	if !reflect.DeepEqual(got[1].Body, found[1].Body) {
		t.Fatalf("body did not roundtrip: %#v", got[1].Body)
	}
}

func TestStore_LatestRunOrdersByStart(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := store.SaveRun(ctx, Run{ID: "late", Dir: "a", StartedAt: base.Add(time.Hour)}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveRun(ctx, Run{ID: "early", Dir: "a", StartedAt: base}, nil); err != nil {
		t.Fatal(err)
	}
	run, err := store.LatestRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if run.ID != "late" {
		t.Fatalf("expected latest run 'late', got %q", run.ID)
	}
}

func TestStore_SaveRunReplacesCalls(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	one := []calls.DiscoveredAPICall{{URL: "/a", Method: "GET", ChunkID: "1", Source: calls.SourceAxios}}

	if _, err := store.SaveRun(ctx, Run{ID: "r1"}, append(one, one...)); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveRun(ctx, Run{ID: "r1"}, one); err != nil {
		t.Fatal(err)
	}
	got, err := store.ListCalls(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected resave to replace calls, got %d", len(got))
	}
}

func TestStore_LatestRunEmpty(t *testing.T) {
	store := openStore(t)
	if _, err := store.LatestRun(context.Background()); !errors.Is(err, ErrNoRuns) {
		t.Fatalf("expected ErrNoRuns, got %v", err)
	}
}

func TestStore_OpenRejectsDirectoryPath(t *testing.T) {
	_, err := Open(t.TempDir(), 0)
	if err == nil {
		t.Fatal("expected open error for directory path")
	}
	if !strings.Contains(err.Error(), "is a directory") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_OpenCorruptDBPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunkmap.db")
	if err := os.WriteFile(path, []byte("this is not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path, 0)
	if err == nil {
		t.Fatal("expected sqlite open error")
	}
	lower := strings.ToLower(err.Error())
	if !strings.Contains(lower, "not a database") && !strings.Contains(lower, "schema") {
		t.Fatalf("expected schema/open error, got: %v", err)
	}
}

func TestEnsureSchema_DetectsNewerVersionDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunkmap.db")
	store, err := Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := store.db.Exec(`INSERT OR REPLACE INTO schema_migrations(version) VALUES (?)`, SchemaVersion+1); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open(driverName, "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	err = EnsureSchema(db)
	if err == nil {
		t.Fatal("expected drift error")
	}
	if !strings.Contains(err.Error(), "newer than supported") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsCorruptError(t *testing.T) {
	if !IsCorruptError(errors.New("database disk image is malformed")) {
		t.Fatal("expected malformed sqlite message to be treated as corrupt")
	}
}
