package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizePatternPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty", input: "", expected: ""},
		{name: "Dot", input: ".", expected: ""},
		{name: "Trim", input: "  ./static/js/main.js  ", expected: "static/js/main.js"},
		{name: "Backslashes", input: `static\chunks\42.js`, expected: "static/chunks/42.js"},
		{name: "Relative", input: "static/../vendor.js", expected: "vendor.js"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizePatternPath(tc.input); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{name: "Short", input: "abc", max: 10, expected: "abc"},
		{name: "Cut", input: "abcdef", max: 4, expected: "abcd"},
		{name: "NoLimit", input: "abcdef", max: 0, expected: "abcdef"},
		{name: "RuneBoundary", input: "aé", max: 2, expected: "a"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Truncate(tc.input, tc.max); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestSortedStringKeys(t *testing.T) {
	t.Parallel()

	m := map[string]int{"b": 2, "a": 1, "c": 3}
	keys := SortedStringKeys(m)
	expected := []string{"a", "b", "c"}
	if len(keys) != len(expected) {
		t.Fatalf("expected %d keys, got %d", len(expected), len(keys))
	}
	for i, key := range expected {
		if keys[i] != key {
			t.Fatalf("expected %q at %d, got %q", key, i, keys[i])
		}
	}
}

func TestWriteFileWithDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out", "chunkmap.json")

	for _, content := range []string{`{"1":{}}`, `{"2":{}}`} {
		if err := WriteFileWithDirs(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if string(got) != content {
			t.Fatalf("expected %q, got %q", content, string(got))
		}
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the artifact to remain, got %d entries", len(entries))
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("expected mode 0644, got %v", info.Mode().Perm())
	}
}

func TestWriteStringWithDirs(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.md")
	if err := WriteStringWithDirs(path, "# Chunk Map", 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != "# Chunk Map" {
		t.Fatalf("unexpected content %q", string(got))
	}
}

func TestReadMem(t *testing.T) {
	m := ReadMem()
	if m.HeapSysMB < m.HeapAllocMB {
		t.Fatalf("heap in use %d MB exceeds heap obtained %d MB", m.HeapAllocMB, m.HeapSysMB)
	}
}
