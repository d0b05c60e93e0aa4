package calls

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// LineIndex maps byte offsets in bundle files to 1-based line numbers. Each
// file is read from disk once.
type LineIndex struct {
	dir string

	mu     sync.RWMutex
	starts map[string][]int
	errs   map[string]error
}

// NewLineIndex resolves relative file names against dir.
func NewLineIndex(dir string) *LineIndex {
	return &LineIndex{
		dir:    dir,
		starts: make(map[string][]int),
		errs:   make(map[string]error),
	}
}

// Line returns the line containing offset in path.
func (li *LineIndex) Line(path string, offset int) (int, error) {
	starts, err := li.lineStarts(path)
	if err != nil {
		return 0, err
	}
	return sort.Search(len(starts), func(i int) bool { return starts[i] > offset }), nil
}

// Remember indexes content already in memory for path.
func (li *LineIndex) Remember(path string, content []byte) {
	li.mu.Lock()
	defer li.mu.Unlock()
	li.starts[path] = indexLines(content)
	delete(li.errs, path)
}

func (li *LineIndex) lineStarts(path string) ([]int, error) {
	li.mu.RLock()
	starts, ok := li.starts[path]
	err := li.errs[path]
	li.mu.RUnlock()
	if ok || err != nil {
		return starts, err
	}

	content, err := os.ReadFile(li.resolve(path))
	li.mu.Lock()
	defer li.mu.Unlock()
	if err != nil {
		li.errs[path] = err
		return nil, err
	}
	starts = indexLines(content)
	li.starts[path] = starts
	return starts, nil
}

func (li *LineIndex) resolve(path string) string {
	if filepath.IsAbs(path) || li.dir == "" {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return filepath.Join(li.dir, path)
}

func indexLines(content []byte) []int {
	starts := []int{0}
	for i := 0; i < len(content); {
		next := bytes.IndexByte(content[i:], '\n')
		if next < 0 {
			break
		}
		i += next + 1
		starts = append(starts, i)
	}
	return starts
}
