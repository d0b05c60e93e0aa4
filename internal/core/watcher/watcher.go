// Package watcher re-triggers analysis when bundle files change under the
// input directory.
package watcher

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"chunkmap/internal/engine/chunks"
	"chunkmap/internal/shared/observability"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"github.com/spaolacci/murmur3"
)

var defaultExtensions = []string{".js", ".mjs", ".cjs"}

type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	root       string
	debounce   time.Duration
	excludes   []glob.Glob
	extFilters map[string]bool
	onChange   func([]string)
	callbackMu sync.Mutex

	pending   map[string]struct{}
	pendingMu sync.Mutex
	timer     *time.Timer

	// hashes holds the content fingerprint of every bundle file seen in an
	// event, so saves that rewrite identical bytes do not trigger a run.
	hashes map[string]uint64
}

// NewWatcher returns a watcher calling onChange with the changed paths once
// no event arrived for debounce. exclude holds the same globs the chunk
// extractor skips.
func NewWatcher(debounce time.Duration, exclude []string, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}

	compiled := make([]glob.Glob, 0, len(exclude))
	for _, pattern := range exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, g)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsw,
		debounce:  debounce,
		excludes:  compiled,
		onChange:  onChange,
		pending:   make(map[string]struct{}),
		hashes:    make(map[string]uint64),
	}
	w.SetExtensions(defaultExtensions)
	return w, nil
}

// SetExtensions replaces the file extensions that trigger a change.
func (w *Watcher) SetExtensions(extensions []string) {
	filter := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		filter[normalized] = true
	}
	w.extFilters = filter
}

func (w *Watcher) SetDebounce(debounce time.Duration) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.debounce = debounce
}

// Watch starts watching root recursively.
func (w *Watcher) Watch(root string) error {
	w.root = root
	if err := w.watchRecursive(root); err != nil {
		return err
	}
	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if w.shouldExcludeDir(path) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

// handle queues bundle file events. New directories are watched and their
// existing files queued, since writes may land before the watch is added.
func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.shouldExcludeDir(event.Name) {
				return
			}
			if err := w.watchRecursive(event.Name); err != nil {
				slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
				return
			}
			w.enqueueExistingFiles(event.Name)
			return
		}
	}
	if w.shouldExcludeFile(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.scheduleChange(event.Name)
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = struct{}{}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	pending := make([]string, 0, len(w.pending))
	for path := range w.pending {
		pending = append(pending, path)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	paths := w.changed(pending)
	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	w.onChange(paths)
}

// changed drops the paths whose contents match the last fingerprint seen.
// Removed and unreadable files always count as changed. Callers hold
// callbackMu.
func (w *Watcher) changed(paths []string) []string {
	out := paths[:0]
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			delete(w.hashes, path)
			out = append(out, path)
			continue
		}
		sum := murmur3.Sum64(data)
		if prev, ok := w.hashes[path]; ok && prev == sum {
			slog.Debug("bundle file rewritten without changes", "path", path)
			continue
		}
		w.hashes[path] = sum
		out = append(out, path)
	}
	return out
}

func (w *Watcher) rel(path string) string {
	if w.root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	if filepath.Base(path) == chunks.SubsequentRequestsDir {
		return true
	}
	rel := w.rel(path)
	for _, g := range w.excludes {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldExcludeFile(path string) bool {
	rel := w.rel(path)
	for _, segment := range strings.Split(rel, "/") {
		if segment == chunks.SubsequentRequestsDir {
			return true
		}
	}

	base := strings.ToLower(filepath.Base(path))
	if len(w.extFilters) > 0 && !w.extFilters[filepath.Ext(base)] {
		return true
	}

	for _, g := range w.excludes {
		if g.Match(rel) || g.Match(filepath.Base(path)) {
			return true
		}
	}
	return false
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if w.shouldExcludeFile(path) {
			return nil
		}
		w.scheduleChange(path)
		return nil
	})
}
