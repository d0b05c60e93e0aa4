package chunks

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"chunkmap/internal/core/errors"
	"chunkmap/internal/engine/parser"
	"chunkmap/internal/shared/observability"
	"chunkmap/internal/shared/util"

	"github.com/gobwas/glob"
	"github.com/spaolacci/murmur3"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// SubsequentRequestsDir marks downloads that are responses to later requests
// rather than bundle files.
const SubsequentRequestsDir = "___subsequent_requests"

var DefaultSignatures = []string{"webpackChunk", "webpackJsonp"}

const (
	DefaultHeaderLines  = 5
	DefaultMaxFileBytes = 50 << 20
)

type Options struct {
	// Signatures are webpack runtime markers; a file is parsed only when one
	// of them occurs in its first HeaderLines lines.
	Signatures   []string
	HeaderLines  int
	Exclude      []string
	MaxFileBytes int64
}

func (o *Options) applyDefaults() {
	if len(o.Signatures) == 0 {
		o.Signatures = DefaultSignatures
	}
	if o.HeaderLines <= 0 {
		o.HeaderLines = DefaultHeaderLines
	}
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = DefaultMaxFileBytes
	}
}

type Extractor struct {
	parser   *parser.Parser
	opts     Options
	excludes []glob.Glob
}

func NewExtractor(p *parser.Parser, opts Options) (*Extractor, error) {
	opts.applyDefaults()
	excludes := make([]glob.Glob, 0, len(opts.Exclude))
	for _, pattern := range opts.Exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("invalid exclude pattern %q", pattern))
		}
		excludes = append(excludes, g)
	}
	return &Extractor{parser: p, opts: opts, excludes: excludes}, nil
}

// Extract walks dir and returns every chunk registered by its bundle files.
// Only an unusable dir is an error; unreadable or unparsable files are
// logged and skipped.
func (e *Extractor) Extract(dir string) (*Set, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "input directory not found"), errors.CtxPath, dir)
	}
	if !info.IsDir() {
		return nil, errors.AddContext(errors.New(errors.CodeValidationError, "input path is not a directory"), errors.CtxPath, dir)
	}

	set := NewSet()
	hashes := make(map[string]uint64)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if d.Name() == SubsequentRequestsDir {
				return filepath.SkipDir
			}
			return nil
		}
		rel, _ := filepath.Rel(dir, path)
		if e.Skip(rel) {
			observability.FilesSkippedTotal.WithLabelValues("excluded").Inc()
			return nil
		}
		chunks := e.extractPath(path)
		for _, c := range chunks {
			e.add(set, hashes, c)
		}
		return nil
	})
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "walk input directory"), errors.CtxPath, dir)
	}
	return set, nil
}

// Skip reports whether a path relative to the input directory is excluded
// from extraction.
func (e *Extractor) Skip(rel string) bool {
	slashed := util.NormalizePatternPath(rel)
	for _, segment := range strings.Split(slashed, "/") {
		if segment == SubsequentRequestsDir {
			return true
		}
	}
	for _, g := range e.excludes {
		if g.Match(slashed) || g.Match(filepath.Base(rel)) {
			return true
		}
	}
	return false
}

func (e *Extractor) add(set *Set, hashes map[string]uint64, c *Chunk) {
	sum := murmur3.Sum64([]byte(c.Code))
	if prev, ok := set.Get(c.ID); ok {
		if hashes[c.ID] == sum {
			slog.Debug("duplicate chunk ignored", "chunk", c.ID, "file", c.File, "first", prev.File)
		} else {
			slog.Warn("conflicting chunk id, keeping first definition", "chunk", c.ID, "file", c.File, "first", prev.File)
		}
		return
	}
	hashes[c.ID] = sum
	set.Add(c)
	observability.ChunksExtractedTotal.Inc()
}

func (e *Extractor) extractPath(path string) []*Chunk {
	observability.FilesScannedTotal.Inc()
	info, err := os.Stat(path)
	if err != nil {
		slog.Warn("failed to stat file", "path", path, "error", err)
		observability.FilesSkippedTotal.WithLabelValues("io").Inc()
		return nil
	}
	if info.Size() > e.opts.MaxFileBytes {
		slog.Info("skipping oversized file", "path", path, "bytes", info.Size())
		observability.FilesSkippedTotal.WithLabelValues("size").Inc()
		return nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("failed to read file", "path", path, "error", err)
		observability.FilesSkippedTotal.WithLabelValues("io").Inc()
		return nil
	}
	if !e.HasSignature(content) {
		observability.FilesSkippedTotal.WithLabelValues("signature").Inc()
		return nil
	}
	chunks, err := e.ExtractFile(path, content)
	if err != nil {
		slog.Debug("skipping unparsable bundle", "path", path, "error", err)
		observability.ParseFailuresTotal.WithLabelValues("extract").Inc()
		return nil
	}
	slog.Debug("extracted chunks", "path", path, "count", len(chunks))
	return chunks
}

// HasSignature reports whether a webpack runtime marker appears in the
// first lines of content.
func (e *Extractor) HasSignature(content []byte) bool {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), int(e.opts.MaxFileBytes)+1)
	for i := 0; i < e.opts.HeaderLines && scanner.Scan(); i++ {
		line := scanner.Bytes()
		for _, sig := range e.opts.Signatures {
			if bytes.Contains(line, []byte(sig)) {
				return true
			}
		}
	}
	return false
}

// ExtractFile parses one bundle and returns the chunks registered through
// `<global>.push([ids, {id: function(module, exports, require) {...}}])`.
func (e *Extractor) ExtractFile(path string, content []byte) ([]*Chunk, error) {
	src, err := e.parser.Parse(path, content)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	var out []*Chunk
	parser.Walk(src.Root, func(n *sitter.Node) bool {
		if n.Kind() != "call_expression" {
			return true
		}
		modules := pushedModules(src, n)
		if modules == nil {
			return true
		}
		for _, pair := range parser.NamedChildren(modules) {
			if c := chunkFromPair(src, path, pair); c != nil {
				out = append(out, c)
			}
		}
		return false
	})
	return out, nil
}

// pushedModules returns the module table object of a `.push([...])` call.
func pushedModules(src *parser.Source, call *sitter.Node) *sitter.Node {
	_, prop, ok := src.MemberParts(call.ChildByFieldName("function"))
	if !ok || prop != "push" {
		return nil
	}
	args := parser.CallArgs(call)
	if len(args) == 0 || args[0].Kind() != "array" {
		return nil
	}
	for _, elem := range parser.NamedChildren(args[0]) {
		if elem.Kind() == "object" {
			return elem
		}
	}
	return nil
}

func chunkFromPair(src *parser.Source, path string, pair *sitter.Node) *Chunk {
	if pair.Kind() != "pair" {
		return nil
	}
	key := pair.ChildByFieldName("key")
	if key == nil || (key.Kind() != "number" && key.Kind() != "string") {
		return nil
	}
	id, ok := src.LiteralKey(key)
	if !ok {
		return nil
	}
	value := pair.ChildByFieldName("value")
	if value == nil || !isModuleFunction(value) {
		return nil
	}
	return &Chunk{
		ID:     id,
		File:   path,
		Code:   src.Text(value),
		Offset: int(value.StartByte()),
		Line:   src.Line(value),
	}
}

func isModuleFunction(node *sitter.Node) bool {
	switch node.Kind() {
	case "function_expression", "function", "arrow_function":
		return true
	}
	return false
}
