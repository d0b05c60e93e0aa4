package fetch

import (
	"bytes"
	"log/slog"
	"os"
	"strings"

	"chunkmap/internal/engine/calls"
	"chunkmap/internal/engine/chunks"
	"chunkmap/internal/engine/graph"
	"chunkmap/internal/engine/parser"
	"chunkmap/internal/engine/resolver"
	"chunkmap/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// MarkChunks flags every chunk whose own code calls fetch or an alias of it
// and returns the number of flagged chunks.
func MarkChunks(set *chunks.Set, modules *graph.ModuleCache) int {
	count := 0
	for _, c := range set.All() {
		c.ContainsFetch = false
		m, ok := modules.Get(c.ID)
		if !ok {
			continue
		}
		det := Detect(m.Src, m.Src.Root)
		if !det.Found() {
			continue
		}
		c.ContainsFetch = true
		count++
		slog.Debug("chunk contains fetch", "chunk", c.ID, "sites", len(det.Sites), "aliases", det.Aliases)
	}
	observability.FetchChunks.Set(float64(count))
	return count
}

// Request is the resolved argument list of one fetch call.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    any
}

type bundleFile struct {
	src       *parser.Source
	detection Detection
}

// CallResolver turns fetch call sites into discovered API calls. Bundle
// files are parsed once per resolver; Close releases them.
type CallResolver struct {
	parser  *parser.Parser
	modules *graph.ModuleCache
	values  *resolver.Resolver
	lines   *calls.LineIndex
	sink    *calls.Collector

	files  map[string]*bundleFile
	failed map[string]bool
}

func NewCallResolver(p *parser.Parser, modules *graph.ModuleCache, values *resolver.Resolver, lines *calls.LineIndex, sink *calls.Collector) *CallResolver {
	return &CallResolver{
		parser:  p,
		modules: modules,
		values:  values,
		lines:   lines,
		sink:    sink,
		files:   make(map[string]*bundleFile),
		failed:  make(map[string]bool),
	}
}

func (cr *CallResolver) Close() {
	for path, f := range cr.files {
		f.src.Close()
		delete(cr.files, path)
	}
}

// Run resolves the fetch calls of every flagged chunk and returns how many
// calls were recorded.
func (cr *CallResolver) Run(set *chunks.Set) int {
	total := 0
	for _, c := range set.All() {
		if !c.ContainsFetch || c.File == "" {
			continue
		}
		total += cr.ResolveChunk(c)
	}
	return total
}

// ResolveChunk resolves the fetch calls located inside chunk c. Aliases
// are detected across the whole originating file.
func (cr *CallResolver) ResolveChunk(c *chunks.Chunk) int {
	file := cr.file(c.File)
	if file == nil {
		return 0
	}
	fn := locate(file.src, c)
	if fn == nil {
		slog.Info("chunk not found in its file", "chunk", c.ID, "file", c.File)
		return 0
	}

	m := graph.ModuleAt(file.src, fn)
	scope := resolver.Scope{Src: file.src, Module: m, ChunkID: c.ID}
	added := 0
	for _, site := range file.detection.Sites {
		if !parser.Contains(fn, site.Call) {
			continue
		}
		added += cr.resolveSite(c, scope, fn, site)
	}
	slog.Info("resolved fetch calls", "chunk", c.ID, "file", c.File, "calls", added)
	return added
}

func (cr *CallResolver) file(path string) *bundleFile {
	if f, ok := cr.files[path]; ok {
		return f
	}
	if cr.failed[path] {
		return nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("failed to read bundle file", "file", path, "error", err)
		cr.failed[path] = true
		return nil
	}
	src, err := cr.parser.Parse(path, content)
	if err != nil {
		slog.Debug("skipping unparsable bundle", "file", path, "error", err)
		observability.ParseFailuresTotal.WithLabelValues("fetch").Inc()
		cr.failed[path] = true
		return nil
	}
	cr.lines.Remember(path, content)
	f := &bundleFile{src: src, detection: Detect(src, src.Root)}
	cr.files[path] = f
	return f
}

// locate finds the module function of c inside its file, by recorded
// offset first and by text search when the file changed since extraction.
func locate(src *parser.Source, c *chunks.Chunk) *sitter.Node {
	if fn := functionAt(src, c.Offset, len(c.Code)); fn != nil && src.Text(fn) == c.Code {
		return fn
	}
	idx := bytes.Index(src.Code, []byte(c.Code))
	if idx < 0 {
		return nil
	}
	return functionAt(src, idx, len(c.Code))
}

func functionAt(src *parser.Source, offset, length int) *sitter.Node {
	if offset < 0 || length == 0 || offset+length > len(src.Code) {
		return nil
	}
	start, end := uint(offset), uint(offset+length)
	for n := src.Root.DescendantForByteRange(start, end); n != nil; n = n.Parent() {
		if n.StartByte() != start || n.EndByte() != end {
			if n.StartByte() < start || n.EndByte() > end {
				return nil
			}
			continue
		}
		if parser.IsFunction(n) {
			return n
		}
	}
	return nil
}

func (cr *CallResolver) resolveSite(c *chunks.Chunk, scope resolver.Scope, fn *sitter.Node, site Site) int {
	args := parser.CallArgs(site.Call)
	if len(args) == 0 {
		return 0
	}
	offset := int(site.Call.StartByte())
	line, err := cr.lines.Line(c.File, offset)
	if err != nil {
		slog.Warn("line lookup failed", "file", c.File, "error", err)
	}
	emit := func(req Request, calledFrom string, callerOffset int) bool {
		return cr.sink.Add(calls.DiscoveredAPICall{
			URL:              req.URL,
			Method:           req.Method,
			Headers:          req.Headers,
			Body:             req.Body,
			ChunkID:          c.ID,
			FunctionFile:     c.File,
			FunctionFileLine: line,
			CalledFrom:       calledFrom,
			Source:           calls.SourceFetch,
			SiteOffset:       offset,
			CallerOffset:     callerOffset,
		})
	}

	added := 0
	if wrapper := enclosingWrapper(site.Call, fn); wrapper != nil && scope.Module.HasAlias() {
		names := scope.Module.ExportsOf(wrapper)
		callers := graph.Callers(cr.modules, c.ID, names)
		if len(names) > 0 && len(callers) == 0 {
			slog.Debug("exported fetch wrapper has no callers", "chunk", c.ID, "exports", names)
		}
		for _, caller := range callers {
			callerScope := resolver.Scope{Src: caller.Module.Src, Module: caller.Module, ChunkID: caller.Chunk}
			overrides := cr.values.BindArguments(scope.Src, wrapper, callerScope, parser.CallArgs(caller.Call))
			if emit(cr.request(scope, args, overrides), caller.Chunk, caller.Module.Src.Offset(caller.Call)) {
				added++
			}
		}
		if added > 0 {
			return added
		}
	}
	if emit(cr.request(scope, args, nil), "", 0) {
		added++
	}
	return added
}

// request resolves the url and init arguments of a fetch call.
func (cr *CallResolver) request(scope resolver.Scope, args []*sitter.Node, overrides resolver.Overrides) Request {
	req := Request{Method: calls.MethodUnknown, Headers: map[string]string{}}
	req.URL = cr.values.ResolveString(scope, args[0], overrides)
	if len(args) < 2 {
		return req
	}
	init, ok := cr.values.ResolveWith(scope, args[1], overrides).(map[string]any)
	if !ok {
		return req
	}
	if method, ok := init["method"].(string); ok && method != "" && !resolver.IsUnresolved(method) {
		req.Method = strings.ToUpper(method)
	}
	req.Headers = StringHeaders(init["headers"])
	req.Body = init["body"]
	return req
}

// StringHeaders converts a resolved headers value into a string map.
func StringHeaders(v any) map[string]string {
	out := map[string]string{}
	h, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, val := range h {
		out[k] = resolver.Stringify(val)
	}
	return out
}

// enclosingWrapper returns the function around call when it is not the
// module function itself.
func enclosingWrapper(call, module *sitter.Node) *sitter.Node {
	fn := parser.Ancestor(call, parser.IsFunction)
	if fn == nil || parser.SameNode(fn, module) {
		return nil
	}
	return fn
}
