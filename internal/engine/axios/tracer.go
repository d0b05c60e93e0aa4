package axios

import (
	"log/slog"
	"strings"

	"chunkmap/internal/engine/calls"
	"chunkmap/internal/engine/chunks"
	"chunkmap/internal/engine/graph"
	"chunkmap/internal/engine/parser"
	"chunkmap/internal/engine/resolver"
	"chunkmap/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Client is one created instance and the defaults its create config sets.
type Client struct {
	ChunkID  string
	Creation Creation
	// Name is the variable holding the instance, empty when the result of
	// create() is exported or used directly.
	Name    string
	BaseURL string
	Headers map[string]string
}

// Tracer finds client creations and the requests made through them.
type Tracer struct {
	modules *graph.ModuleCache
	values  *resolver.Resolver
	lines   *calls.LineIndex
	sink    *calls.Collector
	verbs   map[string]bool
}

// NewTracer returns a tracer recording into sink. An empty verbs list
// selects DefaultVerbs.
func NewTracer(modules *graph.ModuleCache, values *resolver.Resolver, lines *calls.LineIndex, sink *calls.Collector, verbs []string) *Tracer {
	if len(verbs) == 0 {
		verbs = DefaultVerbs
	}
	set := make(map[string]bool, len(verbs))
	for _, v := range verbs {
		set[strings.ToLower(v)] = true
	}
	return &Tracer{modules: modules, values: values, lines: lines, sink: sink, verbs: set}
}

// Run flags the chunks creating clients, traces every client and returns
// the clients found.
func (t *Tracer) Run() []Client {
	var clients []Client
	creators := 0
	for _, c := range t.modules.Chunks().All() {
		found := t.Clients(c.ID)
		c.IsAxiosClient = len(found) > 0
		if c.IsAxiosClient {
			creators++
		}
		clients = append(clients, found...)
	}
	observability.AxiosClients.Set(float64(creators))
	if len(clients) == 0 {
		slog.Info("no axios client creation found")
	}
	for _, cl := range clients {
		t.Trace(cl)
	}
	return clients
}

// Clients returns the client creations inside chunk id.
func (t *Tracer) Clients(id string) []Client {
	m, ok := t.modules.Get(id)
	if !ok || !m.HasAlias() {
		return nil
	}
	scope := resolver.Scope{Src: m.Src, Module: m, ChunkID: id}
	var out []Client
	parser.Walk(m.Fn, func(n *sitter.Node) bool {
		creation, ok := MatchCreation(m, n)
		if !ok {
			return true
		}
		cl := Client{ChunkID: id, Creation: creation, Headers: map[string]string{}}
		if target := AssignedTo(n); target != nil {
			cl.Name = m.Src.Text(target)
		}
		if cfg, ok := t.values.Resolve(scope, creation.Config()).(map[string]any); ok {
			if base, ok := cfg["baseURL"].(string); ok && !resolver.IsUnresolved(base) {
				cl.BaseURL = base
			}
			cl.Headers = flattenHeaders(cfg["headers"])
		}
		slog.Info("axios client created", "chunk", id, "variable", cl.Name, "factory", creation.Factory, "pattern", creation.Pattern)
		out = append(out, cl)
		return true
	})
	return out
}

// Trace follows cl through the chunks re-exporting it, then records the
// requests made in every chunk reached. It returns the chunks visited, each
// at most once.
func (t *Tracer) Trace(cl Client) []string {
	refs := newRefSet()
	visited := make(map[string]bool)
	var order []string
	t.visit(cl, cl.ChunkID, refs, visited, &order)

	for _, id := range order {
		m, ok := t.modules.Get(id)
		if !ok {
			continue
		}
		in := t.instanceIn(cl, id, m, refs)
		t.recordUses(cl, id, in)
	}
	return order
}

func (t *Tracer) instanceIn(cl Client, id string, m *graph.Module, refs *refSet) *Instance {
	in := newInstance(m, t.verbs, refs)
	if id == cl.ChunkID {
		in.bindCreation(cl.Creation.Call)
	}
	in.collectAliases()
	return in
}

func (t *Tracer) visit(cl Client, id string, refs *refSet, visited map[string]bool, order *[]string) {
	if visited[id] {
		return
	}
	visited[id] = true
	*order = append(*order, id)

	m, ok := t.modules.Get(id)
	if !ok || !m.HasAlias() {
		return
	}
	in := t.instanceIn(cl, id, m, refs)
	instances, methods := in.exports()
	if len(instances) == 0 && len(methods) == 0 {
		slog.Info("axios instance not exported", "chunk", id, "client", cl.ChunkID)
		return
	}
	for _, name := range instances {
		refs.instances[graph.ImportRef{Chunk: id, Export: name}] = true
	}
	for name, verb := range methods {
		refs.methods[graph.ImportRef{Chunk: id, Export: name}] = verb
	}

	importers := t.modules.Importers(id)
	if len(importers) == 0 {
		slog.Info("axios instance has no importer", "chunk", id, "client", cl.ChunkID, "exports", instances)
		return
	}
	for _, imp := range importers {
		t.visit(cl, imp, refs, visited, order)
	}
}

// recordUses records every request made through the instance in chunk id.
// Calls inside an exported thin wrapper are attributed to the wrapper's
// callers when any exist.
func (t *Tracer) recordUses(cl Client, id string, in *Instance) {
	c, ok := t.modules.Chunks().Get(id)
	if !ok {
		return
	}
	scope := resolver.Scope{Src: in.m.Src, Module: in.m, ChunkID: id}
	parser.Walk(in.m.Fn, func(n *sitter.Node) bool {
		use, ok := MatchUse(in, n)
		if !ok {
			return true
		}
		if t.recordWrapped(cl, c, scope, use) == 0 {
			t.record(cl, c, scope, use, nil, graph.CallSite{})
		}
		return true
	})
}

func (t *Tracer) recordWrapped(cl Client, c *chunks.Chunk, scope resolver.Scope, use Use) int {
	fn := parser.Ancestor(use.Call, parser.IsFunction)
	if fn == nil || parser.SameNode(fn, scope.Module.Fn) {
		return 0
	}
	if call, ok := WrapperCall(fn); !ok || !parser.SameNode(call, use.Call) {
		return 0
	}
	names := scope.Module.ExportsOf(fn)
	if len(names) == 0 {
		return 0
	}
	added := 0
	for _, caller := range graph.Callers(t.modules, c.ID, names) {
		callerScope := resolver.Scope{Src: caller.Module.Src, Module: caller.Module, ChunkID: caller.Chunk}
		overrides := t.values.BindArguments(scope.Src, fn, callerScope, parser.CallArgs(caller.Call))
		if t.record(cl, c, scope, use, overrides, caller) {
			added++
		}
	}
	return added
}

func (t *Tracer) record(cl Client, c *chunks.Chunk, scope resolver.Scope, use Use, overrides resolver.Overrides, caller graph.CallSite) bool {
	req := t.request(cl, scope, use, overrides)
	offset := c.Offset + scope.Src.Offset(use.Call)
	line, err := t.lines.Line(c.File, offset)
	if err != nil {
		slog.Warn("line lookup failed", "file", c.File, "chunk", c.ID, "error", err)
	}
	call := calls.DiscoveredAPICall{
		URL:              req.url,
		Method:           req.method,
		Headers:          req.headers,
		Body:             req.body,
		ChunkID:          c.ID,
		FunctionFile:     c.File,
		FunctionFileLine: line,
		Source:           calls.SourceAxios,
		SiteOffset:       offset,
	}
	if caller.Module != nil {
		call.CalledFrom = caller.Chunk
		call.CallerOffset = caller.Module.Src.Offset(caller.Call)
	}
	return t.sink.Add(call)
}

type request struct {
	url     string
	method  string
	headers map[string]string
	body    any
}

// request maps a verb call onto axios' signatures: (url, config) for
// get-like verbs, (url, data, config) for post-like verbs and (config) or
// (url, config) for request.
func (t *Tracer) request(cl Client, scope resolver.Scope, use Use, overrides resolver.Overrides) request {
	args := parser.CallArgs(use.Call)
	arg := func(i int) *sitter.Node {
		if i < len(args) {
			return args[i]
		}
		return nil
	}
	resolve := func(node *sitter.Node) any {
		if node == nil {
			return nil
		}
		return t.values.ResolveWith(scope, node, overrides)
	}

	req := request{method: strings.ToUpper(use.Verb)}
	var url any
	var config map[string]any
	switch {
	case use.Verb == "request":
		first := resolve(arg(0))
		if cfg, ok := first.(map[string]any); ok {
			config = cfg
			url = cfg["url"]
		} else {
			url = first
			config, _ = resolve(arg(1)).(map[string]any)
		}
		req.method = "GET"
		if m, ok := config["method"].(string); ok && m != "" && !resolver.IsUnresolved(m) {
			req.method = strings.ToUpper(m)
		}
		req.body = config["data"]
	case hasBody(use.Verb):
		url = resolve(arg(0))
		req.body = resolve(arg(1))
		config, _ = resolve(arg(2)).(map[string]any)
	default:
		url = resolve(arg(0))
		config, _ = resolve(arg(1)).(map[string]any)
	}

	req.url = resolver.Stringify(url)
	if url == nil {
		req.url = resolver.Unresolved("url")
	}
	if resolver.ContainsUnresolved(req.url) {
		req.url = resolver.Substitute(req.url, t.values.Fallback(scope))
	}
	base := cl.BaseURL
	if b, ok := config["baseURL"].(string); ok && !resolver.IsUnresolved(b) {
		base = b
	}
	req.url = JoinURL(base, req.url)

	req.headers = make(map[string]string, len(cl.Headers))
	for k, v := range cl.Headers {
		req.headers[k] = v
	}
	for k, v := range flattenHeaders(config["headers"]) {
		req.headers[k] = v
	}
	return req
}

func hasBody(verb string) bool {
	return strings.HasPrefix(verb, "post") || strings.HasPrefix(verb, "put") || strings.HasPrefix(verb, "patch")
}

// JoinURL prefixes a relative url with base the way axios combines
// baseURL and the request url.
func JoinURL(base, url string) string {
	if base == "" || isAbsoluteURL(url) {
		return url
	}
	if url == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(url, "/")
}

func isAbsoluteURL(url string) bool {
	if strings.HasPrefix(url, "//") {
		return true
	}
	i := strings.Index(url, "://")
	if i <= 0 {
		return false
	}
	for _, r := range url[:i] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return false
		}
	}
	return true
}

// flattenHeaders merges axios' per-method header groups (`common`, `get`,
// ...) into one map.
func flattenHeaders(v any) map[string]string {
	out := map[string]string{}
	h, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for _, k := range resolver.SortedKeys(h) {
		if nested, ok := h[k].(map[string]any); ok {
			for _, nk := range resolver.SortedKeys(nested) {
				out[nk] = resolver.Stringify(nested[nk])
			}
			continue
		}
		out[k] = resolver.Stringify(h[k])
	}
	return out
}
