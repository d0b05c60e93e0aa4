package report

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"chunkmap/internal/engine/calls"
	"chunkmap/internal/shared/util"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

const (
	extMethodUnknown = "x-chunkmap-method-unknown"
	extMethod        = "x-chunkmap-method"
	extChunks        = "x-chunkmap-chunks"
	extSources       = "x-chunkmap-sources"
)

var (
	bracketPattern = regexp.MustCompile(`\[[^\]]*\]`)
	paramPattern   = regexp.MustCompile(`\{[^}]*\}`)
	nonIdent       = regexp.MustCompile(`[^A-Za-z0-9_]+`)
)

var standardMethods = map[string]bool{
	"GET": true, "PUT": true, "POST": true, "DELETE": true,
	"OPTIONS": true, "HEAD": true, "PATCH": true, "TRACE": true,
}

// Headers OpenAPI describes outside header parameters.
var reservedHeaders = map[string]bool{"accept": true, "content-type": true, "authorization": true}

// endpoint is one call's URL broken into OpenAPI parts.
type endpoint struct {
	server     string
	path       string
	pathParams []string
	query      []string
}

// parseEndpoint turns a resolved URL into a path template. Placeholders
// become path parameters named after the unresolved variable.
func parseEndpoint(raw string) endpoint {
	var ep endpoint
	used := map[string]int{}
	templated := bracketPattern.ReplaceAllStringFunc(raw, func(match string) string {
		name := "param"
		if strings.HasPrefix(match, "[unresolved: ") {
			name = strings.TrimSuffix(strings.TrimPrefix(match, "[unresolved: "), "]")
		}
		name = strings.Trim(nonIdent.ReplaceAllString(name, "_"), "_")
		if name == "" {
			name = "param"
		}
		used[name]++
		if n := used[name]; n > 1 {
			name = fmt.Sprintf("%s%d", name, n)
		}
		ep.pathParams = append(ep.pathParams, name)
		return "{" + name + "}"
	})

	rest := templated
	if i := strings.Index(rest, "#"); i >= 0 {
		rest = rest[:i]
	}
	if strings.HasPrefix(rest, "//") || strings.Contains(rest, "://") {
		scheme := ""
		if i := strings.Index(rest, "://"); i >= 0 && !strings.HasPrefix(rest, "//") {
			scheme, rest = rest[:i+3], rest[i+3:]
		} else {
			rest = rest[2:]
		}
		host := rest
		if i := strings.IndexAny(rest, "/?"); i >= 0 {
			host, rest = rest[:i], rest[i:]
		} else {
			rest = ""
		}
		ep.server = scheme + host
		if scheme == "" {
			ep.server = "//" + host
		}
	}
	if i := strings.Index(rest, "?"); i >= 0 {
		if values, err := url.ParseQuery(rest[i+1:]); err == nil {
			ep.query = util.SortedStringKeys(values)
		}
		rest = rest[:i]
	}
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	ep.path = rest

	// Parameters swallowed by the server part or the query are not path
	// parameters.
	kept := ep.pathParams[:0]
	for _, p := range ep.pathParams {
		if strings.Contains(ep.path, "{"+p+"}") {
			kept = append(kept, p)
		}
	}
	ep.pathParams = kept
	return ep
}

// BuildOpenAPI describes every discovered call as an OpenAPI operation.
func BuildOpenAPI(data Data) *openapi3.T {
	version := data.Version
	if version == "" {
		version = "0.0.0"
	}
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "Discovered API",
			Version:     version,
			Description: fmt.Sprintf("Requests recovered from the webpack bundles in %s.", nonEmpty(data.Dir, "the input directory")),
		},
		Paths: openapi3.NewPaths(),
	}

	servers := map[string]bool{}
	byShape := map[string]string{}
	opIDs := map[string]int{}

	for _, call := range calls.Sorted(data.Calls) {
		ep := parseEndpoint(call.URL)
		if ep.server != "" {
			servers[ep.server] = true
		}
		shape := paramPattern.ReplaceAllString(ep.path, "{}")
		path, ok := byShape[shape]
		if !ok {
			path = ep.path
			byShape[shape] = path
		}

		item := doc.Paths.Value(path)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(path, item)
		}

		method, unknown := operationMethod(call.Method)
		op := item.GetOperation(method)
		if op == nil {
			op = newOperation(method, path, pathParamsOf(path), opIDs)
			item.SetOperation(method, op)
		}
		if unknown {
			op.Extensions[extMethodUnknown] = true
			if call.Method != calls.MethodUnknown {
				op.Extensions[extMethod] = call.Method
			}
		}
		mergeCall(op, call, ep)
	}

	if len(servers) > 0 {
		for _, s := range util.SortedStringKeys(servers) {
			server := &openapi3.Server{URL: s}
			for _, name := range pathParamsOf(s) {
				if server.Variables == nil {
					server.Variables = map[string]*openapi3.ServerVariable{}
				}
				server.Variables[name] = &openapi3.ServerVariable{Default: name}
			}
			doc.Servers = append(doc.Servers, server)
		}
	}
	return doc
}

func operationMethod(method string) (string, bool) {
	upper := strings.ToUpper(method)
	if standardMethods[upper] {
		return upper, false
	}
	return "GET", true
}

func pathParamsOf(path string) []string {
	var out []string
	for _, m := range paramPattern.FindAllString(path, -1) {
		out = append(out, strings.Trim(m, "{}"))
	}
	return out
}

func newOperation(method, path string, params []string, ids map[string]int) *openapi3.Operation {
	base := strings.ToLower(method) + strings.Trim(nonIdent.ReplaceAllString(path, "_"), "_")
	if base == strings.ToLower(method) {
		base += "Root"
	}
	ids[base]++
	id := base
	if n := ids[base]; n > 1 {
		id = fmt.Sprintf("%s_%d", base, n)
	}

	op := openapi3.NewOperation()
	op.OperationID = id
	op.Summary = method + " " + path
	op.Extensions = map[string]any{}
	op.Responses = openapi3.NewResponses(openapi3.WithStatus(200, &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription("Observed response"),
	}))
	for _, name := range params {
		op.AddParameter(openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()))
	}
	return op
}

func mergeCall(op *openapi3.Operation, call calls.DiscoveredAPICall, ep endpoint) {
	addUnique(op.Extensions, extChunks, call.ChunkID)
	addUnique(op.Extensions, extSources, call.Source)

	for _, q := range ep.query {
		if op.Parameters.GetByInAndName(openapi3.ParameterInQuery, q) == nil {
			op.AddParameter(openapi3.NewQueryParameter(q).WithSchema(openapi3.NewStringSchema()))
		}
	}

	contentType := "application/json"
	for _, name := range util.SortedStringKeys(call.Headers) {
		if strings.EqualFold(name, "content-type") {
			contentType = strings.TrimSpace(strings.Split(call.Headers[name], ";")[0])
		}
		if reservedHeaders[strings.ToLower(name)] {
			continue
		}
		if op.Parameters.GetByInAndName(openapi3.ParameterInHeader, name) != nil {
			continue
		}
		p := openapi3.NewHeaderParameter(name).WithSchema(openapi3.NewStringSchema())
		p.Example = call.Headers[name]
		op.AddParameter(p)
	}

	if call.Body == nil || op.RequestBody != nil {
		return
	}
	if _, isString := call.Body.(string); isString && contentType == "application/json" {
		contentType = "text/plain"
	}
	op.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().WithContent(
			openapi3.NewContentWithSchema(schemaOf(call.Body), []string{contentType}),
		),
	}
}

func addUnique(ext map[string]any, key, value string) {
	list, _ := ext[key].([]string)
	for _, v := range list {
		if v == value {
			return
		}
	}
	list = append(list, value)
	sort.Strings(list)
	ext[key] = list
}

// schemaOf infers a schema from a resolved value. Literals become examples.
func schemaOf(v any) *openapi3.Schema {
	switch val := v.(type) {
	case map[string]any:
		s := openapi3.NewObjectSchema()
		for _, k := range util.SortedStringKeys(val) {
			s.WithProperty(k, schemaOf(val[k]))
		}
		return s
	case []any:
		s := openapi3.NewArraySchema()
		if len(val) > 0 {
			s.WithItems(schemaOf(val[0]))
		} else {
			s.WithItems(openapi3.NewSchema())
		}
		return s
	case string:
		s := openapi3.NewStringSchema()
		if !strings.HasPrefix(val, "[") {
			s.Example = val
		}
		return s
	case bool:
		s := openapi3.NewBoolSchema()
		s.Example = val
		return s
	case float64:
		var s *openapi3.Schema
		if val == float64(int64(val)) {
			s = openapi3.NewIntegerSchema()
		} else {
			s = openapi3.NewFloat64Schema()
		}
		s.Example = val
		return s
	case int:
		s := openapi3.NewIntegerSchema()
		s.Example = val
		return s
	case nil:
		s := openapi3.NewSchema()
		s.Nullable = true
		return s
	default:
		return openapi3.NewSchema()
	}
}

// MarshalOpenAPI encodes doc as YAML, keeping the key order of its JSON
// form.
func MarshalOpenAPI(doc *openapi3.T) ([]byte, error) {
	raw, err := doc.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, err
	}
	blockStyle(&node)
	return yaml.Marshal(&node)
}

// blockStyle drops the flow style the JSON input leaves on every node.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func WriteOpenAPI(path string, data Data) error {
	doc := BuildOpenAPI(data)
	if err := doc.Validate(context.Background()); err != nil {
		return fmt.Errorf("generated OpenAPI document is invalid: %w", err)
	}
	out, err := MarshalOpenAPI(doc)
	if err != nil {
		return fmt.Errorf("encode OpenAPI document: %w", err)
	}
	return util.WriteFileWithDirs(path, out, 0o644)
}
