package resolver

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"chunkmap/internal/engine/parser"
)

// Placeholder formats. Every placeholder starts with "[" and ends with "]"
// so consumers can detect partial results.
const (
	unresolvedName   = "[unresolved: %s]"
	unsupportedNode  = "[unsupported node type: %s]"
	unresolvedMember = "[unresolved member expression]"
	unresolvedCall   = "[unresolved call: %s]"
	unresolvedBinary = "[unresolved binary expression: %s]"
	unresolvedModule = "[unresolved module: %s]"
	unresolvedFunc   = "[unresolved function: %s]"
)

var placeholderPattern = regexp.MustCompile(`\[unresolved: ([^\]]+)\]`)

func Unresolved(name string) string {
	return fmt.Sprintf(unresolvedName, name)
}

// IsUnresolved reports whether v is a placeholder produced by the resolver.
func IsUnresolved(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return strings.HasPrefix(s, "[unresolved") || strings.HasPrefix(s, "[unsupported")
}

// ContainsUnresolved reports whether s embeds an `[unresolved: name]`
// placeholder, e.g. from a template or concat.
func ContainsUnresolved(s string) bool {
	return placeholderPattern.MatchString(s)
}

// PlaceholderNames lists the names of embedded `[unresolved: name]`
// placeholders in order of appearance.
func PlaceholderNames(s string) []string {
	var out []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return out
}

// Substitute replaces embedded placeholders for which lookup yields a
// concrete value.
func Substitute(s string, lookup func(name string) (any, bool)) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		v, ok := lookup(name)
		if !ok || IsUnresolved(v) {
			return match
		}
		return Stringify(v)
	})
}

// moduleRef is the value of `require(id)`.
type moduleRef struct {
	id string
}

// Stringify renders v the way JavaScript's String(v) would for the value
// shapes the resolver produces.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case float64:
		return parser.FormatNumber(x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			if e != nil {
				parts[i] = Stringify(e)
			}
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return "[object Object]"
	case moduleRef:
		return fmt.Sprintf(unresolvedModule, x.id)
	case *funcRef:
		return fmt.Sprintf(unresolvedFunc, x.name)
	}
	return fmt.Sprint(v)
}

func truthy(v any) (value bool, known bool) {
	switch x := v.(type) {
	case nil:
		return false, true
	case bool:
		return x, true
	case float64:
		return x != 0 && x == x, true
	case string:
		if IsUnresolved(x) {
			return false, false
		}
		return x != "", true
	case map[string]any, []any, *funcRef, moduleRef:
		return true, true
	}
	return false, false
}

// finalize converts internal values into the public value shapes. Objects
// and arrays shared by several properties are converted once and stay
// shared in the result.
func finalize(v any) any {
	return (&finalizer{seen: make(map[sharedKey]any)}).value(v)
}

type sharedKey struct {
	ptr uintptr
	len int
}

type finalizer struct {
	seen map[sharedKey]any
}

func (fz *finalizer) value(v any) any {
	switch x := v.(type) {
	case map[string]any:
		key := sharedKey{ptr: reflect.ValueOf(x).Pointer(), len: -1}
		if out, ok := fz.seen[key]; ok {
			return out
		}
		out := make(map[string]any, len(x))
		fz.seen[key] = out
		for k, e := range x {
			out[k] = fz.value(e)
		}
		return out
	case []any:
		if len(x) == 0 {
			return []any{}
		}
		key := sharedKey{ptr: reflect.ValueOf(x).Pointer(), len: len(x)}
		if out, ok := fz.seen[key]; ok {
			return out
		}
		out := make([]any, len(x))
		fz.seen[key] = out
		for i, e := range x {
			out[i] = fz.value(e)
		}
		return out
	case moduleRef, *funcRef:
		return Stringify(x)
	}
	return v
}

// SortedKeys returns the keys of an object value, sorted.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
