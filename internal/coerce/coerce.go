// Package coerce maps untyped wire values onto declared field kinds.
//
// Every settable member of the scene graph is described by a Descriptor with
// a closed semantic kind. Coerce validates an incoming JSON value against
// the descriptor and returns the canonical in-memory form, or a structured
// error naming the field and the reason. The engine never panics past its
// own boundary; batch property sets rely on per-field errors to report
// partial success.
package coerce

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the semantic type of a settable member.
type Kind string

const (
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindString Kind = "string"
	KindEnum   Kind = "enum"
	KindVec2   Kind = "vec2"
	KindVec3   Kind = "vec3"
	KindColor  Kind = "color"
	KindRef    Kind = "ref"
	KindArray  Kind = "array"
)

// RefMarker prefixes a string ref value that addresses an in-graph object
// (as opposed to a stored asset path): "*<path>[:<member>]".
const RefMarker = "*"

// Descriptor describes one settable member. Kind is immutable for the
// lifetime of the descriptor.
type Descriptor struct {
	Name string
	Kind Kind
	Enum []string    // valid names, ordered, for KindEnum
	Elem *Descriptor // element descriptor for KindArray
}

// Error is a structured coercion failure naming the field and the reason.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("property %q: %s", e.Field, e.Reason)
}

func (d Descriptor) errf(format string, args ...any) error {
	return &Error{Field: d.Name, Reason: fmt.Sprintf(format, args...)}
}

// ObjectResolver locates addressable objects and their members in the
// host's scene graph.
type ObjectResolver interface {
	// ResolveObject returns the object at a graph path.
	ResolveObject(path string) (any, bool)

	// ResolveMember returns the named member on the object at path.
	ResolveMember(path, member string) (any, bool)
}

// AssetResolver locates stored assets by path.
type AssetResolver interface {
	ResolveAsset(path string) (any, bool)
}

// Engine coerces wire values onto descriptors, resolving references through
// the host's lookup collaborators.
type Engine struct {
	Objects ObjectResolver
	Assets  AssetResolver
}

// Coerce converts raw into the canonical value for desc.
//
// Canonical forms: int, float64, bool, string, enum index int,
// [2]float64, [3]float64, color [4]float64, resolved ref any (nil when
// cleared), and []any for arrays.
//
// For arrays the returned slice always has the raw list's length: elements
// before a failing index are coerced, the failing index and everything
// after hold the element kind's zero value, and the error reports the first
// failing index. Callers that apply the slice on error must do so
// consistently (see scene.SetProperty).
func (e *Engine) Coerce(desc Descriptor, raw any) (any, error) {
	if raw == nil {
		if desc.Kind == KindRef {
			return nil, nil
		}
		return nil, desc.errf("null is not a valid %s value", desc.Kind)
	}

	switch desc.Kind {
	case KindInt:
		return e.coerceInt(desc, raw)
	case KindFloat:
		f, ok := asFloat(raw)
		if !ok {
			return nil, desc.errf("expected a number, got %s", wireName(raw))
		}
		return f, nil
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, desc.errf("expected a boolean, got %s", wireName(raw))
		}
		return b, nil
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, desc.errf("expected a string, got %s", wireName(raw))
		}
		return s, nil
	case KindEnum:
		return e.coerceEnum(desc, raw)
	case KindVec2:
		v, err := e.coerceVec(desc, raw, 2)
		if err != nil {
			return nil, err
		}
		return [2]float64{v[0], v[1]}, nil
	case KindVec3:
		v, err := e.coerceVec(desc, raw, 3)
		if err != nil {
			return nil, err
		}
		return [3]float64{v[0], v[1], v[2]}, nil
	case KindColor:
		return e.coerceColor(desc, raw)
	case KindRef:
		return e.coerceRef(desc, raw)
	case KindArray:
		return e.coerceArray(desc, raw)
	default:
		return nil, desc.errf("unknown kind %q", desc.Kind)
	}
}

func (e *Engine) coerceInt(desc Descriptor, raw any) (any, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return nil, desc.errf("expected an integer, got %v", v)
		}
		return int(v), nil
	default:
		return nil, desc.errf("expected an integer, got %s", wireName(raw))
	}
}

func (e *Engine) coerceEnum(desc Descriptor, raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		for i, name := range desc.Enum {
			if name == v {
				return i, nil
			}
		}
		return nil, desc.errf("%q is not a valid name (valid: %s)", v, strings.Join(desc.Enum, ", "))
	default:
		idx, ok := asInt(raw)
		if !ok {
			return nil, desc.errf("expected an index or name, got %s", wireName(raw))
		}
		if idx < 0 || idx >= len(desc.Enum) {
			return nil, desc.errf("index %d out of range [0, %d)", idx, len(desc.Enum))
		}
		return idx, nil
	}
}

// coerceVec accepts a numeric array of at least n elements; extras are
// ignored, fewer is an error.
func (e *Engine) coerceVec(desc Descriptor, raw any, n int) ([]float64, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, desc.errf("expected an array, got %s", wireName(raw))
	}
	if len(list) < n {
		return nil, desc.errf("%d elements required, got %d", n, len(list))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		f, ok := asFloat(list[i])
		if !ok {
			return nil, desc.errf("element %d: expected a number, got %s", i, wireName(list[i]))
		}
		out[i] = f
	}
	return out, nil
}

func (e *Engine) coerceColor(desc Descriptor, raw any) (any, error) {
	switch v := raw.(type) {
	case []any:
		if len(v) < 3 || len(v) > 4 {
			return nil, desc.errf("color needs 3 or 4 components, got %d", len(v))
		}
		out := [4]float64{0, 0, 0, 1}
		for i := range v {
			f, ok := asFloat(v[i])
			if !ok {
				return nil, desc.errf("component %d: expected a number, got %s", i, wireName(v[i]))
			}
			out[i] = f
		}
		return out, nil
	case string:
		return parseHexColor(desc, v)
	default:
		return nil, desc.errf("expected a color array or #RRGGBB string, got %s", wireName(raw))
	}
}

func parseHexColor(desc Descriptor, s string) (any, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == len(s) || (len(hex) != 6 && len(hex) != 8) {
		return nil, desc.errf("%q is not a #RRGGBB or #RRGGBBAA color", s)
	}
	out := [4]float64{0, 0, 0, 1}
	for i := 0; i < len(hex)/2; i++ {
		c, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, desc.errf("%q is not a #RRGGBB or #RRGGBBAA color", s)
		}
		out[i] = float64(c) / 255.0
	}
	return out, nil
}

func (e *Engine) coerceRef(desc Descriptor, raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, desc.errf("expected a reference string, got %s", wireName(raw))
	}
	if s == "" || s == "null" {
		return nil, nil
	}

	if strings.HasPrefix(s, RefMarker) {
		addr := strings.TrimPrefix(s, RefMarker)
		path, member := addr, ""
		if i := strings.LastIndexByte(addr, ':'); i >= 0 {
			path, member = addr[:i], addr[i+1:]
		}
		if e.Objects == nil {
			return nil, desc.errf("no object lookup available for %q", s)
		}
		if member != "" {
			obj, ok := e.Objects.ResolveMember(path, member)
			if !ok {
				return nil, desc.errf("no %s member on object %q", member, path)
			}
			return obj, nil
		}
		obj, ok := e.Objects.ResolveObject(path)
		if !ok {
			return nil, desc.errf("object %q not found", path)
		}
		return obj, nil
	}

	if e.Assets == nil {
		return nil, desc.errf("no asset lookup available for %q", s)
	}
	asset, ok := e.Assets.ResolveAsset(s)
	if !ok {
		return nil, desc.errf("asset %q not found", s)
	}
	return asset, nil
}

func (e *Engine) coerceArray(desc Descriptor, raw any) (any, error) {
	if desc.Elem == nil {
		return nil, desc.errf("array descriptor has no element kind")
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, desc.errf("expected an array, got %s", wireName(raw))
	}

	// Resize first, fill with zero values, then coerce element by element
	// stopping at the first failure. The tail past a failing index stays
	// zeroed.
	out := make([]any, len(list))
	for i := range out {
		out[i] = ZeroValue(*desc.Elem)
	}
	elem := *desc.Elem
	for i, rawElem := range list {
		elem.Name = fmt.Sprintf("%s[%d]", desc.Name, i)
		v, err := e.Coerce(elem, rawElem)
		if err != nil {
			return out, desc.errf("element %d: %v", i, reason(err))
		}
		out[i] = v
	}
	return out, nil
}

// ZeroValue returns the canonical zero value for a descriptor's kind.
func ZeroValue(desc Descriptor) any {
	switch desc.Kind {
	case KindInt, KindEnum:
		return 0
	case KindFloat:
		return float64(0)
	case KindBool:
		return false
	case KindString:
		return ""
	case KindVec2:
		return [2]float64{}
	case KindVec3:
		return [3]float64{}
	case KindColor:
		return [4]float64{0, 0, 0, 1}
	case KindRef:
		return nil
	case KindArray:
		return []any(nil)
	default:
		return nil
	}
}

// reason strips the field prefix from a nested coercion error so array
// errors read as one diagnostic.
func reason(err error) string {
	if ce, ok := err.(*Error); ok {
		return ce.Reason
	}
	return err.Error()
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// wireName names a wire value's type for diagnostics.
func wireName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "a boolean"
	case float64, int, int64:
		return "a number"
	case string:
		return "a string"
	case []any:
		return "an array"
	case map[string]any:
		return "an object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
