package resource

import (
	"fmt"
	"sort"
	"strings"
)

// Raw is the unvalidated input used to build a Declaration. Type may be a
// provider resource type or a canonical kind name. Kind, when set to a
// canonical kind, takes precedence over the kind derived from Type.
type Raw struct {
	Kind       string
	Type       string
	Name       string
	Source     string
	Attributes map[string]interface{}
	Tags       map[string]string
}

// Declaration is one declared infrastructure resource. It is immutable once
// built: every accessor returns copies or read-only views.
type Declaration struct {
	kind   Kind
	name   string
	typ    string
	source string
	root   Block
	tags   map[string]string
	diags  []Diagnostic
}

// New builds a declaration from raw input. The attributes are deep-copied and
// normalized, so later changes to raw do not leak into the declaration.
// Problems with the input never fail construction; they are recorded as
// diagnostics instead.
func New(raw Raw) *Declaration {
	d := &Declaration{
		name:   raw.Name,
		typ:    firstNonEmpty(raw.Type, raw.Kind),
		source: raw.Source,
		tags:   make(map[string]string),
	}

	kind, ok := ResolveKind(raw.Type)
	if raw.Kind != "" {
		if k, known := ResolveKind(raw.Kind); known {
			kind, ok = k, true
		}
	}
	d.kind = kind
	if !ok {
		label := raw.Type
		if label == "" {
			label = raw.Kind
		}
		d.diags = append(d.diags, Diagnostic{
			Code:    UnknownResourceKind,
			Message: fmt.Sprintf("resource type %q is not recognised, only generic checks apply", label),
		})
	}

	attrs, _ := normalize(raw.Attributes).(map[string]interface{})
	if attrs == nil {
		attrs = make(map[string]interface{})
	}

	d.diags = append(d.diags, d.liftTags(attrs)...)
	d.diags = append(d.diags, validate(kind, attrs)...)

	for k, v := range raw.Tags {
		d.tags[k] = v
	}
	d.root = Block{attrs: attrs}
	return d
}

// liftTags moves tags and labels out of the attributes into the tag map
func (d *Declaration) liftTags(attrs map[string]interface{}) []Diagnostic {
	var diags []Diagnostic
	for _, key := range []string{"tags", "labels"} {
		raw, ok := attrs[key]
		if !ok {
			continue
		}
		delete(attrs, key)
		if raw == nil {
			continue
		}

		maps := blockMaps(raw)
		if maps == nil && !isEmpty(raw) {
			diags = append(diags, Diagnostic{
				Code:    MalformedAttribute,
				Path:    key,
				Message: fmt.Sprintf("expected map, got %s", describe(raw)),
			})
			continue
		}
		for _, m := range maps {
			for k, v := range m {
				if s, ok := scalarString(v); ok {
					d.tags[k] = s
				}
			}
		}
	}
	return diags
}

func (d *Declaration) Kind() Kind     { return d.kind }
func (d *Declaration) Name() string   { return d.name }
func (d *Declaration) Type() string   { return d.typ }
func (d *Declaration) Source() string { return d.source }

// ID is the address of the declaration, type.name when both are known
func (d *Declaration) ID() string {
	switch {
	case d.typ != "" && d.name != "":
		return d.typ + "." + d.name
	case d.name != "":
		return d.name
	default:
		return d.typ
	}
}

// Attributes returns the root block of the declaration
func (d *Declaration) Attributes() Block {
	return d.root
}

// Get is shorthand for Attributes().Get
func (d *Declaration) Get(path ...string) Lookup {
	return d.root.Get(path...)
}

// Blocks is shorthand for Attributes().Blocks
func (d *Declaration) Blocks(name string) []Block {
	return d.root.Blocks(name)
}

// Tags returns a copy of the tag map
func (d *Declaration) Tags() map[string]string {
	out := make(map[string]string, len(d.tags))
	for k, v := range d.tags {
		out[k] = v
	}
	return out
}

// HasTag reports whether a tag with the given key exists, ignoring case
func (d *Declaration) HasTag(key string) bool {
	for k := range d.tags {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// Diagnostics returns the problems recorded while building the declaration
func (d *Declaration) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(d.diags))
	copy(out, d.diags)
	return out
}

// Walk calls fn for every scalar leaf in the attributes in a stable order.
// Paths use dots for nesting and [i] for list positions.
func (d *Declaration) Walk(fn func(path string, value interface{})) {
	walk("", d.root.attrs, fn)
}

func walk(path string, v interface{}, fn func(string, interface{})) {
	switch t := v.(type) {
	case map[string]interface{}:
		for _, k := range sortedKeys(t) {
			p := k
			if path != "" {
				p = path + "." + k
			}
			walk(p, t[k], fn)
		}
	case []interface{}:
		for i, item := range t {
			walk(fmt.Sprintf("%s[%d]", path, i), item, fn)
		}
	case nil:
	default:
		fn(path, t)
	}
}

// normalize deep-copies a decoded value, converting the container types the
// various decoders produce into map[string]interface{} and []interface{}.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case map[string]string:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = item
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case []string:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
