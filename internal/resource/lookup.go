package resource

import (
	"fmt"
	"strconv"
	"strings"
)

// Presence describes whether an attribute was declared and whether it carries a value
type Presence int

const (
	// Absent means the attribute was never declared (or was malformed and dropped)
	Absent Presence = iota
	// Empty means the attribute was declared without a usable value ("", [], {}, null)
	Empty
	// Present means the attribute was declared with a value
	Present
)

func (p Presence) String() string {
	switch p {
	case Absent:
		return "absent"
	case Empty:
		return "present-empty"
	case Present:
		return "present-with-value"
	default:
		return "unknown"
	}
}

// Lookup is the result of querying an attribute path. Value is a copy, so
// changing it never affects the declaration.
type Lookup struct {
	Presence Presence
	Value    interface{}
}

// IsPresent reports whether the attribute was declared with a value
func (l Lookup) IsPresent() bool {
	return l.Presence == Present
}

// IsDeclared reports whether the attribute was declared at all, even empty
func (l Lookup) IsDeclared() bool {
	return l.Presence != Absent
}

// Bool interprets the value as a boolean. Quoted booleans ("true") are accepted
// since HCL and YAML front-ends disagree on quoting.
func (l Lookup) Bool() (bool, bool) {
	if l.Presence != Present {
		return false, false
	}
	switch v := l.Value.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, false
		}
		return b, true
	}
	return false, false
}

// True reports whether the value is explicitly true
func (l Lookup) True() bool {
	b, ok := l.Bool()
	return ok && b
}

// String returns the value as a string if it is a scalar
func (l Lookup) String() (string, bool) {
	if l.Presence != Present {
		return "", false
	}
	return scalarString(l.Value)
}

// Number returns the value as a float64 if it is numeric or a numeric string
func (l Lookup) Number() (float64, bool) {
	if l.Presence != Present {
		return 0, false
	}
	switch v := l.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Strings returns every scalar in the value. A single scalar yields a
// one-element slice so callers can treat "x" and ["x"] the same way.
func (l Lookup) Strings() []string {
	if l.Presence != Present {
		return nil
	}
	switch v := l.Value.(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := scalarString(item); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		if s, ok := scalarString(v); ok {
			return []string{s}
		}
	}
	return nil
}

// Block is one nested configuration section. The root of a declaration is a
// block as well, so every accessor works at any depth.
type Block struct {
	attrs map[string]interface{}
}

// Get looks up a path of attribute names. When a path segment names a nested
// section, every instance of that section is searched and the first one that
// declares the remainder of the path wins.
func (b Block) Get(path ...string) Lookup {
	if len(path) == 0 || b.attrs == nil {
		return Lookup{Presence: Absent}
	}
	raw, ok := b.attrs[path[0]]
	if !ok {
		return Lookup{Presence: Absent}
	}
	if len(path) == 1 {
		if isEmpty(raw) {
			return Lookup{Presence: Empty, Value: normalize(raw)}
		}
		return Lookup{Presence: Present, Value: normalize(raw)}
	}

	best := Lookup{Presence: Absent}
	for _, child := range toBlocks(raw) {
		l := child.Get(path[1:]...)
		if l.Presence == Present {
			return l
		}
		if l.Presence > best.Presence {
			best = l
		}
	}
	return best
}

// Blocks returns the nested sections stored under name, always as a sequence.
// A single mapping yields one block, a list of mappings yields one block per
// entry, anything else yields none.
func (b Block) Blocks(name string) []Block {
	if b.attrs == nil {
		return nil
	}
	raw, ok := b.attrs[name]
	if !ok {
		return nil
	}
	return toBlocks(raw)
}

// BlocksAt follows a path of section names and returns every block at the end
func (b Block) BlocksAt(path ...string) []Block {
	current := []Block{b}
	for _, name := range path {
		var next []Block
		for _, blk := range current {
			next = append(next, blk.Blocks(name)...)
		}
		current = next
	}
	return current
}

func toBlocks(raw interface{}) []Block {
	switch v := raw.(type) {
	case map[string]interface{}:
		return []Block{{attrs: v}}
	case []interface{}:
		var out []Block
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, Block{attrs: m})
			}
		}
		return out
	}
	return nil
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	}
	return false
}

func scalarString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int, int32, int64, uint64:
		return fmt.Sprintf("%d", t), true
	}
	return "", false
}
