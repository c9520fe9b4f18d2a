package features

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Type is the value type of a feature
type Type int

const (
	TypeBool Type = iota
	TypeEnum
	TypeNumber
)

func (t Type) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeEnum:
		return "enum"
	case TypeNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Value is a single feature value: a boolean, a categorical enum or a number
type Value struct {
	typ Type
	b   bool
	s   string
	n   float64
}

func Bool(b bool) Value        { return Value{typ: TypeBool, b: b} }
func Enum(s string) Value      { return Value{typ: TypeEnum, s: s} }
func Number(n float64) Value   { return Value{typ: TypeNumber, n: n} }
func (v Value) Type() Type     { return v.typ }
func (v Value) AsBool() bool   { return v.typ == TypeBool && v.b }
func (v Value) AsEnum() string { return v.s }

// AsNumber returns the numeric form of the value. Booleans map to 0 and 1 so
// every value can be fed to a numeric model; enums map to 0.
func (v Value) AsNumber() float64 {
	switch v.typ {
	case TypeBool:
		if v.b {
			return 1
		}
		return 0
	case TypeNumber:
		return v.n
	}
	return 0
}

// Raw returns the plain Go value
func (v Value) Raw() interface{} {
	switch v.typ {
	case TypeBool:
		return v.b
	case TypeEnum:
		return v.s
	default:
		return v.n
	}
}

func (v Value) String() string {
	switch v.typ {
	case TypeBool:
		return strconv.FormatBool(v.b)
	case TypeEnum:
		return v.s
	default:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Raw())
}

// Vector is the immutable set of feature values extracted for one resource
type Vector struct {
	values map[string]Value
}

// NewVector copies values into a new vector
func NewVector(values map[string]Value) Vector {
	out := make(map[string]Value, len(values))
	for k, v := range values {
		out[k] = v
	}
	return Vector{values: out}
}

// Get returns the named value and whether it exists
func (v Vector) Get(name string) (Value, bool) {
	val, ok := v.values[name]
	return val, ok
}

func (v Vector) Bool(name string) bool      { return v.values[name].AsBool() }
func (v Vector) Enum(name string) string    { return v.values[name].AsEnum() }
func (v Vector) Number(name string) float64 { return v.values[name].AsNumber() }
func (v Vector) Len() int                   { return len(v.values) }

// Names returns the feature names in sorted order
func (v Vector) Names() []string {
	names := make([]string, 0, len(v.values))
	for name := range v.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// With returns a copy of the vector with one value replaced
func (v Vector) With(name string, val Value) Vector {
	out := NewVector(v.values)
	out.values[name] = val
	return out
}

// Map returns the vector as plain Go values
func (v Vector) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(v.values))
	for k, val := range v.values {
		out[k] = val.Raw()
	}
	return out
}

// MarshalJSON encodes the vector as a flat object; encoding/json sorts the keys
func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.values)
}
