// Package schema describes record shapes as immutable trees of typed field
// descriptors, renders them as JSON Schema and checks records against them.
//
// A schema is built once at package initialization from the constructors in
// this file and never mutated afterwards, so a *Type may be shared freely:
// the same descriptor can be a stream's top-level schema and a nested
// property of another stream.
//
//	var Destination = schema.ClosedObject(
//	    schema.Required("id", schema.String()),
//	    schema.Prop("rate_limit_period", schema.Enum("second", "minute", "hour", "concurrent")),
//	)
//
// Optional properties accept null as well as absence. Required properties
// accept neither.
package schema

import (
	"fmt"
	"sort"
)

// Kind is the JSON type family of a descriptor.
type Kind string

const (
	KindString   Kind = "string"
	KindBoolean  Kind = "boolean"
	KindInteger  Kind = "integer"
	KindDateTime Kind = "date-time"
	KindObject   Kind = "object"
	KindArray    Kind = "array"
)

// Type describes the shape of a value.
type Type struct {
	kind Kind

	// string kinds
	enum []string

	// object kinds
	properties []*Property
	index      map[string]int
	closed     bool
	values     *Type

	// array kinds
	items *Type
}

// Property is a named, typed member of an object.
type Property struct {
	Name        string
	Type        *Type
	Required    bool
	Description string
}

// String returns a string descriptor.
func String() *Type { return &Type{kind: KindString} }

// Boolean returns a boolean descriptor.
func Boolean() *Type { return &Type{kind: KindBoolean} }

// Integer returns an integer descriptor. JSON numbers without a fractional
// part are accepted and coerced to int64 during conformance.
func Integer() *Type { return &Type{kind: KindInteger} }

// DateTime returns an RFC 3339 timestamp descriptor.
func DateTime() *Type { return &Type{kind: KindDateTime} }

// Enum returns a string descriptor restricted to values.
func Enum(values ...string) *Type {
	return &Type{kind: KindString, enum: append([]string(nil), values...)}
}

// Array returns an array descriptor whose elements match items.
func Array(items *Type) *Type {
	return &Type{kind: KindArray, items: items}
}

// Object returns an open object descriptor: undeclared members are allowed
// and unchecked.
func Object(props ...*Property) *Type {
	return newObject(false, nil, props)
}

// ClosedObject returns an object descriptor that rejects undeclared members.
func ClosedObject(props ...*Property) *Type {
	return newObject(true, nil, props)
}

// MapOf returns an object descriptor with arbitrary keys whose values must
// match values.
func MapOf(values *Type) *Type {
	return newObject(false, values, nil)
}

func newObject(closed bool, values *Type, props []*Property) *Type {
	t := &Type{
		kind:       KindObject,
		properties: make([]*Property, 0, len(props)),
		index:      make(map[string]int, len(props)),
		closed:     closed,
		values:     values,
	}
	for _, p := range props {
		if p == nil || p.Type == nil {
			panic("schema: nil property or property type")
		}
		if _, dup := t.index[p.Name]; dup {
			panic(fmt.Sprintf("schema: duplicate property %q", p.Name))
		}
		cp := *p
		t.index[p.Name] = len(t.properties)
		t.properties = append(t.properties, &cp)
	}
	return t
}

// Prop declares an optional property.
func Prop(name string, t *Type) *Property {
	return &Property{Name: name, Type: t}
}

// Required declares a required property.
func Required(name string, t *Type) *Property {
	return &Property{Name: name, Type: t, Required: true}
}

// Describe returns a copy of p carrying a description.
func (p *Property) Describe(description string) *Property {
	cp := *p
	cp.Description = description
	return &cp
}

// Kind returns the descriptor's kind.
func (t *Type) Kind() Kind { return t.kind }

// Closed reports whether an object rejects undeclared members.
func (t *Type) Closed() bool { return t.closed }

// Values returns the value type of an open map, or nil.
func (t *Type) Values() *Type { return t.values }

// Properties returns the declared members of an object in declaration order.
func (t *Type) Properties() []*Property {
	return append([]*Property(nil), t.properties...)
}

// Property looks up a declared member by name.
func (t *Type) Property(name string) (*Property, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.properties[i], true
}

// RequiredNames returns the names of required members in declaration order.
func (t *Type) RequiredNames() []string {
	var names []string
	for _, p := range t.properties {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

func (t *Type) allows(value string) bool {
	for _, v := range t.enum {
		if v == value {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
