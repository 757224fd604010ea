// Package registry defines the component prop schemas the validator
// enforces. Schemas are data, compiled into an indexed Registry at startup;
// the built-in set covers every component type the generator may emit.
package registry

import (
	"fmt"
	"sort"
)

// FieldKind is the expected value shape of a prop.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindNumber FieldKind = "number"
	KindBool   FieldKind = "bool"
	KindColor  FieldKind = "color"
	KindList   FieldKind = "list"
	KindObject FieldKind = "object"
)

// Field is one prop in a component schema.
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
	// Default fills the prop when absent. Required fields have no default.
	Default any
	// Min/Max bound numeric props after coercion. Nil means unbounded.
	Min *float64
	Max *float64
	// Enum restricts string props to these values. Empty means any.
	Enum []string
}

// Schema describes one component type.
type Schema struct {
	Type string
	// TextBearing marks types whose text content participates in adaptive
	// font sizing.
	TextBearing bool
	Fields      []Field

	index map[string]*Field
}

// Field returns the schema field by prop name, or nil.
func (s *Schema) Field(name string) *Field {
	return s.index[name]
}

// RequiredFields returns required field names in declaration order.
func (s *Schema) RequiredFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// Registry indexes compiled schemas by component type.
type Registry struct {
	schemas map[string]*Schema
}

// Compile builds a Registry from schema definitions. Duplicate types and
// malformed fields are rejected here so the validator can assume clean
// schemas.
func Compile(schemas []Schema) (*Registry, error) {
	r := &Registry{schemas: make(map[string]*Schema, len(schemas))}
	for i := range schemas {
		s := schemas[i]
		if s.Type == "" {
			return nil, fmt.Errorf("schema %d: empty type", i)
		}
		if _, dup := r.schemas[s.Type]; dup {
			return nil, fmt.Errorf("schema %q: duplicate type", s.Type)
		}
		s.index = make(map[string]*Field, len(s.Fields))
		for j := range s.Fields {
			f := &s.Fields[j]
			if f.Name == "" {
				return nil, fmt.Errorf("schema %q: field %d has empty name", s.Type, j)
			}
			if _, dup := s.index[f.Name]; dup {
				return nil, fmt.Errorf("schema %q: duplicate field %q", s.Type, f.Name)
			}
			if f.Required && f.Default != nil {
				return nil, fmt.Errorf("schema %q: field %q is required but has a default", s.Type, f.Name)
			}
			if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
				return nil, fmt.Errorf("schema %q: field %q: min > max", s.Type, f.Name)
			}
			s.index[f.Name] = f
		}
		r.schemas[s.Type] = &s
	}
	return r, nil
}

// Lookup returns the schema for a component type.
func (r *Registry) Lookup(componentType string) (*Schema, bool) {
	s, ok := r.schemas[componentType]
	return s, ok
}

// Types returns all registered component types, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.schemas))
	for t := range r.schemas {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
