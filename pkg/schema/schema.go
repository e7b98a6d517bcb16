// Package schema implements GenerationSchema, the JSON-Schema-shaped
// descriptor used for structured output, with the canonical serialization
// rules required for golden-file stability.
package schema

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Kind identifies a schema node's JSON type.
type Kind string

const (
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindNull    Kind = "null"
	KindRef     Kind = "$ref"
)

// GenerationSchema is a tree-structured JSON-Schema value.
type GenerationSchema struct {
	Kind        Kind
	Description string

	// Object
	Properties           map[string]*GenerationSchema
	Required             []string
	SuppressAdditional   bool // when true, omit additionalProperties entirely

	// Array
	Items    *GenerationSchema
	MinItems *int
	MaxItems *int

	// Scalar
	Enum    []string
	Minimum *float64
	Maximum *float64

	// $ref
	Ref string

	// Root-only: the $defs registry, keyed by fully qualified type name.
	Defs map[string]*GenerationSchema
}

// MarshalJSON writes the canonical serialization: keys in a fixed order,
// with properties, required names and $defs sorted by name.
func (s *GenerationSchema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, val interface{}) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, _ := json.Marshal(key)
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(vb)
		return nil
	}

	if s.Kind == KindRef {
		if err := write("$ref", s.Ref); err != nil {
			return nil, err
		}
		if s.Defs != nil {
			keys := make([]string, 0, len(s.Defs))
			for k := range s.Defs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if err := write("$defs", orderedDefs{keys: keys, defs: s.Defs}); err != nil {
				return nil, err
			}
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}

	if err := write("type", string(s.Kind)); err != nil {
		return nil, err
	}
	if s.Description != "" {
		if err := write("description", s.Description); err != nil {
			return nil, err
		}
	}

	switch s.Kind {
	case KindObject:
		keys := make([]string, 0, len(s.Properties))
		for k := range s.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		props := make(map[string]*GenerationSchema, len(keys))
		for _, k := range keys {
			props[k] = s.Properties[k]
		}
		if err := write("properties", orderedProps{keys: keys, props: props}); err != nil {
			return nil, err
		}
		if len(s.Required) > 0 {
			req := append([]string(nil), s.Required...)
			sort.Strings(req)
			if err := write("required", req); err != nil {
				return nil, err
			}
		}
		if !s.SuppressAdditional {
			if err := write("additionalProperties", false); err != nil {
				return nil, err
			}
		}
	case KindArray:
		if s.Items != nil {
			if err := write("items", s.Items); err != nil {
				return nil, err
			}
		}
		if s.MinItems != nil {
			if err := write("minItems", *s.MinItems); err != nil {
				return nil, err
			}
		}
		if s.MaxItems != nil {
			if err := write("maxItems", *s.MaxItems); err != nil {
				return nil, err
			}
		}
	case KindString:
		if len(s.Enum) > 0 {
			enum := append([]string(nil), s.Enum...)
			if err := write("enum", enum); err != nil {
				return nil, err
			}
		}
	case KindNumber, KindInteger:
		if s.Minimum != nil {
			if err := write("minimum", *s.Minimum); err != nil {
				return nil, err
			}
		}
		if s.Maximum != nil {
			if err := write("maximum", *s.Maximum); err != nil {
				return nil, err
			}
		}
	}

	if s.Defs != nil {
		keys := make([]string, 0, len(s.Defs))
		for k := range s.Defs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		defs := make(map[string]*GenerationSchema, len(keys))
		for _, k := range keys {
			defs[k] = s.Defs[k]
		}
		if err := write("$defs", orderedDefs{keys: keys, defs: defs}); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// orderedProps and orderedDefs marshal maps in a fixed key order, since
// Go's encoding/json always sorts map[string]any keys alphabetically
// already — but we keep an explicit type so the ordering is documented as
// an invariant of this package rather than an accident of the stdlib.
type orderedProps struct {
	keys  []string
	props map[string]*GenerationSchema
}

func (o orderedProps) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.props[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type orderedDefs struct {
	keys []string
	defs map[string]*GenerationSchema
}

func (o orderedDefs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.defs[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// JSONString returns the canonical serialization, optionally pretty-printed.
func (s *GenerationSchema) JSONString(prettyPrinted bool) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	if !prettyPrinted {
		return string(b), nil
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, b, "", "  "); err != nil {
		return "", err
	}
	return pretty.String(), nil
}

// Ref builds a root schema that is a $ref into Defs.
func Ref(name string, defs map[string]*GenerationSchema) *GenerationSchema {
	return &GenerationSchema{Kind: KindRef, Ref: "#/$defs/" + name, Defs: defs}
}
