package content

import "github.com/conduit-ai/conduit/pkg/schema"

// Generable is implemented by user types whose schema and (de)serialization
// are produced externally (by code generation, out of scope here); this
// package only consumes the resulting contract.
type Generable interface {
	// GenerationSchema returns this type's schema, typically a package-
	// level value computed once at init time by the generated code.
	GenerationSchema() *schema.GenerationSchema

	// FromContent constructs a value strictly: any type mismatch against
	// the schema fails.
	FromContent(c GeneratedContent) error

	// AsPartiallyGenerated returns the best-effort partial overlay type
	// for this value.
	AsPartiallyGenerated() PartiallyGenerated
}

// PartiallyGenerated is the companion overlay for a Generable value: every
// field is optional, and construction never fails for missing fields, only
// for type mismatches on fields that are present.
type PartiallyGenerated interface {
	// FromContent populates whatever fields are present in c, leaving the
	// rest at their zero/unset value. Returns an error only when a
	// present field's JSON type doesn't match the declared schema type.
	FromContent(c GeneratedContent) error
}

// MapPartiallyGenerated is a generic, reflection-free partial overlay
// usable by Generable types that don't need a bespoke struct: it simply
// tracks which top-level keys were present, in their generated order.
type MapPartiallyGenerated struct {
	Present map[string]GeneratedContent
	Order   []string
}

// NewMapPartiallyGenerated returns an empty overlay.
func NewMapPartiallyGenerated() *MapPartiallyGenerated {
	return &MapPartiallyGenerated{Present: map[string]GeneratedContent{}}
}

// FromContent implements PartiallyGenerated for object-shaped content; any
// non-object content is treated as presenting no fields (never an error,
// matching the "never throws for missing fields" contract — a type
// mismatch at the top level of a partial snapshot is common mid-stream).
func (p *MapPartiallyGenerated) FromContent(c GeneratedContent) error {
	p.Present = map[string]GeneratedContent{}
	p.Order = nil
	if c.Kind != KindObject {
		return nil
	}
	for _, prop := range c.Object {
		if _, exists := p.Present[prop.Key]; !exists {
			p.Order = append(p.Order, prop.Key)
		}
		p.Present[prop.Key] = prop.Value
	}
	return nil
}

// Get returns the value for key and whether it was present in the last
// FromContent call.
func (p *MapPartiallyGenerated) Get(key string) (GeneratedContent, bool) {
	v, ok := p.Present[key]
	return v, ok
}
