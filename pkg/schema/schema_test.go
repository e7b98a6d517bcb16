package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectSchemaSortsPropertiesAndRequired(t *testing.T) {
	s := &GenerationSchema{
		Kind: KindObject,
		Properties: map[string]*GenerationSchema{
			"zebra": {Kind: KindString},
			"apple": {Kind: KindString},
		},
		Required: []string{"zebra", "apple"},
	}
	out, err := s.JSONString(false)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"object","properties":{"apple":{"type":"string"},"zebra":{"type":"string"}},"required":["apple","zebra"],"additionalProperties":false}`, out)
}

func TestObjectSchemaSuppressesAdditionalPropertiesWhenFlagged(t *testing.T) {
	s := &GenerationSchema{Kind: KindObject, SuppressAdditional: true}
	out, err := s.JSONString(false)
	require.NoError(t, err)
	assert.NotContains(t, out, "additionalProperties")
}

func TestRefRootEmitsOnlyRefAndDefs(t *testing.T) {
	defs := map[string]*GenerationSchema{"Foo": {Kind: KindString}}
	s := Ref("Foo", defs)
	out, err := s.JSONString(false)
	require.NoError(t, err)
	assert.Equal(t, `{"$ref":"#/$defs/Foo","$defs":{"Foo":{"type":"string"}}}`, out)
}

func TestArraySchemaIncludesItemsAndBounds(t *testing.T) {
	min, max := 1, 5
	s := &GenerationSchema{Kind: KindArray, Items: &GenerationSchema{Kind: KindNumber}, MinItems: &min, MaxItems: &max}
	out, err := s.JSONString(false)
	require.NoError(t, err)
	assert.Contains(t, out, `"items":{"type":"number"}`)
	assert.Contains(t, out, `"minItems":1`)
	assert.Contains(t, out, `"maxItems":5`)
}

func TestDefsAreSortedByKey(t *testing.T) {
	s := &GenerationSchema{
		Kind: KindObject,
		Defs: map[string]*GenerationSchema{
			"Zeta":  {Kind: KindString},
			"Alpha": {Kind: KindString},
		},
	}
	out, err := s.JSONString(false)
	require.NoError(t, err)
	assert.Less(t, indexOf(out, "Alpha"), indexOf(out, "Zeta"))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
