// Package content implements GeneratedContent, the library's dynamic JSON
// bridge value between wire JSON and typed Generable values, plus the
// Generable/PartiallyGenerated contracts structured output is built on.
package content

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/conduit-ai/conduit/pkg/jsonpartial"
	"github.com/conduit-ai/conduit/pkg/provider/aierr"
)

// Kind identifies which JSON shape a GeneratedContent node holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Property is one key/value pair of an object node, preserving insertion
// order (object identity for stable diffing across partial snapshots).
type Property struct {
	Key   string
	Value GeneratedContent
}

// GeneratedContent is a tagged union mirroring JSON: null, boolean, number,
// string, ordered array, or an ordered-property object.
type GeneratedContent struct {
	Kind    Kind
	Bool    bool
	Num     float64
	Str     string
	Array   []GeneratedContent
	Object  []Property
}

// Null returns the null content value.
func Null() GeneratedContent { return GeneratedContent{Kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) GeneratedContent { return GeneratedContent{Kind: KindBool, Bool: b} }

// Number wraps a float64.
func Number(n float64) GeneratedContent { return GeneratedContent{Kind: KindNumber, Num: n} }

// String wraps a string.
func String(s string) GeneratedContent { return GeneratedContent{Kind: KindString, Str: s} }

// Arr wraps an ordered array of content.
func Arr(items ...GeneratedContent) GeneratedContent {
	return GeneratedContent{Kind: KindArray, Array: items}
}

// Obj wraps an ordered set of properties.
func Obj(props ...Property) GeneratedContent {
	return GeneratedContent{Kind: KindObject, Object: props}
}

// Int returns the content's number as an int64, truncating any fractional
// part. Panics via zero-value semantics are avoided: callers should check
// Kind first when precision matters.
func (c GeneratedContent) Int() int64 { return int64(c.Num) }

// Float returns the content's number as a float64.
func (c GeneratedContent) Float() float64 { return c.Num }

// Get returns the value for key in an object node, and whether it was
// present.
func (c GeneratedContent) Get(key string) (GeneratedContent, bool) {
	for _, p := range c.Object {
		if p.Key == key {
			return p.Value, true
		}
	}
	return GeneratedContent{}, false
}

// Equal reports structural equality.
func (c GeneratedContent) Equal(other GeneratedContent) bool {
	if c.Kind != other.Kind {
		return false
	}
	switch c.Kind {
	case KindNull:
		return true
	case KindBool:
		return c.Bool == other.Bool
	case KindNumber:
		return c.Num == other.Num
	case KindString:
		return c.Str == other.Str
	case KindArray:
		if len(c.Array) != len(other.Array) {
			return false
		}
		for i := range c.Array {
			if !c.Array[i].Equal(other.Array[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(c.Object) != len(other.Object) {
			return false
		}
		for i := range c.Object {
			if c.Object[i].Key != other.Object[i].Key || !c.Object[i].Value.Equal(other.Object[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// FromJSON parses a complete JSON string strictly.
func FromJSON(jsonStr string) (GeneratedContent, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(jsonStr), &v); err != nil {
		return GeneratedContent{}, aierr.Wrap(aierr.KindInvalidRequest, "", "invalid JSON content", err)
	}
	return fromGoValue(v), nil
}

// FromPartialJSON parses a possibly-incomplete JSON string via the partial
// engine (strict parse first, then repair-and-parse).
func FromPartialJSON(jsonStr string) (GeneratedContent, bool, error) {
	v, complete, err := jsonpartial.Decode(jsonStr)
	if err != nil {
		return GeneratedContent{}, false, err
	}
	return fromGoValue(v), complete, nil
}

func fromGoValue(v interface{}) GeneratedContent {
	switch val := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(val)
	case float64:
		return Number(val)
	case string:
		return String(val)
	case []interface{}:
		items := make([]GeneratedContent, len(val))
		for i, it := range val {
			items[i] = fromGoValue(it)
		}
		return Arr(items...)
	case map[string]interface{}:
		// encoding/json doesn't preserve key order, so properties decoded
		// from a Go map are ordered alphabetically by key; the key order of
		// the source JSON is not kept.
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		props := make([]Property, 0, len(val))
		for _, k := range keys {
			props = append(props, Property{Key: k, Value: fromGoValue(val[k])})
		}
		return Obj(props...)
	default:
		return Null()
	}
}

// String implements fmt.Stringer for debugging.
func (c GeneratedContent) String() string {
	switch c.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%v", c.Bool)
	case KindNumber:
		return fmt.Sprintf("%v", c.Num)
	case KindString:
		return fmt.Sprintf("%q", c.Str)
	case KindArray:
		return fmt.Sprintf("%v", c.Array)
	case KindObject:
		return fmt.Sprintf("%v", c.Object)
	default:
		return "<invalid>"
	}
}
