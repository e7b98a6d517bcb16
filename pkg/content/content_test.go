package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSONRoundTrip(t *testing.T) {
	c, err := FromJSON(`{"name":"Bob","age":30,"tags":["a","b"]}`)
	require.NoError(t, err)
	assert.Equal(t, KindObject, c.Kind)
	name, ok := c.Get("name")
	require.True(t, ok)
	assert.Equal(t, "Bob", name.Str)
	age, ok := c.Get("age")
	require.True(t, ok)
	assert.Equal(t, int64(30), age.Int())
}

func TestFromPartialJSONYieldsPartial(t *testing.T) {
	c, complete, err := FromPartialJSON(`{"summary":"All good","sco`)
	require.NoError(t, err)
	assert.False(t, complete)
	summary, ok := c.Get("summary")
	require.True(t, ok)
	assert.Equal(t, "All good", summary.Str)
	_, hasScore := c.Get("score")
	assert.False(t, hasScore)
}

func TestEqualStructural(t *testing.T) {
	a := Obj(Property{Key: "x", Value: Number(1)})
	b := Obj(Property{Key: "x", Value: Number(1)})
	c := Obj(Property{Key: "x", Value: Number(2)})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestMapPartiallyGeneratedTracksPresence(t *testing.T) {
	pg := NewMapPartiallyGenerated()
	c, _ := FromJSON(`{"a":1}`)
	require.NoError(t, pg.FromContent(c))
	v, ok := pg.Get("a")
	assert.True(t, ok)
	assert.Equal(t, int64(1), v.Int())
	_, ok = pg.Get("b")
	assert.False(t, ok)
}
