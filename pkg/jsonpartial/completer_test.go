package jsonpartial

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteScenarios(t *testing.T) {
	cases := []struct{ in, want string }{
		{`{"a": 1`, `{"a": 1}`},
		{`[1, 2,`, `[1, 2]`},
		{`"hel`, `"hel"`},
		{`tr`, `true`},
		{`fal`, `false`},
		{`nu`, `null`},
		{`3.`, `3.0`},
		{`-`, `-0`},
		{``, `{}`},
		{`   `, `{}`},
		{`{"name"`, `{"name":null}`},
		{`{"user": {"name": "Bob"`, `{"user": {"name": "Bob"}}`},
		{`-.`, `-0.0`},
		{`1.23e`, `1.23e0`},
		{`{"k":`, `{"k":null}`},
	}
	for _, c := range cases {
		got, err := Complete(c.in, 0)
		require.NoError(t, err, "input %q", c.in)
		assert.Equal(t, c.want, got, "input %q", c.in)
	}
}

func TestCompleteResultsAreValidJSON(t *testing.T) {
	inputs := []string{`{"a": 1`, `[1, 2,`, `"hel`, `tr`, `{"name"`, `{"user": {"name": "Bob"`}
	for _, in := range inputs {
		got, err := Complete(in, 0)
		require.NoError(t, err)
		assert.True(t, json.Valid([]byte(got)), "completed %q from %q should be valid JSON", got, in)
	}
}

func TestRepairIdempotentOnValidJSON(t *testing.T) {
	valid := `{"a":1,"b":[1,2,3]}`
	got, ok := Repair(valid)
	assert.True(t, ok)
	assert.Equal(t, valid, got)
}

func TestDecodeIncremental(t *testing.T) {
	v, complete, err := Decode(`{"a": 1`)
	require.NoError(t, err)
	assert.False(t, complete)
	m, ok := v.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1.0, m["a"])

	v2, complete2, err2 := Decode(`{"a":1}`)
	require.NoError(t, err2)
	assert.True(t, complete2)
	assert.NotNil(t, v2)
}
