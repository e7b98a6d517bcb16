package streampipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedYieldsOnlyOnStructuralChange(t *testing.T) {
	acc := NewStructuredAccumulator()

	_, yielded, err := acc.Feed(`{"name":"A`)
	require.NoError(t, err)
	assert.True(t, yielded)

	c, yielded, err := acc.Feed(`li`)
	require.NoError(t, err)
	// `li` holds none of the characters the parseability heuristic looks
	// for, so no parse is attempted on this chunk; it must still not error.
	_ = c
	_ = yielded

	c2, yielded2, err := acc.Feed(`ce"}`)
	require.NoError(t, err)
	assert.True(t, yielded2)
	name, ok := c2.Get("name")
	require.True(t, ok)
	assert.Equal(t, "Alice", name.Str)
}

func TestFeedOverflowsPastBufferCap(t *testing.T) {
	acc := NewStructuredAccumulator()
	big := make([]byte, MaxStructuredBufferBytes+1)
	for i := range big {
		big[i] = 'a'
	}
	_, _, err := acc.Feed(string(big))
	require.Error(t, err)

	_, _, err = acc.Feed(`{}`)
	require.Error(t, err)
}

func TestFinishFailsWhenNothingEverParsed(t *testing.T) {
	acc := NewStructuredAccumulator()
	acc.Feed(`not json at all +++`)
	err := acc.Finish()
	assert.Error(t, err)
}

func TestFinishSucceedsWhenEmpty(t *testing.T) {
	acc := NewStructuredAccumulator()
	err := acc.Finish()
	assert.NoError(t, err)
}

func TestFinishSucceedsAfterSuccessfulParse(t *testing.T) {
	acc := NewStructuredAccumulator()
	_, _, err := acc.Feed(`{"ok":true}`)
	require.NoError(t, err)
	assert.NoError(t, acc.Finish())
}
