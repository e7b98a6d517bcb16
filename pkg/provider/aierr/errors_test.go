package aierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRetryableByKind(t *testing.T) {
	assert.True(t, IsRetryable(NewRateLimit("p", "slow down")))
	assert.True(t, IsRetryable(NewProviderOverload("p", "busy")))
	assert.True(t, IsRetryable(NewTimeout("p", "too slow", nil)))
	assert.True(t, IsRetryable(NewNetwork("p", "refused", nil)))
	assert.False(t, IsRetryable(NewInvalidRequest("p", "bad input")))
	assert.False(t, IsRetryable(NewAuthentication("p", "bad key")))
}

func TestKindOfUnwrapsWrappedErrors(t *testing.T) {
	base := NewMissingTool("lookup")
	wrapped := errors.Join(errors.New("context"), base)
	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindMissingTool, kind)
}

func TestIsMatchesByKindNotMessage(t *testing.T) {
	a := NewRateLimit("openai", "first message")
	b := NewRateLimit("anthropic", "different message")
	assert.True(t, errors.Is(a, b))

	c := NewTimeout("openai", "slow", nil)
	assert.False(t, errors.Is(a, c))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("socket reset")
	err := NewNetwork("openai", "request failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "request failed")
	assert.Contains(t, err.Error(), "openai")
}
