package retryutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayDoublesUntilCap(t *testing.T) {
	b := Backoff{Base: time.Second, Cap: 10 * time.Second}
	assert.Equal(t, time.Duration(0), b.Delay(0))
	assert.Equal(t, 2*time.Second, b.Delay(1))
	assert.Equal(t, 4*time.Second, b.Delay(2))
	assert.Equal(t, 8*time.Second, b.Delay(3))
	assert.Equal(t, 10*time.Second, b.Delay(4)) // would be 16s, capped
	assert.Equal(t, 10*time.Second, b.Delay(5)) // would be 32s, capped
}

func TestSleepInterruptibleByContext(t *testing.T) {
	b := Backoff{Base: time.Minute, Cap: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Sleep(ctx, 1)
	assert.Error(t, err)
}

func TestSleepZeroDelayReturnsImmediately(t *testing.T) {
	b := Backoff{Base: 0, Cap: time.Second}
	err := b.Sleep(context.Background(), 1)
	assert.NoError(t, err)
}
