package localhost

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	id     string
	closed bool
}

func (f *fakeEngine) Close() error { f.closed = true; return nil }

type fakeLoader struct {
	loaded map[string]*fakeEngine
}

func (l *fakeLoader) Load(ctx context.Context, modelID string) (Engine, error) {
	e := &fakeEngine{id: modelID}
	l.loaded[modelID] = e
	return e, nil
}

func TestLRUEvictionOrder(t *testing.T) {
	loader := &fakeLoader{loaded: map[string]*fakeEngine{}}
	c := NewCache(loader, 1)
	var tick time.Time
	c.now = func() time.Time { tick = tick.Add(time.Second); return tick }

	_, err := c.Load(context.Background(), "A")
	require.NoError(t, err)
	_, err = c.Load(context.Background(), "B")
	require.NoError(t, err)

	assert.True(t, loader.loaded["A"].closed, "A should have been evicted before B loaded")
	assert.False(t, loader.loaded["B"].closed)
	assert.Equal(t, []string{"B"}, c.Loaded())

	_, err = c.Load(context.Background(), "A")
	require.NoError(t, err)
	assert.True(t, loader.loaded["B"].closed, "B should be evicted when A reloads")
}

func TestLoadReusesExistingEntry(t *testing.T) {
	loader := &fakeLoader{loaded: map[string]*fakeEngine{}}
	c := NewCache(loader, 2)
	m1, err := c.Load(context.Background(), "A")
	require.NoError(t, err)
	m2, err := c.Load(context.Background(), "A")
	require.NoError(t, err)
	assert.Same(t, m1.Handle, m2.Handle)
}
