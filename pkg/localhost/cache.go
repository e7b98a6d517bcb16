// Package localhost implements the local-inference host: a model instance
// loader with LRU eviction, warmup, a streaming detokenizer, and the
// runtime feature-flag policy on-device engines are configured with.
package localhost

import (
	"context"
	"sync"
	"time"

	"github.com/conduit-ai/conduit/pkg/provider/aierr"
)

// Engine is the opaque on-device inference handle the cache owns the
// lifecycle of. The actual tensor execution is an external collaborator;
// this package only sequences loading, eviction, and warmup around it.
type Engine interface {
	Close() error
}

// Loader loads an Engine for a model id. Implementations live alongside a
// concrete on-device runtime adapter.
type Loader interface {
	Load(ctx context.Context, modelID string) (Engine, error)
}

// LoadedModel is one cache entry.
type LoadedModel struct {
	ModelID        string
	Handle         Engine
	LoadedAt       time.Time
	LastAccessedAt time.Time
}

// Cache owns loaded model handles for its lifetime and is the sole mutator
// of its map; eviction closes handles deterministically. It is the sole
// writer of its own state, guarded by a mutex — serialized reads and
// writes, matching the kernel's actor-equivalent discipline.
type Cache struct {
	mu              sync.Mutex
	loader          Loader
	maxLoadedModels int
	now             func() time.Time
	models          map[string]*LoadedModel
}

// NewCache returns a Cache with the given loader and capacity.
// maxLoadedModels <= 0 means unbounded.
func NewCache(loader Loader, maxLoadedModels int) *Cache {
	return &Cache{
		loader:          loader,
		maxLoadedModels: maxLoadedModels,
		now:             time.Now,
		models:          map[string]*LoadedModel{},
	}
}

// Load returns the cached entry for modelID, loading it (and evicting the
// least-recently-accessed entry first if at capacity) if not already
// present. Repeated loads for the same id reuse the existing entry and
// refresh LastAccessedAt.
func (c *Cache) Load(ctx context.Context, modelID string) (*LoadedModel, error) {
	c.mu.Lock()
	if m, ok := c.models[modelID]; ok {
		m.LastAccessedAt = c.now()
		c.mu.Unlock()
		return m, nil
	}
	if c.maxLoadedModels > 0 && len(c.models) >= c.maxLoadedModels {
		c.evictLRULocked()
	}
	c.mu.Unlock()

	handle, err := c.loader.Load(ctx, modelID)
	if err != nil {
		return nil, aierr.Wrap(aierr.KindInternal, "", "failed to load model \""+modelID+"\"", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.models[modelID]; ok {
		// Lost a race with a concurrent Load of the same id: keep the
		// existing entry, discard the handle we just built.
		existing.LastAccessedAt = c.now()
		handle.Close()
		return existing, nil
	}
	if c.maxLoadedModels > 0 && len(c.models) >= c.maxLoadedModels {
		c.evictLRULocked()
	}
	m := &LoadedModel{ModelID: modelID, Handle: handle, LoadedAt: c.now(), LastAccessedAt: c.now()}
	c.models[modelID] = m
	return m, nil
}

// evictLRULocked evicts the entry with the least-recent LastAccessedAt.
// Callers must hold mu.
func (c *Cache) evictLRULocked() {
	var lruID string
	var lruAt time.Time
	first := true
	for id, m := range c.models {
		if first || m.LastAccessedAt.Before(lruAt) {
			lruID = id
			lruAt = m.LastAccessedAt
			first = false
		}
	}
	if lruID == "" {
		return
	}
	m := c.models[lruID]
	delete(c.models, lruID)
	m.Handle.Close()
}

// Unload deterministically releases the entry for modelID, if loaded.
func (c *Cache) Unload(modelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.models[modelID]
	if !ok {
		return nil
	}
	delete(c.models, modelID)
	return m.Handle.Close()
}

// Loaded reports the model ids currently cached.
func (c *Cache) Loaded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.models))
	for id := range c.models {
		out = append(out, id)
	}
	return out
}

// WarmupFunc runs a tiny generation against a loaded engine to force JIT or
// shader kernel compilation; callers supply the few-tokens generation.
type WarmupFunc func(ctx context.Context, handle Engine) error

// Warmup loads (if needed) and warms up modelID.
func (c *Cache) Warmup(ctx context.Context, modelID string, warmup WarmupFunc) error {
	m, err := c.Load(ctx, modelID)
	if err != nil {
		return err
	}
	if warmup == nil {
		return nil
	}
	return warmup(ctx, m.Handle)
}
