package item

import (
	"sync"

	"github.com/papapumpkin/bootforge/internal/convert"
	"github.com/papapumpkin/bootforge/internal/metrics"
	"github.com/papapumpkin/bootforge/internal/telemetry"
)

// CacheState is the observable state of an item's cache entry.
type CacheState int

const (
	// CacheEmpty means every read recomputes.
	CacheEmpty CacheState = iota
	// CachePopulated means at least one resolved value is stored.
	CachePopulated
)

func (s CacheState) String() string {
	if s == CachePopulated {
		return "populated"
	}
	return "empty"
}

// Cache holds one item's resolved values: the flattened map snapshots and
// per-field resolutions. A nil snapshot means invalid.
//
// Every invalidation bumps gen. A value computed before an invalidation is
// stored only if gen has not moved, so a resolution racing a settings
// reload cannot repopulate the entry with stale data.
type Cache struct {
	mu       sync.Mutex
	gen      uint64
	resolved map[string]any
	raw      map[string]any
	fields   map[Field]any
}

func newCache() *Cache {
	return &Cache{fields: make(map[Field]any)}
}

// State reports whether any resolved value is cached. The raw snapshot
// does not depend on ancestors and is not counted.
func (c *Cache) State() CacheState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved == nil && len(c.fields) == 0 {
		return CacheEmpty
	}
	return CachePopulated
}

func (c *Cache) snapshot(resolved bool) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.raw
	if resolved {
		m = c.resolved
	}
	if m == nil {
		return nil, false
	}
	return convert.CloneDict(m), true
}

func (c *Cache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Cache) setSnapshot(gen uint64, resolved bool, m map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	if resolved {
		c.resolved = convert.CloneDict(m)
	} else {
		c.raw = convert.CloneDict(m)
	}
}

func (c *Cache) field(f Field) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.fields[f]
	if !ok {
		return nil, false
	}
	return convert.Clone(v), true
}

func (c *Cache) setField(gen uint64, f Field, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.fields[f] = convert.Clone(v)
}

// invalidateResolved drops everything derived from the inheritance chain,
// keeping the raw snapshot.
func (c *Cache) invalidateResolved() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.resolved = nil
	c.fields = make(map[Field]any)
}

// clear empties the entry.
func (c *Cache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.resolved = nil
	c.raw = nil
	c.fields = make(map[Field]any)
}

// CacheState returns the state of the item's cache entry.
func (i *Item) CacheState() CacheState {
	return i.cache.State()
}

// CleanCache empties the item's own cache entry.
func (i *Item) CleanCache() {
	i.cache.clear()
}

// InvalidateResolved drops the item's resolved values, as an ancestor
// change or a settings reload requires.
func (i *Item) InvalidateResolved() {
	i.cache.invalidateResolved()
}

// cachedField reads f through the cache, computing and storing it on a miss.
// With caching disabled every read computes.
func (i *Item) cachedField(f Field, kind string, compute func() (any, error)) (any, error) {
	if !i.env.cacheEnabled() {
		return compute()
	}
	if v, ok := i.cache.field(f); ok {
		metrics.CacheHitsTotal.WithLabelValues(i.family.String(), kind).Inc()
		return v, nil
	}
	metrics.CacheMissesTotal.WithLabelValues(i.family.String(), kind).Inc()
	gen := i.cache.generation()
	v, err := compute()
	if err != nil {
		return nil, err
	}
	i.cache.setField(gen, f, v)
	return convert.Clone(v), nil
}

// cleanCache runs after every mutation once the item is initialized. A
// change to a field that shapes the inheritance chain invalidates the
// resolved values of every descendant; the item's own entry is always
// emptied.
func (i *Item) cleanCache(f Field) error {
	if !i.initialized || !i.env.cacheEnabled() {
		return nil
	}
	defer func() {
		i.cache.clear()
		metrics.CacheInvalidationsTotal.WithLabelValues(i.family.String(), "self").Inc()
	}()

	if !i.inMemory || !cascades(f) || !i.registered() {
		return nil
	}
	deps, err := i.Descendants()
	if err != nil {
		return err
	}
	for _, d := range deps {
		d.cache.invalidateResolved()
		metrics.CacheInvalidationsTotal.WithLabelValues(d.family.String(), "descendant").Inc()
	}
	if len(deps) > 0 {
		i.env.log().Debugf("%s %q: %s changed, invalidated %d descendant caches", i.family, i.name, f, len(deps))
		i.env.emit(telemetry.KindCacheInvalidated, i, map[string]any{"field": string(f), "descendants": names(deps)})
	}
	return nil
}

func names(items []*Item) []string {
	out := make([]string, len(items))
	for n, it := range items {
		out[n] = it.family.String() + "/" + it.name
	}
	return out
}
