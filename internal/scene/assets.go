package scene

import (
	"sort"
	"sync"
)

// Asset is a stored resource addressable by its project path.
type Asset struct {
	Path string
	Type string
}

// Catalog is an in-memory asset table. It backs reference coercion for
// plain string asset paths.
type Catalog struct {
	mu     sync.RWMutex
	byPath map[string]Asset
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byPath: make(map[string]Asset)}
}

// Add registers an asset, replacing any previous entry at the same path.
func (c *Catalog) Add(a Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byPath[a.Path] = a
}

// ResolveAsset implements coerce.AssetResolver.
func (c *Catalog) ResolveAsset(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.byPath[path]
	if !ok {
		return nil, false
	}
	return a, true
}

// Paths returns all registered asset paths, sorted.
func (c *Catalog) Paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	paths := make([]string, 0, len(c.byPath))
	for p := range c.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
