package environment

import (
	"sync"

	"typecore/internal/engine/ast"
	"typecore/internal/engine/types"
	"typecore/internal/shared/observability"
)

// DefinitionCache memoizes function and class declaration lookups by reference.
// It is off by default and only consulted while enabled; entries survive until
// Clear. One cache belongs to one analysis pass.
type DefinitionCache struct {
	mu        sync.Mutex
	enabled   bool
	functions map[types.Reference]definitionEntry[*ast.Define]
	classes   map[types.Reference]definitionEntry[*ast.Class]
}

type definitionEntry[T any] struct {
	definitions []T
	found       bool
}

func NewDefinitionCache() *DefinitionCache {
	return &DefinitionCache{
		functions: make(map[types.Reference]definitionEntry[*ast.Define]),
		classes:   make(map[types.Reference]definitionEntry[*ast.Class]),
	}
}

func (c *DefinitionCache) Enable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = true
}

func (c *DefinitionCache) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = false
}

func (c *DefinitionCache) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Clear drops every entry without changing the activation flag.
func (c *DefinitionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.functions = make(map[types.Reference]definitionEntry[*ast.Define])
	c.classes = make(map[types.Reference]definitionEntry[*ast.Class])
}

// Functions returns the cached lookup for ref, computing and storing it on a miss.
// When the cache is disabled compute runs every time.
func (c *DefinitionCache) Functions(ref types.Reference, compute func() ([]*ast.Define, bool)) ([]*ast.Define, bool) {
	return lookup(c, c.functions, "function", ref, compute)
}

func (c *DefinitionCache) Classes(ref types.Reference, compute func() ([]*ast.Class, bool)) ([]*ast.Class, bool) {
	return lookup(c, c.classes, "class", ref, compute)
}

func lookup[T any](c *DefinitionCache, table map[types.Reference]definitionEntry[T], kind string, ref types.Reference, compute func() ([]T, bool)) ([]T, bool) {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		observability.DefinitionCacheLookupsTotal.WithLabelValues(kind, "disabled").Inc()
		return compute()
	}
	if entry, ok := table[ref]; ok {
		c.mu.Unlock()
		observability.DefinitionCacheLookupsTotal.WithLabelValues(kind, "hit").Inc()
		return entry.definitions, entry.found
	}
	c.mu.Unlock()

	observability.DefinitionCacheLookupsTotal.WithLabelValues(kind, "miss").Inc()
	definitions, found := compute()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled {
		table[ref] = definitionEntry[T]{definitions: definitions, found: found}
	}
	return definitions, found
}
