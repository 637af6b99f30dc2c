package silo

import "fmt"

// Cache is a capacity-bounded registry assigning dense, 1-based indices to
// named items, so that "index 0" can be reserved to mean "unset". The action
// graph and system registry use the same 1-based convention with their own
// name maps and slices; they are not built on Cache.
type Cache[T any] interface {
	GetIndex(string) (int, bool)
	GetItem(int) *T
	GetItem32(uint32) *T
	Register(string, T) (int, error)
}

// SimpleCache is the default Cache implementation.
type SimpleCache[T any] struct {
	items       []T
	itemIndices map[string]int
	maxCapacity int
}

var _ Cache[any] = &SimpleCache[any]{}

// GetIndex returns the 1-based index registered under key, if any.
func (c *SimpleCache[T]) GetIndex(key string) (int, bool) {
	index, ok := c.itemIndices[key]
	return index, ok
}

// GetItem returns a pointer to the item at the given 1-based index.
func (c *SimpleCache[T]) GetItem(index int) *T {
	return &c.items[index-1]
}

// GetItem32 is GetItem for callers holding a uint32 index.
func (c *SimpleCache[T]) GetItem32(index uint32) *T {
	return &c.items[index-1]
}

// Register assigns the next dense index to item under key, or returns the
// existing index if key was already registered (idempotent, per spec §4.1's
// "intern" semantics).
func (c *SimpleCache[T]) Register(key string, item T) (int, error) {
	if existing, ok := c.itemIndices[key]; ok {
		return existing, nil
	}
	if len(c.itemIndices) >= c.maxCapacity {
		return -1, fmt.Errorf("cache at maximum capacity (%d)", c.maxCapacity)
	}
	c.items = append(c.items, item)
	idx := len(c.items)
	c.itemIndices[key] = idx
	return idx, nil
}

// Clear empties the cache, releasing all registered items and indices.
func (c *SimpleCache[T]) Clear() {
	c.items = c.items[:0]
	c.itemIndices = make(map[string]int)
}
