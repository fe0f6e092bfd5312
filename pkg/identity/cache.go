package identity

import (
	"osufetch/pkg/store"
)

// Cache is the durable display name to numeric id mapping. Entries are
// only ever added or overwritten, never expired.
type Cache struct {
	store *store.Store
}

// NewCache wraps an opened store
func NewCache(s *store.Store) *Cache {
	return &Cache{store: s}
}

// Get returns the cached id for name. A value that is present but not an
// integer is treated as a miss so the name gets resolved again.
func (c *Cache) Get(name string) (int, bool) {
	var id int
	ok, err := c.store.Get(name, &id)
	if err != nil || !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

// Put records the id for name and rewrites the backing file
func (c *Cache) Put(name string, id int) error {
	return c.store.Set(name, id)
}

// Forget removes name from the cache, including entries Get would reject.
// It reports false when name was not cached.
func (c *Cache) Forget(name string) (bool, error) {
	if !c.store.Has(name) {
		return false, nil
	}
	return true, c.store.Delete(name)
}

// Reset removes every cached identity
func (c *Cache) Reset() error {
	return c.store.Reset()
}

// Flush writes the current state to disk
func (c *Cache) Flush() error {
	return c.store.Flush()
}

// Entries returns a copy of all valid cached identities
func (c *Cache) Entries() map[string]int {
	out := make(map[string]int)
	for _, name := range c.store.Keys() {
		if id, ok := c.Get(name); ok {
			out[name] = id
		}
	}
	return out
}

// Path returns the backing file path
func (c *Cache) Path() string {
	return c.store.Path()
}
