package moderation

import "sync"

// resultCache is a bounded FIFO cache of moderation results keyed by
// (author, message). Identical text from the same author is never
// re-evaluated while the entry lives; once the cache fills, the oldest
// entries are evicted so memory stays bounded over long sessions.
type resultCache struct {
	mu    sync.Mutex
	max   int
	items map[string]Result
	order []string
}

func newResultCache(max int) *resultCache {
	if max <= 0 {
		max = 10000
	}
	return &resultCache{
		max:   max,
		items: make(map[string]Result, max/10),
	}
}

func cacheKey(author, message string) string {
	return author + "\x00" + message
}

func (c *resultCache) get(author, message string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.items[cacheKey(author, message)]
	return r, ok
}

func (c *resultCache) put(author, message string, r Result) {
	key := cacheKey(author, message)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; exists {
		c.items[key] = r
		return
	}
	for len(c.items) >= c.max && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
	c.items[key] = r
	c.order = append(c.order, key)
}

func (c *resultCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]Result, c.max/10)
	c.order = nil
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
