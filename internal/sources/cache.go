package sources

import (
	"sync"
	"time"
)

// Cache holds the last successfully resolved Quote per instrument. It is read
// for staleness decisions and diagnostics only; a stale quote is never
// replayed as if it were fresh.
type Cache struct {
	mu   sync.Mutex
	last map[string]Quote
}

func NewCache() *Cache {
	return &Cache{last: map[string]Quote{}}
}

func (c *Cache) Update(quotes map[string]Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, q := range quotes {
		c.last[id] = q
	}
}

func (c *Cache) Last(id string) (Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.last[id]
	return q, ok
}

// Age returns how old the cached quote for id is, if one exists.
func (c *Cache) Age(id string, now time.Time) (time.Duration, bool) {
	q, ok := c.Last(id)
	if !ok {
		return 0, false
	}
	return now.Sub(q.FetchedAt), true
}
