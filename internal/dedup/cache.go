// internal/dedup/cache.go
package dedup

import "time"

// Defaults for the duplicate-suppression window and cache size.
const (
	DefaultTTL      = 30 * time.Second
	DefaultCapacity = 4096
)

// Cache suppresses re-dispatch of identical raw log lines seen within a
// TTL. The session log can record the same physical event more than
// once (replay windows), and side-effecting hook commands must not fire
// twice for it. Keys are the verbatim line text, not the parsed event.
//
// Owned by a single run loop; no internal locking.
type Cache struct {
	ttl      time.Duration
	capacity int
	seen     map[string]time.Time
	order    []string // insertion order, for over-capacity eviction
	now      func() time.Time
}

// NewCache creates a Cache with the given TTL and capacity ceiling.
// Non-positive values fall back to the defaults.
func NewCache(ttl time.Duration, capacity int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		ttl:      ttl,
		capacity: capacity,
		seen:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Seen reports whether signature was recorded within the TTL, and
// records it either way. The window slides: a hit refreshes the
// last-seen time, so a steady stream of duplicates stays suppressed.
func (c *Cache) Seen(signature string) bool {
	now := c.now()

	last, ok := c.seen[signature]
	duplicate := ok && now.Sub(last) < c.ttl

	if !ok {
		c.order = append(c.order, signature)
	}
	c.seen[signature] = now

	if len(c.seen) > c.capacity {
		c.trim(now)
	}
	return duplicate
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return len(c.seen)
}

// trim bounds memory without a background sweep: expired entries go
// first, then oldest-inserted entries until under the ceiling.
func (c *Cache) trim(now time.Time) {
	kept := c.order[:0]
	for _, sig := range c.order {
		last, ok := c.seen[sig]
		if !ok {
			continue
		}
		if now.Sub(last) >= c.ttl {
			delete(c.seen, sig)
			continue
		}
		kept = append(kept, sig)
	}
	c.order = kept

	for len(c.seen) > c.capacity && len(c.order) > 0 {
		delete(c.seen, c.order[0])
		c.order = c.order[1:]
	}
}
