// Package cache holds the view served to readers. The presenter replaces it
// wholesale; readers always see a complete view.
package cache

import (
	"sync"

	"ghostwatch/pkg/domain"
)

// Cache guards a single view.
type Cache struct {
	mu     sync.RWMutex
	view   *domain.View
	nextID int
	subs   map[int]chan struct{}
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{subs: make(map[int]chan struct{})}
}

// Replace installs view and notifies subscribers without blocking.
func (c *Cache) Replace(view domain.View) {
	c.mu.Lock()
	c.view = &view
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	c.mu.Unlock()
}

// Current returns the installed view and whether one has been installed.
func (c *Cache) Current() (domain.View, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.view == nil {
		return domain.View{}, false
	}
	return *c.view, true
}

// Subscribe returns a channel signalled after each Replace and a function
// that cancels the subscription. Signals coalesce when the reader lags.
func (c *Cache) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (c *Cache) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}
