// Package cache provides a weighted least recently used cache.
package cache

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrKeyExists     = errors.New("key already exists in cache")
	ErrInvalidWeight = errors.New("weight must be positive and within budget")
)

// Cache holds values up to a total weight budget, evicting the least recently
// used entries once the budget is exceeded.
type Cache[V any] interface {
	// Insert adds value under key. Existing keys are not replaced.
	Insert(key string, value V, weight int) error

	// Retrieve returns the value under key and marks it as recently used.
	Retrieve(key string) (V, bool)

	// Weight returns the total weight of the cached entries.
	Weight() int

	// Budget returns the maximum total weight.
	Budget() int

	Len() int

	Clear()
}

type entry[V any] struct {
	prev, next *entry[V]

	key    string
	value  V
	weight int
}

type cache[V any] struct {
	log *logrus.Entry

	mu      sync.Mutex
	entries map[string]*entry[V]
	// head is the most recently used entry, tail the least.
	head, tail *entry[V]
	weight     int
	budget     int
}

// New returns an empty cache holding up to budget total weight.
func New[V any](budget int) Cache[V] {
	return &cache[V]{
		log:     logrus.StandardLogger().WithField("type", "cache"),
		entries: make(map[string]*entry[V]),
		budget:  budget,
	}
}

func (c *cache[V]) Insert(key string, value V, weight int) error {
	if weight <= 0 || weight > c.budget {
		return ErrInvalidWeight
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return ErrKeyExists
	}

	e := &entry[V]{key: key, value: value, weight: weight}
	c.entries[key] = e
	c.pushFront(e)
	c.weight += weight

	for c.weight > c.budget {
		evicted := c.tail
		c.unlink(evicted)
		delete(c.entries, evicted.key)
		c.weight -= evicted.weight

		c.log.WithFields(logrus.Fields{
			"key":    evicted.key,
			"weight": evicted.weight,
		}).Trace("evicted cache entry")
	}

	return nil
}

func (c *cache[V]) Retrieve(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}

	if e != c.head {
		c.unlink(e)
		c.pushFront(e)
	}
	return e.value, true
}

func (c *cache[V]) Weight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.weight
}

func (c *cache[V]) Budget() int {
	return c.budget
}

func (c *cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry[V])
	c.head = nil
	c.tail = nil
	c.weight = 0
}

func (c *cache[V]) pushFront(e *entry[V]) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *cache[V]) unlink(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}
