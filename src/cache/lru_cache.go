package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Entry holds a cached value with its expiry.
type Entry[V any] struct {
	Value     V         `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LRU is a thread-safe least-recently-used cache with a per-entry TTL.
// A zero TTL disables expiry.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List
	now      func() time.Time
}

type node[V any] struct {
	key   string
	entry Entry[V]
}

// New creates a cache holding at most capacity entries. Capacity below one
// is treated as one.
func New[V any](capacity int, ttl time.Duration) *LRU[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
		now:      time.Now,
	}
}

func (c *LRU[V]) expired(e Entry[V]) bool {
	return c.ttl > 0 && c.now().After(e.ExpiresAt)
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	n := elem.Value.(*node[V])
	if c.expired(n.entry) {
		c.order.Remove(elem)
		delete(c.items, key)
		return zero, false
	}
	c.order.MoveToFront(elem)
	return n.entry.Value, true
}

// Set stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *LRU[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := Entry[V]{Value: value, ExpiresAt: c.now().Add(c.ttl)}
	if elem, ok := c.items[key]; ok {
		elem.Value.(*node[V]).entry = e
		c.order.MoveToFront(elem)
		return
	}
	c.items[key] = c.order.PushFront(&node[V]{key: key, entry: e})
	c.evict()
}

func (c *LRU[V]) evict() {
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*node[V]).key)
	}
}

// Len returns the number of entries, including ones not yet swept.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear drops every entry.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}

// Dump snapshots live entries for persistence.
func (c *LRU[V]) Dump() map[string]Entry[V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	dump := make(map[string]Entry[V], len(c.items))
	for k, elem := range c.items {
		if n := elem.Value.(*node[V]); !c.expired(n.entry) {
			dump[k] = n.entry
		}
	}
	return dump
}

// Restore replaces the contents with a previous Dump, skipping expired
// entries and enforcing capacity.
func (c *LRU[V]) Restore(dump map[string]Entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[string]*list.Element, c.capacity)
	for k, e := range dump {
		if c.expired(e) {
			continue
		}
		c.items[k] = c.order.PushFront(&node[V]{key: k, entry: e})
	}
	c.evict()
}

// HashKey derives a fixed-size cache key from arbitrary text.
func HashKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
