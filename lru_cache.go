package condfmt

import (
	"container/list"
	"sync"
)

// statsEntry is one cached statistics record together with the scope it
// was computed for. Keeping the scope on the entry lets address-based
// invalidation test containment without re-parsing keys.
type statsEntry struct {
	key    string
	ruleID string
	rng    Range
	stats  *BatchRangeStatistics
}

// statsLRU is a mutex-guarded LRU store for statistics entries with a
// maximum size. When the store is full the least recently used entry is
// evicted, which bounds cache growth on sheets with many rule/range
// combinations.
type statsLRU struct {
	mu       sync.RWMutex
	capacity int
	cache    map[string]*list.Element
	lruList  *list.List
}

func newStatsLRU(capacity int) *statsLRU {
	return &statsLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lruList:  list.New(),
	}
}

// Load returns the entry for key and marks it most recently used.
func (c *statsLRU) Load(key string) (*statsEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lruList.MoveToFront(elem)
		return elem.Value.(*statsEntry), true
	}
	return nil, false
}

// Store adds or replaces an entry. Returns true if a colder entry was
// evicted to make room.
func (c *statsLRU) Store(entry *statsEntry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[entry.key]; ok {
		c.lruList.MoveToFront(elem)
		elem.Value = entry
		return false
	}

	evicted := false
	if c.lruList.Len() >= c.capacity {
		if oldest := c.lruList.Back(); oldest != nil {
			c.lruList.Remove(oldest)
			delete(c.cache, oldest.Value.(*statsEntry).key)
			evicted = true
		}
	}

	c.cache[entry.key] = c.lruList.PushFront(entry)
	return evicted
}

// Delete removes a key. Returns true if the key was present.
func (c *statsLRU) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lruList.Remove(elem)
		delete(c.cache, key)
		return true
	}
	return false
}

// Range calls f for each entry from most to least recently used without
// touching recency order. If f returns false, iteration stops.
func (c *statsLRU) Range(f func(*statsEntry) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for elem := c.lruList.Front(); elem != nil; elem = elem.Next() {
		if !f(elem.Value.(*statsEntry)) {
			break
		}
	}
}

// Len returns the current number of entries.
func (c *statsLRU) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lruList.Len()
}

// Clear removes all entries.
func (c *statsLRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*list.Element)
	c.lruList = list.New()
}
