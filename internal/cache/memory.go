// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Memory is an in-process Backend with per-entry TTL and least-recently-used
// eviction past a capacity bound. Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	items    map[string]*memoryItem
	lru      *list.List
	maxItems int
	now      func() time.Time

	hits   uint64
	misses uint64
}

type memoryItem struct {
	key       string
	value     []byte
	expiresAt time.Time
	elem      *list.Element
}

// NewMemory creates a memory backend holding at most maxItems entries;
// zero means unbounded.
func NewMemory(maxItems int) *Memory {
	return &Memory{
		items:    make(map[string]*memoryItem),
		lru:      list.New(),
		maxItems: maxItems,
		now:      time.Now,
	}
}

// SetClock replaces the time source. Tests use this to simulate expiry.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Get returns the value for key. Expired entries are removed and reported
// as absent.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		m.misses++
		return nil, false, nil
	}
	if !item.expiresAt.IsZero() && m.now().After(item.expiresAt) {
		m.remove(item)
		m.misses++
		return nil, false, nil
	}

	m.lru.MoveToFront(item.elem)
	m.hits++

	v := make([]byte, len(item.value))
	copy(v, item.value)
	return v, true, nil
}

// Set stores value under key for ttl. A ttl of zero stores the entry
// without expiry. Existing entries are overwritten (last writer wins).
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.now().Add(ttl)
	}

	if item, ok := m.items[key]; ok {
		item.value = append([]byte(nil), value...)
		item.expiresAt = expiresAt
		m.lru.MoveToFront(item.elem)
		return nil
	}

	item := &memoryItem{
		key:       key,
		value:     append([]byte(nil), value...),
		expiresAt: expiresAt,
	}
	item.elem = m.lru.PushFront(item)
	m.items[key] = item

	for m.maxItems > 0 && len(m.items) > m.maxItems {
		oldest := m.lru.Back()
		if oldest == nil {
			break
		}
		m.remove(oldest.Value.(*memoryItem))
	}
	return nil
}

// Delete removes key if present.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[key]; ok {
		m.remove(item)
	}
	return nil
}

// Stats returns hit and miss counts since creation.
func (m *Memory) Stats() (hits, misses uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}

// Len returns the number of live entries, counting not-yet-collected
// expired ones.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// remove must be called with the lock held.
func (m *Memory) remove(item *memoryItem) {
	m.lru.Remove(item.elem)
	delete(m.items, item.key)
}
