// Package keylock serializes workflow operations on the entities they touch:
// cart mutations lock the customer key, stock mutations lock the product
// model key. Checkout takes the customer key first and then its line items'
// model keys in sorted order, so overlapping operations cannot deadlock.
package keylock

import (
	"sort"
	"sync"
)

type Map struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New() *Map {
	return &Map{locks: make(map[string]*sync.Mutex)}
}

func (m *Map) get(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

func (m *Map) Lock(key string) {
	m.get(key).Lock()
}

func (m *Map) Unlock(key string) {
	m.get(key).Unlock()
}

// LockAll locks every key in sorted order and returns the unlock function.
// Duplicate keys are collapsed so a key is never locked twice.
func (m *Map) LockAll(keys []string) func() {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
	}
	sort.Strings(uniq)

	for _, k := range uniq {
		m.Lock(k)
	}
	return func() {
		for i := len(uniq) - 1; i >= 0; i-- {
			m.Unlock(uniq[i])
		}
	}
}
