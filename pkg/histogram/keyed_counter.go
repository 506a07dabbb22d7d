// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package histogram

import (
	"cmp"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// KeyedCounter maps keys to Counters, creating a Counter on first write.
//
// A key is present iff Inc, Add or Set was called for it. Get never
// creates an entry.
//
// Thread Safety: one writer and any number of concurrent readers.
type KeyedCounter[K comparable] struct {
	mu       sync.RWMutex
	counters map[K]*Counter
}

// NewKeyedCounter returns an empty KeyedCounter.
func NewKeyedCounter[K comparable]() *KeyedCounter[K] {
	return &KeyedCounter[K]{counters: make(map[K]*Counter)}
}

func (kc *KeyedCounter[K]) counter(key K) *Counter {
	kc.mu.RLock()
	c, ok := kc.counters[key]
	kc.mu.RUnlock()
	if ok {
		return c
	}

	kc.mu.Lock()
	defer kc.mu.Unlock()
	if c, ok = kc.counters[key]; !ok {
		c = &Counter{}
		kc.counters[key] = c
	}
	return c
}

// Inc adds one to key's counter.
func (kc *KeyedCounter[K]) Inc(key K) {
	kc.counter(key).Inc()
}

// Add adds delta to key's counter.
func (kc *KeyedCounter[K]) Add(key K, delta int64) {
	kc.counter(key).Add(delta)
}

// Set overwrites key's counter.
func (kc *KeyedCounter[K]) Set(key K, value int64) {
	kc.counter(key).Set(value)
}

// Get returns key's count, or 0 if key was never written.
func (kc *KeyedCounter[K]) Get(key K) int64 {
	kc.mu.RLock()
	defer kc.mu.RUnlock()
	if c, ok := kc.counters[key]; ok {
		return c.Count()
	}
	return 0
}

// Len returns the number of keys.
func (kc *KeyedCounter[K]) Len() int {
	kc.mu.RLock()
	defer kc.mu.RUnlock()
	return len(kc.counters)
}

// Keys returns the keys in unspecified order.
func (kc *KeyedCounter[K]) Keys() []K {
	kc.mu.RLock()
	defer kc.mu.RUnlock()
	return lo.Keys(kc.counters)
}

// Snapshot copies the current counts.
func (kc *KeyedCounter[K]) Snapshot() map[K]int64 {
	kc.mu.RLock()
	defer kc.mu.RUnlock()
	return lo.MapValues(kc.counters, func(c *Counter, _ K) int64 {
		return c.Count()
	})
}

// SortedKeys returns the keys of kc in ascending order.
func SortedKeys[K cmp.Ordered](kc *KeyedCounter[K]) []K {
	keys := kc.Keys()
	slices.Sort(keys)
	return keys
}
