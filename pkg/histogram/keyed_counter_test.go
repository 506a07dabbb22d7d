// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package histogram

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounter(t *testing.T) {
	var c Counter
	c.Inc()
	c.Add(4)
	assert.Equal(t, int64(5), c.Count())
	c.Set(2)
	assert.Equal(t, int64(2), c.Count())
}

func TestKeyedCounter_UpsertAndGet(t *testing.T) {
	kc := NewKeyedCounter[string]()

	kc.Inc("KNOWS")
	kc.Inc("KNOWS")
	kc.Add("LIKES", 5)
	kc.Set("OWNS", 7)

	assert.Equal(t, int64(2), kc.Get("KNOWS"))
	assert.Equal(t, int64(5), kc.Get("LIKES"))
	assert.Equal(t, int64(7), kc.Get("OWNS"))
	assert.Equal(t, 3, kc.Len())
}

func TestKeyedCounter_GetDoesNotCreate(t *testing.T) {
	kc := NewKeyedCounter[int]()
	assert.Zero(t, kc.Get(42))
	assert.Zero(t, kc.Len())
	assert.Empty(t, kc.Keys())

	kc.Add(42, 0)
	assert.Equal(t, []int{42}, kc.Keys())
}

func TestKeyedCounter_SnapshotAndSortedKeys(t *testing.T) {
	kc := NewKeyedCounter[string]()
	kc.Inc("b")
	kc.Inc("a")
	kc.Add("c", 3)

	assert.Equal(t, map[string]int64{"a": 1, "b": 1, "c": 3}, kc.Snapshot())
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(kc))
}

func TestKeyedCounter_ConcurrentReaders(t *testing.T) {
	kc := NewKeyedCounter[int]()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			kc.Inc(i % 17)
		}
	}()
	for i := 0; i < 100; i++ {
		_ = kc.Snapshot()
		_ = kc.Get(i % 17)
	}
	wg.Wait()

	var total int64
	for _, v := range kc.Snapshot() {
		total += v
	}
	assert.Equal(t, int64(1000), total)
}
