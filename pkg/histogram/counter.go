// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package histogram

import "sync/atomic"

// Counter is a 64-bit running total.
//
// The zero value is ready to use. A Counter is written by one goroutine and
// may be read concurrently; readers see some recent value. Overflow wraps
// silently.
type Counter struct {
	count atomic.Int64
}

// Inc adds one.
func (c *Counter) Inc() {
	c.count.Add(1)
}

// Add adds n, which may be negative.
func (c *Counter) Add(n int64) {
	c.count.Add(n)
}

// Set overwrites the total.
func (c *Counter) Set(n int64) {
	c.count.Store(n)
}

// Count returns the current total.
func (c *Counter) Count() int64 {
	return c.count.Load()
}
