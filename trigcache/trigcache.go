// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// trigcache keeps precomputed sine and cosine tables keyed by angular
// increment.  The cache has a fixed number of slots that are filled in order
// and never evicted; once full, tables are computed on every call.
package trigcache

import (
	"math"
	"sync"
)

const (
	DefaultCapacity = 10
	DefaultWindow   = 4410 // one 0.1s frame at 44.1kHz
)

// Table holds sin(i*u) and cos(i*u) for i in [0, window).  Tables are shared
// between callers and must not be modified.
type Table struct {
	U   float64
	Sin []float64
	Cos []float64
}

func newTable(u float64, window int) *Table {
	t := &Table{
		U:   u,
		Sin: make([]float64, window),
		Cos: make([]float64, window),
	}
	for i := 0; i < window; i++ {
		t.Sin[i], t.Cos[i] = math.Sincos(float64(i) * u)
	}
	return t
}

// Cache is a concurrency safe first-free-slot table cache.
type Cache struct {
	sync.Mutex

	window int
	slots  []*Table
	used   int

	hits, misses, uncached uint64
}

// New returns a cache with capacity slots of window samples each.
func New(capacity, window int) *Cache {
	if capacity < 0 {
		capacity = 0
	}
	if window < 1 {
		window = DefaultWindow
	}
	return &Cache{
		window: window,
		slots:  make([]*Table, capacity),
	}
}

// NewDefault returns a cache with the audio codec dimensions.
func NewDefault() *Cache {
	return New(DefaultCapacity, DefaultWindow)
}

// Window returns the number of samples per table.
func (c *Cache) Window() int {
	return c.window
}

// Table returns the table for angular increment u.  The lock is held while a
// missing table is computed so concurrent callers never store duplicates.
func (c *Cache) Table(u float64) *Table {
	c.Lock()
	defer c.Unlock()

	for i := 0; i < c.used; i++ {
		if c.slots[i].U == u {
			c.hits++
			return c.slots[i]
		}
	}

	t := newTable(u, c.window)
	if c.used < len(c.slots) {
		c.slots[c.used] = t
		c.used++
		c.misses++
		return t
	}

	c.uncached++
	return t
}

// Stats returns cache counters.
type Stats struct {
	Entries  int
	Hits     uint64
	Misses   uint64
	Uncached uint64
}

func (c *Cache) Stats() Stats {
	c.Lock()
	defer c.Unlock()

	return Stats{
		Entries:  c.used,
		Hits:     c.hits,
		Misses:   c.misses,
		Uncached: c.uncached,
	}
}

// Increment returns the angular increment of frequency f at sample rate fs.
func Increment(f, fs float64) float64 {
	return 2 * math.Pi * f / fs
}
