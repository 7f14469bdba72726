// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trigcache

import (
	"math"
	"sync"
	"testing"
)

func TestTableValues(t *testing.T) {
	c := NewDefault()
	u := Increment(1000, 44100)
	tbl := c.Table(u)
	if len(tbl.Sin) != DefaultWindow || len(tbl.Cos) != DefaultWindow {
		t.Fatalf("invalid window %v %v", len(tbl.Sin), len(tbl.Cos))
	}
	for _, i := range []int{0, 1, 17, 4409} {
		if math.Abs(tbl.Sin[i]-math.Sin(float64(i)*u)) > 1e-12 ||
			math.Abs(tbl.Cos[i]-math.Cos(float64(i)*u)) > 1e-12 {
			t.Fatalf("invalid entry %v", i)
		}
	}
}

func TestFirstFreeSlot(t *testing.T) {
	c := New(3, 16)
	first := make([]*Table, 3)
	for i := range first {
		first[i] = c.Table(float64(i + 1))
	}
	if s := c.Stats(); s.Entries != 3 || s.Misses != 3 {
		t.Fatalf("unexpected stats %+v", s)
	}

	// cache full, new increments are computed but not stored
	a := c.Table(42)
	b := c.Table(42)
	if a == b {
		t.Fatalf("table cached beyond capacity")
	}
	if s := c.Stats(); s.Entries != 3 || s.Uncached != 2 {
		t.Fatalf("unexpected stats %+v", s)
	}

	// existing entries never evicted
	for i := range first {
		if c.Table(float64(i+1)) != first[i] {
			t.Fatalf("entry %v evicted", i)
		}
	}
	if s := c.Stats(); s.Hits != 3 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestZeroCapacity(t *testing.T) {
	c := New(0, 8)
	if c.Table(1) == nil {
		t.Fatalf("nil table")
	}
	if s := c.Stats(); s.Entries != 0 || s.Uncached != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestRace(t *testing.T) {
	c := NewDefault()
	increments := []float64{
		Increment(1000, 44100),
		Increment(1125, 44100),
		Increment(3000, 44100),
	}

	var wg sync.WaitGroup
	tables := make([][]*Table, 64)
	for i := range tables {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for _, u := range increments {
				tables[i] = append(tables[i], c.Table(u))
			}
		}(i)
	}
	wg.Wait()

	if s := c.Stats(); s.Entries != len(increments) {
		t.Fatalf("duplicate entries %+v", s)
	}
	for i := range tables {
		for k := range increments {
			if tables[i][k] != tables[0][k] {
				t.Fatalf("goroutine %v got a different table", i)
			}
		}
	}
}
