// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tagstack

import (
	"math/rand"
	"sync"
	"testing"
	"time"
)

var size = 10

func TestUnderflow(t *testing.T) {
	ts := New(size)

	t.Logf("at %v ts %#v", ts.at, ts.stack)
	// note <= to induce failure
	for i := 0; i <= size; i++ {
		x, err := ts.Pop()
		if err == ErrUnderflow && i == size {
			if ts.Available() != 0 {
				t.Fatalf("available %v", ts.Available())
			}
			return
		}
		t.Logf("x %v", x)
	}
	t.Fatalf("underflow")
}

func TestOverflow(t *testing.T) {
	ts := New(size)
	err := ts.Push(uint32(size))
	if err != ErrOverflow {
		t.Fatalf("expected overflow")
	}
}

func TestEmpty(t *testing.T) {
	ts := New(0)
	if _, err := ts.Pop(); err != ErrUnderflow {
		t.Fatalf("expected underflow")
	}
	if ts.Depth() != 0 || ts.Available() != 0 {
		t.Fatalf("unexpected depth %v", ts.Depth())
	}
}

func TestPushPop(t *testing.T) {
	ts := New(size)

	// slots come out lowest first
	for i := 0; i < size; i++ {
		x, err := ts.Pop()
		if err != nil {
			t.Fatal(err)
		}
		if x != uint32(i) {
			t.Fatalf("unexpected tag got %v want %v", x, i)
		}
		if ts.Available() != size-1-i {
			t.Fatalf("available %v", ts.Available())
		}
	}

	for i := 0; i < size; i++ {
		// reverse order
		err := ts.Push(uint32(size - 1 - i))
		if err != nil {
			t.Fatal(err)
		}
	}
	t.Logf("at %v ts %#v", ts.at, ts.stack)

	for i := 0; i < size; i++ {
		x, err := ts.Pop()
		if err != nil {
			t.Fatal(err)
		}
		if x != uint32(i) {
			t.Fatalf("unexpected tag got %v want %v",
				x, i)
		}
	}
}

func TestRace(t *testing.T) {
	testSize := 4000
	ts := New(testSize)

	var wg sync.WaitGroup
	errs := make(chan error, testSize)
	for i := 0; i < testSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			x, err := ts.Pop()
			if err != nil {
				errs <- err
				return
			}
			r := rand.New(rand.NewSource(time.Now().UnixNano()))
			time.Sleep(time.Duration(r.Intn(2000)) * time.Nanosecond)
			if err := ts.Push(x); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	if ts.Available() != testSize {
		t.Fatalf("available %v", ts.Available())
	}
	seen := make([]int, testSize)
	for i := 0; i < testSize; i++ {
		seen[ts.stack[i]]++
	}
	for i := 0; i < testSize; i++ {
		if seen[i] != 1 {
			t.Errorf("corrupt tag %v seen %v", i, seen[i])
		}
	}
}
