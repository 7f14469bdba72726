// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// tagstack manages a concurrent safe stack of slot tags.  The dispatcher
// pops a tag for every admitted connection and pushes it back when the
// session ends, which bounds the number of concurrent sessions without
// blocking the accept loop.  It is the callers responsibility to ensure
// uniqueness of the tags if this is desired.
package tagstack

import (
	"errors"
	"sync"
)

var (
	ErrOverflow  = errors.New("overflow")
	ErrUnderflow = errors.New("underflow")
)

// TagStack is an opaque type that contains the tag stack.
type TagStack struct {
	sync.Mutex

	at    int
	stack []uint32
}

// New returns a full stack holding tags 0 through depth-1.  Tag 0 is popped
// last.
func New(depth int) *TagStack {
	if depth < 0 {
		depth = 0
	}
	s := TagStack{
		stack: make([]uint32, depth),
	}

	for k := range s.stack {
		s.stack[k] = uint32(depth - 1 - k)
	}
	s.at = depth

	return &s
}

// Push returns x to the stack.  If the stack will overflow it will return an
// error.
func (s *TagStack) Push(x uint32) error {
	s.Lock()
	defer s.Unlock()

	if s.at < len(s.stack) {
		s.stack[s.at] = x
		s.at++
		return nil
	}

	return ErrOverflow
}

// Pop returns the current tag on the stack.  If the stack will underflow it
// will return an error.
func (s *TagStack) Pop() (uint32, error) {
	s.Lock()
	defer s.Unlock()

	if s.at > 0 {
		s.at--
		return s.stack[s.at], nil
	}

	return 0, ErrUnderflow
}

// Available returns the number of tags that can be popped.
func (s *TagStack) Available() int {
	s.Lock()
	defer s.Unlock()
	return s.at
}

// Depth returns the tag stack depth.
func (s *TagStack) Depth() int {
	return len(s.stack)
}
