// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// block implements named binary blocks on top of a byte stream.  A block is
// the XDR string encoding of its name followed by the XDR opaque encoding of
// its payload.  Both carry an explicit length so payloads may contain any
// byte value.
package block

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/davecgh/go-xdr/xdr2"
)

const (
	MaxNameSize       = 64
	DefaultMaxPayload = 1024 * 1024
)

var (
	ErrInvalidConfiguration = errors.New("neither reader nor writer configured")
	ErrNoWriter             = errors.New("no writer configured")
	ErrNoReader             = errors.New("no reader configured")
	ErrFraming              = errors.New("framing error")
	ErrTransport            = errors.New("transport error")
	ErrInvalidName          = errors.New("invalid block name")
	ErrLength               = errors.New("length exceeds source")
)

// Streamer sends and receives blocks.  A Streamer may be read only, write
// only or both.  Send and Receive may be called concurrently with each other.
type Streamer struct {
	MaxPayload uint // largest payload accepted by Receive

	r io.Reader
	w io.Writer

	rmtx sync.Mutex
	rerr error // sticky read error

	wmtx sync.Mutex
}

// New returns a Streamer.  Either r or w may be nil but not both.
func New(r io.Reader, w io.Writer) (*Streamer, error) {
	if r == nil && w == nil {
		return nil, ErrInvalidConfiguration
	}
	return &Streamer{
		MaxPayload: DefaultMaxPayload,
		r:          r,
		w:          w,
	}, nil
}

// NewReadWriter returns a Streamer that reads and writes rw.
func NewReadWriter(rw io.ReadWriter) *Streamer {
	s, _ := New(rw, rw)
	return s
}

// validName accepts any name, including the empty one, up to MaxNameSize
// bytes.
func validName(name string) bool {
	return len(name) <= MaxNameSize
}

// Send writes the first length bytes of source as a block called name.  The
// block is assembled in memory and handed to the writer in a single call.
func (s *Streamer) Send(name string, source []byte, length int) error {
	if s.w == nil {
		return ErrNoWriter
	}
	if !validName(name) {
		return ErrInvalidName
	}
	if length < 0 || length > len(source) {
		return ErrLength
	}

	var bb bytes.Buffer
	if _, err := xdr.Marshal(&bb, name); err != nil {
		return fmt.Errorf("marshal name: %v", err)
	}
	if _, err := xdr.Marshal(&bb, source[:length]); err != nil {
		return fmt.Errorf("marshal payload: %v", err)
	}

	s.wmtx.Lock()
	defer s.wmtx.Unlock()

	_, err := s.w.Write(bb.Bytes())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// Receive reads the next block.  Once a read fails the Streamer is unusable
// and every subsequent call returns the same error.
func (s *Streamer) Receive() (string, []byte, error) {
	if s.r == nil {
		return "", nil, ErrNoReader
	}

	s.rmtx.Lock()
	defer s.rmtx.Unlock()

	if s.rerr != nil {
		return "", nil, s.rerr
	}

	var name string
	_, err := xdr.UnmarshalLimited(s.r, &name, MaxNameSize)
	if err != nil {
		s.rerr = fmt.Errorf("%w: name: %w", ErrFraming, err)
		return "", nil, s.rerr
	}
	if !validName(name) {
		s.rerr = fmt.Errorf("%w: %w", ErrFraming, ErrInvalidName)
		return "", nil, s.rerr
	}

	var payload []byte
	_, err = xdr.UnmarshalLimited(s.r, &payload, s.MaxPayload)
	if err != nil {
		s.rerr = fmt.Errorf("%w: %v payload: %w", ErrFraming, name, err)
		return "", nil, s.rerr
	}

	return name, payload, nil
}

// SendXDR marshals v and sends it as the payload of block name.
func (s *Streamer) SendXDR(name string, v interface{}) error {
	var bb bytes.Buffer
	if _, err := xdr.Marshal(&bb, v); err != nil {
		return fmt.Errorf("marshal %v: %v", name, err)
	}
	return s.Send(name, bb.Bytes(), bb.Len())
}

// DecodeXDR unmarshals a block payload into v.  The payload must be consumed
// entirely.
func DecodeXDR(payload []byte, v interface{}) error {
	br := bytes.NewReader(payload)
	_, err := xdr.Unmarshal(br, v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFraming, err)
	}
	if br.Len() != 0 {
		return fmt.Errorf("%w: %v trailing bytes", ErrFraming, br.Len())
	}
	return nil
}
