// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package block

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"net"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/errgroup"
)

func diff(a, b interface{}) string {
	d, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(spew.Sdump(a)),
		B:        difflib.SplitLines(spew.Sdump(b)),
		FromFile: "sent",
		ToFile:   "received",
		Context:  3,
	})
	return d
}

func TestRoundTrip(t *testing.T) {
	var bb bytes.Buffer
	w, err := New(nil, &bb)
	if err != nil {
		t.Fatal(err)
	}
	r, err := New(&bb, nil)
	if err != nil {
		t.Fatal(err)
	}

	type blk struct {
		Name    string
		Payload []byte
	}
	blocks := []blk{
		{"PRE_AUTH", []byte{}},
		{"", []byte{}},
		{"", []byte("anonymous")},
		{"nul", []byte{0x00}},
		{"lf", []byte{0x0a}},
		{"crlf", []byte("\r\n\r\n")},
		{"mixed\nname", []byte{0x00, 0x0d, 0x0a, 0xff, 0x0a, 0x00, 0x0d}},
		{"x", bytes.Repeat([]byte{0x0a}, 4097)},
	}
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 32; i++ {
		p := make([]byte, rnd.Intn(300))
		rnd.Read(p)
		blocks = append(blocks, blk{Name: "random", Payload: p})
	}

	for _, b := range blocks {
		if err := w.Send(b.Name, b.Payload, len(b.Payload)); err != nil {
			t.Fatal(err)
		}
	}
	for _, b := range blocks {
		name, payload, err := r.Receive()
		if err != nil {
			t.Fatal(err)
		}
		got := blk{Name: name, Payload: payload}
		if got.Name != b.Name || !bytes.Equal(got.Payload, b.Payload) {
			t.Fatalf("block mismatch:\n%v", diff(b, got))
		}
	}
	if bb.Len() != 0 {
		t.Fatalf("unread bytes: %v", bb.Len())
	}
}

func TestPartialLength(t *testing.T) {
	var bb bytes.Buffer
	s := NewReadWriter(&bb)
	if err := s.Send("DATA", []byte("0123456789"), 4); err != nil {
		t.Fatal(err)
	}
	name, payload, err := s.Receive()
	if err != nil {
		t.Fatal(err)
	}
	if name != "DATA" || string(payload) != "0123" {
		t.Fatalf("got %q %q", name, payload)
	}
	if err := s.Send("DATA", []byte("01"), 3); err != ErrLength {
		t.Fatalf("expected ErrLength, got %v", err)
	}
}

func TestMisuse(t *testing.T) {
	_, err := New(nil, nil)
	if err != ErrInvalidConfiguration {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}

	ro, err := New(&bytes.Buffer{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := ro.Send("x", nil, 0); err != ErrNoWriter {
		t.Fatalf("expected ErrNoWriter, got %v", err)
	}

	wo, err := New(nil, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := wo.Receive(); err != ErrNoReader {
		t.Fatalf("expected ErrNoReader, got %v", err)
	}
	long := strings.Repeat("n", MaxNameSize+1)
	if err := wo.Send(long, nil, 0); err != ErrInvalidName {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestTruncated(t *testing.T) {
	var bb bytes.Buffer
	s := NewReadWriter(&bb)
	if err := s.Send("DATA", []byte("payload"), 7); err != nil {
		t.Fatal(err)
	}
	truncated := bytes.NewReader(bb.Bytes()[:bb.Len()-5])

	r, _ := New(truncated, nil)
	_, _, err := r.Receive()
	if !errors.Is(err, ErrFraming) {
		t.Fatalf("expected ErrFraming, got %v", err)
	}

	// instance stays broken
	_, _, err2 := r.Receive()
	if err2 != err {
		t.Fatalf("expected sticky error, got %v", err2)
	}
}

func TestOversized(t *testing.T) {
	var bb bytes.Buffer
	s := NewReadWriter(&bb)
	s.MaxPayload = 16
	if err := s.Send("DATA", make([]byte, 17), 17); err != nil {
		t.Fatal(err)
	}
	_, _, err := s.Receive()
	if !errors.Is(err, ErrFraming) {
		t.Fatalf("expected ErrFraming, got %v", err)
	}
}

func TestWriteFailure(t *testing.T) {
	a, b := net.Pipe()
	b.Close()
	s := NewReadWriter(a)
	err := s.Send("DATA", []byte{1}, 1)
	if !errors.Is(err, ErrTransport) || !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

// TestAsymmetric uses a write only and a read only instance on each end of
// two pipes concurrently.
func TestAsymmetric(t *testing.T) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()

	aliceOut, _ := New(nil, w1)
	aliceIn, _ := New(r2, nil)
	bobIn, _ := New(r1, nil)
	bobOut, _ := New(nil, w2)

	const count = 50
	var eg errgroup.Group
	eg.Go(func() error {
		for i := 0; i < count; i++ {
			p := []byte{byte(i), 0x0a, 0x0d, 0x00}
			if err := aliceOut.Send("alice", p, len(p)); err != nil {
				return err
			}
		}
		return nil
	})
	eg.Go(func() error {
		for i := 0; i < count; i++ {
			p := []byte{0x00, byte(i)}
			if err := bobOut.Send("bob", p, len(p)); err != nil {
				return err
			}
		}
		return nil
	})
	eg.Go(func() error {
		for i := 0; i < count; i++ {
			name, p, err := bobIn.Receive()
			if err != nil {
				return err
			}
			if name != "alice" || p[0] != byte(i) || len(p) != 4 {
				return errors.New("bob got unexpected block")
			}
		}
		return nil
	})
	eg.Go(func() error {
		for i := 0; i < count; i++ {
			name, p, err := aliceIn.Receive()
			if err != nil {
				return err
			}
			if name != "bob" || p[1] != byte(i) || len(p) != 2 {
				return errors.New("alice got unexpected block")
			}
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestXDRPayload(t *testing.T) {
	type hello struct {
		Version  int
		Channels []string
	}
	var bb bytes.Buffer
	s := NewReadWriter(&bb)
	sent := hello{Version: 1, Channels: []string{"AUDIO", "VISUAL"}}
	if err := s.SendXDR("PRE_AUTH", sent); err != nil {
		t.Fatal(err)
	}
	name, payload, err := s.Receive()
	if err != nil {
		t.Fatal(err)
	}
	var got hello
	if err := DecodeXDR(payload, &got); err != nil {
		t.Fatal(err)
	}
	if name != "PRE_AUTH" || got.Version != 1 || len(got.Channels) != 2 {
		t.Fatalf("unexpected payload:\n%v", diff(sent, got))
	}

	if err := DecodeXDR(append(payload, 0, 0, 0, 0), &got); !errors.Is(err, ErrFraming) {
		t.Fatalf("expected trailing byte error, got %v", err)
	}
}
