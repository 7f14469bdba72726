// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package audio

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/companyzero/zkpair/trigcache"
)

func TestRoundTrip(t *testing.T) {
	c := New(trigcache.NewDefault())
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}

	wav, err := c.Encode(data)
	if err != nil {
		t.Fatal(err)
	}
	// 44 byte header and 16 bit samples
	frames := 5 + len(data) + 1 + PaddingFrames
	if len(wav) != 44+frames*FrameSize*2 {
		t.Fatalf("unexpected container size %v", len(wav))
	}

	got, err := c.Decode(wav)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %v want %v", got, data)
	}
}

func TestRoundTripOffsetNoise(t *testing.T) {
	c := New(trigcache.NewDefault())
	rnd := rand.New(rand.NewSource(7))

	for i := 0; i < 3; i++ {
		data := make([]byte, 1+rnd.Intn(20))
		rnd.Read(data)

		x, err := c.Modulate(data)
		if err != nil {
			t.Fatal(err)
		}
		// prepend an unaligned stretch of silence and add some noise
		lead := make([]float64, rnd.Intn(3*FrameSize))
		x = append(lead, x...)
		for k := range x {
			x[k] += rnd.NormFloat64() * 0.01
		}

		got, err := c.Demodulate(x)
		if err != nil {
			t.Fatalf("%v: %v", i, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("%v: got %x want %x", i, got, data)
		}
	}
}

func TestDemodulationFailure(t *testing.T) {
	c := New(nil)

	// silence
	_, err := c.Demodulate(make([]float64, 20*FrameSize))
	if !errors.Is(err, ErrDemodulationFailure) {
		t.Fatalf("expected demodulation failure, got %v", err)
	}

	// too short
	_, err = c.Demodulate(make([]float64, FrameSize))
	if !errors.Is(err, ErrDemodulationFailure) {
		t.Fatalf("expected demodulation failure, got %v", err)
	}

	// truncated before the checksum
	x, err := c.Modulate([]byte("truncated"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Demodulate(x[:8*FrameSize])
	if !errors.Is(err, ErrDemodulationFailure) {
		t.Fatalf("expected demodulation failure, got %v", err)
	}

	// not a wav file
	_, err = c.Decode([]byte("RIFF but not really"))
	if !errors.Is(err, ErrDemodulationFailure) {
		t.Fatalf("expected demodulation failure, got %v", err)
	}
}

func TestChecksum(t *testing.T) {
	c := New(nil)
	x, err := c.Modulate([]byte{0x10, 0x20})
	if err != nil {
		t.Fatal(err)
	}
	// replace the first data frame with a different byte
	copy(x[5*FrameSize:6*FrameSize], c.byteFrame(0x11))
	_, err = c.Demodulate(x)
	if !errors.Is(err, ErrDemodulationFailure) {
		t.Fatalf("expected checksum failure, got %v", err)
	}
}

func TestPayloadSize(t *testing.T) {
	c := New(nil)
	if _, err := c.Modulate(nil); err != ErrPayloadSize {
		t.Fatalf("expected ErrPayloadSize, got %v", err)
	}
	if _, err := c.Modulate(make([]byte, 256)); err != ErrPayloadSize {
		t.Fatalf("expected ErrPayloadSize, got %v", err)
	}
}

func TestSharedCache(t *testing.T) {
	cache := trigcache.NewDefault()
	c := New(cache)
	if _, err := c.Modulate([]byte{0xff}); err != nil {
		t.Fatal(err)
	}
	// eight data tones and the hail
	if s := cache.Stats(); s.Entries != 9 {
		t.Fatalf("unexpected cache stats %+v", s)
	}
}

func TestSynthesize(t *testing.T) {
	c := New(nil)
	scale := []float64{523.25, 587.33, 659.25, 783.99, 880}
	notes := []Note{
		{Frequency: scale[2], Frames: 3},
		{Frequency: 0, Frames: 1},
		{Frequency: scale[4], Frames: 2},
	}
	x, err := c.Synthesize(notes, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(x) != 6*FrameSize {
		t.Fatalf("unexpected length %v", len(x))
	}

	// the middle frame of each tone is dominated by its note
	if f := c.Dominant(x, FrameSize, scale); f != scale[2] {
		t.Fatalf("got %v want %v", f, scale[2])
	}
	if f := c.Dominant(x, 4*FrameSize+FrameSize/2, scale); f != scale[4] {
		t.Fatalf("got %v want %v", f, scale[4])
	}

	wav, err := EncodeWAV(x)
	if err != nil {
		t.Fatal(err)
	}
	y, err := DecodeWAV(wav)
	if err != nil {
		t.Fatal(err)
	}
	if len(y) != len(x) {
		t.Fatalf("wav length %v want %v", len(y), len(x))
	}

	if _, err := c.Synthesize(nil, 1); err != ErrNoNotes {
		t.Fatalf("expected ErrNoNotes, got %v", err)
	}
}
