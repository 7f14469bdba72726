// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package channel

import (
	"bytes"
	"context"
	"image"
	"math"
	"math/rand"
	"sync"

	"github.com/companyzero/zkpair/motion"
)

// The loopback boundaries connect two devices in the same process.  They
// stand in for the physical medium in tests and single host demonstrations.

const mediumDepth = 8

// Air carries WAV containers from a Speaker to a Microphone.  Playing never
// blocks; when nobody records the oldest transmissions are dropped.
type Air struct {
	// Filter, when set, is applied to every transmission in flight.
	Filter func(wav []byte) []byte

	c chan []byte
	o sync.Once
}

func (a *Air) medium() chan []byte {
	a.o.Do(func() { a.c = make(chan []byte, mediumDepth) })
	return a.c
}

func (a *Air) Play(ctx context.Context, wav []byte) error {
	if a.Filter != nil {
		wav = a.Filter(wav)
	}
	c := a.medium()
	for {
		select {
		case c <- wav:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		select {
		case <-c:
		default:
		}
	}
}

func (a *Air) Record(ctx context.Context, durationMs int) ([]byte, error) {
	select {
	case wav := <-a.medium():
		return wav, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Screen carries images from a Display to a Camera.
type Screen struct {
	// Filter, when set, is applied to every image in flight.
	Filter func(img image.Image) image.Image

	c chan image.Image
	o sync.Once
}

func (s *Screen) medium() chan image.Image {
	s.o.Do(func() { s.c = make(chan image.Image, mediumDepth) })
	return s.c
}

func (s *Screen) Show(ctx context.Context, img image.Image) error {
	if s.Filter != nil {
		img = s.Filter(img)
	}
	c := s.medium()
	for {
		select {
		case c <- img:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		select {
		case <-c:
		default:
		}
	}
}

func (s *Screen) Capture(ctx context.Context) (image.Image, error) {
	select {
	case img := <-s.medium():
		return img, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Board plays an operator attending two devices.  Confirm waits for the
// text presented by the other device and answers whether it is the same.
// When melodies are played instead, Confirm waits for both devices to play
// and compares what was heard.
type Board struct {
	text  chan string
	tunes chan []byte
	o     sync.Once
}

func (b *Board) init() {
	b.o.Do(func() {
		b.text = make(chan string, mediumDepth)
		b.tunes = make(chan []byte, mediumDepth)
	})
}

func (b *Board) Present(ctx context.Context, text string) error {
	b.init()
	select {
	case b.text <- text:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Board) Play(ctx context.Context, wav []byte) error {
	b.init()
	select {
	case b.tunes <- wav:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Board) Confirm(ctx context.Context, text string) (bool, error) {
	b.init()
	select {
	case seen := <-b.text:
		return seen == text, nil
	case first := <-b.tunes:
		select {
		case second := <-b.tunes:
			return bytes.Equal(first, second), nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Shaker is an accelerometer.  Shakers created with NewShaker follow the
// same gesture and differ only by sensor noise, as if the devices were held
// together.  A shaker created with NewJitter reports uncorrelated motion.
type Shaker struct {
	sync.Mutex
	Rate int // Hz

	rnd    *rand.Rand
	noise  float64
	jitter bool
}

// NewShaker returns a sensor following the shared gesture with gaussian
// noise of the given standard deviation.
func NewShaker(seed int64, noise float64) *Shaker {
	return &Shaker{
		Rate:  motion.DefaultRate,
		rnd:   rand.New(rand.NewSource(seed)),
		noise: noise,
	}
}

// NewJitter returns a sensor reporting uniform random motion.
func NewJitter(seed int64) *Shaker {
	return &Shaker{
		Rate:   motion.DefaultRate,
		rnd:    rand.New(rand.NewSource(seed)),
		jitter: true,
	}
}

func (s *Shaker) SampleWindow(ctx context.Context, durationMs int) ([]motion.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()

	samples := make([]motion.Sample, durationMs*s.Rate/1000)
	for i := range samples {
		if s.jitter {
			samples[i] = motion.Sample{
				X: int16(s.rnd.Intn(6001) - 3000),
				Y: int16(s.rnd.Intn(6001) - 3000),
				Z: int16(s.rnd.Intn(6001) - 3000),
			}
			continue
		}
		t := float64(i) / float64(s.Rate)
		x := 3000*math.Sin(2*math.Pi*3*t) + 1500*math.Sin(2*math.Pi*7.5*t+1)
		y := 2000 * math.Sin(2*math.Pi*5*t+0.3)
		z := 1000 * math.Sin(2*math.Pi*11*t)
		samples[i] = motion.Sample{
			X: int16(x + s.rnd.NormFloat64()*s.noise),
			Y: int16(y + s.rnd.NormFloat64()*s.noise),
			Z: int16(z + s.rnd.NormFloat64()*s.noise),
		}
	}
	return samples, nil
}
