// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// audio implements a simple tone modem.  Every byte occupies one frame of
// FrameSize samples; bit k of the byte switches on a cosine at Frequencies[k].
// A transmission looks like:
//
//	silence | hail | 0xaa | 0x55 | length | data ... | checksum | padding
//
// The hail tone is used to find the start of the transmission and the two
// calibration frames establish the on level of every bit.  The checksum is
// the xor of all data bytes.
package audio

import (
	"errors"
	"fmt"
	"math"

	"github.com/companyzero/zkpair/trigcache"
)

const (
	SampleRate = 44100
	FrameSize  = 4410 // 0.1s

	HailFrequency = 3000.0
	HailAmplitude = 1.0
	BitAmplitude  = 0.125

	PaddingFrames = 6
	MaxPayload    = 255

	calibrationA = 0xaa
	calibrationB = 0x55

	smoothing  = 0.2   // fraction of a frame ramped at each edge
	coarseStep = 441   // hail search step
	minHail    = 100.0 // minimum hail correlation magnitude
	minOn      = 20.0  // minimum calibration on magnitude
)

// Frequencies carries the tone used for each bit, least significant first.
var Frequencies = [8]float64{1000, 1125, 1250, 1500, 1666, 2000, 2250, 2500}

var (
	ErrDemodulationFailure = errors.New("demodulation failure")
	ErrPayloadSize         = errors.New("payload must be 1 to 255 bytes")
)

// Codec modulates and demodulates byte sequences.  Codecs that share a
// trigcache.Cache may be used from multiple goroutines.
type Codec struct {
	cache *trigcache.Cache
}

// New returns a Codec that obtains carrier tables from cache.  The cache
// window must be FrameSize.
func New(cache *trigcache.Cache) *Codec {
	if cache == nil || cache.Window() != FrameSize {
		cache = trigcache.New(trigcache.DefaultCapacity, FrameSize)
	}
	return &Codec{cache: cache}
}

func (c *Codec) table(f float64) *trigcache.Table {
	return c.cache.Table(trigcache.Increment(f, SampleRate))
}

// smooth applies linear ramps to both edges of a frame.
func smooth(frame []float64) {
	n := len(frame)
	peaks := int(float64(n) * smoothing)
	if peaks == 0 {
		return
	}
	step := 1 / float64(peaks)
	for i := 0; i < peaks; i++ {
		frame[i] *= step * float64(i)
		frame[n-1-i] *= step * float64(i)
	}
}

func (c *Codec) hailFrame() []float64 {
	frame := make([]float64, FrameSize)
	t := c.table(HailFrequency)
	for i := range frame {
		frame[i] = HailAmplitude * t.Cos[i]
	}
	smooth(frame)
	return frame
}

func (c *Codec) byteFrame(b byte) []float64 {
	frame := make([]float64, FrameSize)
	for k, f := range Frequencies {
		if b&(1<<uint(k)) == 0 {
			continue
		}
		t := c.table(f)
		for i := range frame {
			frame[i] += BitAmplitude * t.Cos[i]
		}
	}
	smooth(frame)
	return frame
}

// Frames returns the number of frames in the waveform of an n byte payload:
// leading silence, hail, calibration, length, data, checksum and padding.
func Frames(n int) int {
	return 5 + n + 1 + PaddingFrames
}

// DurationMs returns the playing time of an n byte payload in milliseconds.
func DurationMs(n int) int {
	return Frames(n) * FrameSize * 1000 / SampleRate
}

// Modulate returns the normalized waveform for data.
func (c *Codec) Modulate(data []byte) ([]float64, error) {
	if len(data) == 0 || len(data) > MaxPayload {
		return nil, ErrPayloadSize
	}

	var checksum byte
	for _, v := range data {
		checksum ^= v
	}

	out := make([]float64, 0, Frames(len(data))*FrameSize)
	out = append(out, make([]float64, FrameSize)...)
	out = append(out, c.hailFrame()...)
	out = append(out, c.byteFrame(calibrationA)...)
	out = append(out, c.byteFrame(calibrationB)...)
	out = append(out, c.byteFrame(byte(len(data)))...)
	for _, v := range data {
		out = append(out, c.byteFrame(v)...)
	}
	out = append(out, c.byteFrame(checksum)...)
	out = append(out, make([]float64, PaddingFrames*FrameSize)...)

	return out, nil
}

// magnitude correlates one frame of x starting at offset against frequency f.
func (c *Codec) magnitude(x []float64, offset int, f float64) float64 {
	t := c.table(f)
	var re, im float64
	frame := x[offset : offset+FrameSize]
	for i, v := range frame {
		re += v * t.Cos[i]
		im += v * t.Sin[i]
	}
	return math.Hypot(re, im)
}

// findHail returns the offset of the hail frame.
func (c *Codec) findHail(x []float64) (int, float64) {
	last := len(x) - FrameSize
	best, bestOffset := -1.0, 0
	for o := 0; o <= last; o += coarseStep {
		m := c.magnitude(x, o, HailFrequency)
		if m > best {
			best, bestOffset = m, o
		}
	}

	lo := bestOffset - coarseStep
	if lo < 0 {
		lo = 0
	}
	hi := bestOffset + coarseStep
	if hi > last {
		hi = last
	}
	for o := lo; o <= hi; o++ {
		m := c.magnitude(x, o, HailFrequency)
		if m > best {
			best, bestOffset = m, o
		}
	}

	return bestOffset, best
}

// Demodulate recovers the data bytes from a normalized waveform.  Every
// failure wraps ErrDemodulationFailure.
func (c *Codec) Demodulate(x []float64) ([]byte, error) {
	// at least hail, calibration, length and checksum
	if len(x) < 5*FrameSize {
		return nil, fmt.Errorf("%w: waveform too short", ErrDemodulationFailure)
	}

	start, hail := c.findHail(x)
	if hail < minHail {
		return nil, fmt.Errorf("%w: no hail", ErrDemodulationFailure)
	}

	frameAt := func(n int) (int, bool) {
		o := start + n*FrameSize
		return o, o+FrameSize <= len(x)
	}

	// calibrate
	var threshold [8]float64
	ca, _ := frameAt(1)
	cb, ok := frameAt(2)
	if !ok {
		return nil, fmt.Errorf("%w: truncated calibration",
			ErrDemodulationFailure)
	}
	for k, f := range Frequencies {
		var on, off float64
		if calibrationA&(1<<uint(k)) != 0 {
			on, off = c.magnitude(x, ca, f), c.magnitude(x, cb, f)
		} else {
			on, off = c.magnitude(x, cb, f), c.magnitude(x, ca, f)
		}
		if on < minOn || off > on/2 {
			return nil, fmt.Errorf("%w: calibration bit %v",
				ErrDemodulationFailure, k)
		}
		threshold[k] = on / 2
	}

	readByte := func(offset int) byte {
		var b byte
		for k, f := range Frequencies {
			if c.magnitude(x, offset, f) > threshold[k] {
				b |= 1 << uint(k)
			}
		}
		return b
	}

	lo, ok := frameAt(3)
	if !ok {
		return nil, fmt.Errorf("%w: truncated length", ErrDemodulationFailure)
	}
	length := int(readByte(lo))
	if length == 0 {
		return nil, fmt.Errorf("%w: zero length", ErrDemodulationFailure)
	}
	if _, ok := frameAt(4 + length); !ok {
		return nil, fmt.Errorf("%w: truncated data, want %v bytes",
			ErrDemodulationFailure, length)
	}

	data := make([]byte, length)
	var checksum byte
	for i := range data {
		o, _ := frameAt(4 + i)
		data[i] = readByte(o)
		checksum ^= data[i]
	}
	o, _ := frameAt(4 + length)
	if readByte(o) != checksum {
		return nil, fmt.Errorf("%w: checksum", ErrDemodulationFailure)
	}

	return data, nil
}

// Encode modulates data and wraps the waveform in a WAV container.
func (c *Codec) Encode(data []byte) ([]byte, error) {
	x, err := c.Modulate(data)
	if err != nil {
		return nil, err
	}
	return EncodeWAV(x)
}

// Decode demodulates a WAV container.  Container errors are reported as
// demodulation failures as well.
func (c *Codec) Decode(wav []byte) ([]byte, error) {
	x, err := DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDemodulationFailure, err)
	}
	return c.Demodulate(x)
}
