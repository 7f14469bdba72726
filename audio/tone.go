// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package audio

import (
	"errors"
	"math"
)

var ErrNoNotes = errors.New("no notes")

// Note is a single tone of a melody.  A zero frequency is a rest.
type Note struct {
	Frequency float64
	Frames    int // duration in frames of FrameSize samples
}

// Synthesize renders notes into a normalized waveform.  Tones longer than a
// frame continue the phase of the cached single frame table using the angle
// addition identity.  Each note is smoothed as a whole.
func (c *Codec) Synthesize(notes []Note, amplitude float64) ([]float64, error) {
	if len(notes) == 0 {
		return nil, ErrNoNotes
	}

	var out []float64
	for _, n := range notes {
		if n.Frames < 1 {
			continue
		}
		tone := make([]float64, n.Frames*FrameSize)
		if n.Frequency > 0 {
			t := c.table(n.Frequency)
			for f := 0; f < n.Frames; f++ {
				sp, cp := math.Sincos(float64(f*FrameSize) * t.U)
				frame := tone[f*FrameSize : (f+1)*FrameSize]
				for i := range frame {
					frame[i] = amplitude *
						(cp*t.Cos[i] - sp*t.Sin[i])
				}
			}
			smooth(tone)
		}
		out = append(out, tone...)
	}
	if len(out) == 0 {
		return nil, ErrNoNotes
	}

	return out, nil
}

// Dominant returns the frequency out of candidates with the strongest
// correlation over the first frame of x starting at offset.
func (c *Codec) Dominant(x []float64, offset int, candidates []float64) float64 {
	if offset < 0 || offset+FrameSize > len(x) {
		return 0
	}
	best, bestF := 0.0, 0.0
	for _, f := range candidates {
		m := c.magnitude(x, offset, f)
		if m > best {
			best, bestF = m, f
		}
	}
	return bestF
}
