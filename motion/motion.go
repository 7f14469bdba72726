// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// motion extracts spectral features from accelerometer windows and scores
// the similarity of two feature vectors.  Feature extraction runs entirely in
// fixed point arithmetic; only the final vector is converted to float64.
package motion

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultWindow = 128
	DefaultRate   = 64 // Hz
	MinWindow     = 16
)

var (
	ErrShortWindow = errors.New("not enough samples for window")
	ErrWindowSize  = errors.New("window must be a power of two between 16 and 1024")
)

// Sample is one raw 3 axis accelerometer reading.
type Sample struct {
	X, Y, Z int16
}

// hann returns a periodic Q15 Hann window of length n derived from the FFT
// sine table.
func hann(n int) []int32 {
	w := make([]int32, n)
	step := nWave / n
	for i := range w {
		c := int32(sinewave[(i*step+nWave/4)%nWave])
		w[i] = (32767 - c) >> 1
	}
	return w
}

func clamp16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// spectrum returns the magnitudes of bins 0..n/2 of one axis.
func spectrum(axis []int16, window []int32) ([]uint32, error) {
	n := len(axis)

	var sum int32
	for _, v := range axis {
		sum += int32(v)
	}
	mean := sum / int32(n)

	fr := make([]int16, n)
	fi := make([]int16, n)
	for i, v := range axis {
		d := clamp16(int32(v) - mean)
		fr[i] = int16((int32(d) * window[i]) >> 15)
	}

	if _, err := FFT(fr, fi, false); err != nil {
		return nil, err
	}

	mag := make([]uint32, n/2+1)
	for i := range mag {
		re, im := int32(fr[i]), int32(fi[i])
		mag[i] = isqrt(uint32(re*re) + uint32(im*im))
	}
	return mag, nil
}

// Extract returns the feature vector of the first window samples.  The
// vector holds window/2+1 bins, each the sum of the per axis magnitudes.
func Extract(samples []Sample, window int) ([]float64, error) {
	if window < MinWindow {
		return nil, ErrWindowSize
	}
	if _, ok := log2(window); !ok {
		return nil, ErrWindowSize
	}
	if len(samples) < window {
		return nil, fmt.Errorf("%w: have %v want %v", ErrShortWindow,
			len(samples), window)
	}

	w := hann(window)
	axes := [3][]int16{
		make([]int16, window),
		make([]int16, window),
		make([]int16, window),
	}
	for i := 0; i < window; i++ {
		axes[0][i] = samples[i].X
		axes[1][i] = samples[i].Y
		axes[2][i] = samples[i].Z
	}

	total := make([]uint32, window/2+1)
	for _, axis := range axes {
		mag, err := spectrum(axis, w)
		if err != nil {
			return nil, err
		}
		for i, v := range mag {
			total[i] += v
		}
	}

	features := make([]float64, len(total))
	for i, v := range total {
		features[i] = float64(v)
	}
	return features, nil
}

// Score returns the similarity of two feature vectors in [0, 1], the
// Pearson correlation of the spectra without the DC bin, negative values
// clamped to zero.  Vectors of different length or without variance score 0.
func Score(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 3 {
		return 0
	}
	a, b = a[1:], b[1:]

	n := float64(len(a))
	var sa, sb float64
	for i := range a {
		sa += a[i]
		sb += b[i]
	}
	ma, mb := sa/n, sb/n

	var cov, va, vb float64
	for i := range a {
		da, db := a[i]-ma, b[i]-mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return 0
	}

	r := cov / math.Sqrt(va*vb)
	if math.IsNaN(r) || r < 0 {
		return 0
	}
	if r > 1 {
		r = 1
	}
	return r
}
