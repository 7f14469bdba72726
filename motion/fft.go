// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package motion

import (
	"errors"
	"math"
)

const (
	nWave     = 1024 // full length of the sine table
	log2NWave = 10
	MaxFFT    = nWave
)

var ErrFFTSize = errors.New("fft size must be a power of two between 2 and 1024")

// sinewave holds 32767*sin(2*pi*i/nWave).
var sinewave [nWave]int16

func init() {
	for i := range sinewave {
		sinewave[i] = int16(math.Round(32767 *
			math.Sin(2*math.Pi*float64(i)/nWave)))
	}
}

// fixMul multiplies two Q15 values with rounding.
func fixMul(a, b int16) int16 {
	c := (int32(a) * int32(b)) >> 14
	b0 := c & 0x01
	return int16((c >> 1) + b0)
}

func log2(n int) (int, bool) {
	if n < 2 || n > MaxFFT || n&(n-1) != 0 {
		return 0, false
	}
	m := 0
	for 1<<uint(m) < n {
		m++
	}
	return m, true
}

// FFT computes an in place fixed point transform of fr + i*fi.  The forward
// transform scales every stage by one half so its output is DFT/n.  The
// inverse transform only scales a stage when a value would overflow and
// returns the number of halvings; multiply the output by 1<<scale to undo it.
func FFT(fr, fi []int16, inverse bool) (int, error) {
	n := len(fr)
	if len(fi) != n {
		return 0, ErrFFTSize
	}
	if _, ok := log2(n); !ok {
		return 0, ErrFFTSize
	}

	// decimation in time, reorder
	mr := 0
	nn := n - 1
	for m := 1; m <= nn; m++ {
		l := n
		for {
			l >>= 1
			if mr+l <= nn {
				break
			}
		}
		mr = (mr & (l - 1)) + l
		if mr <= m {
			continue
		}
		fr[m], fr[mr] = fr[mr], fr[m]
		fi[m], fi[mr] = fi[mr], fi[m]
	}

	scale := 0
	k := log2NWave - 1
	for l := 1; l < n; l <<= 1 {
		var shift bool
		if inverse {
			// variable scaling, halve only when needed
			for i := 0; i < n; i++ {
				if abs16(fr[i]) > 16383 || abs16(fi[i]) > 16383 {
					shift = true
					break
				}
			}
			if shift {
				scale++
			}
		} else {
			shift = true
		}

		istep := l << 1
		for m := 0; m < l; m++ {
			j := m << uint(k)
			wr := sinewave[j+nWave/4]
			wi := -sinewave[j]
			if inverse {
				wi = -wi
			}
			if shift {
				wr >>= 1
				wi >>= 1
			}
			for i := m; i < n; i += istep {
				p := i + l
				tr := fixMul(wr, fr[p]) - fixMul(wi, fi[p])
				ti := fixMul(wr, fi[p]) + fixMul(wi, fr[p])
				qr := fr[i]
				qi := fi[i]
				if shift {
					qr >>= 1
					qi >>= 1
				}
				fr[p] = qr - tr
				fi[p] = qi - ti
				fr[i] = qr + tr
				fi[i] = qi + ti
			}
		}
		k--
	}

	return scale, nil
}

func abs16(v int16) int32 {
	if v < 0 {
		return -int32(v)
	}
	return int32(v)
}

// isqrt returns floor(sqrt(v)).
func isqrt(v uint32) uint32 {
	var r uint32
	bit := uint32(1) << 30
	for bit > v {
		bit >>= 2
	}
	for bit != 0 {
		if v >= r+bit {
			v -= r + bit
			r = (r >> 1) + bit
		} else {
			r >>= 1
		}
		bit >>= 2
	}
	return r
}
