// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	BitDepth = 16

	// scale maps a normalized sample onto 16 bit PCM with some headroom
	scale = 30000.0
)

var (
	ErrInvalidWAV = errors.New("invalid wav container")
	ErrSampleRate = errors.New("unsupported sample rate")
)

// writeSeeker is an in memory io.WriteSeeker, the wav encoder seeks back to
// patch the chunk sizes once all samples are written.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	copy(w.buf[w.pos:], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(w.pos) + offset
	case io.SeekEnd:
		pos = int64(len(w.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %v", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("negative position %v", pos)
	}
	w.pos = int(pos)
	return pos, nil
}

// EncodeWAV returns a mono 16 bit SampleRate WAV container holding the
// normalized samples x.  Samples are clipped to [-1, 1].
func EncodeWAV(x []float64) ([]byte, error) {
	data := make([]int, len(x))
	for i, v := range x {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		data[i] = int(v * scale)
	}

	ws := &writeSeeker{}
	e := wav.NewEncoder(ws, SampleRate, BitDepth, 1, 1)
	err := e.Write(&goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  SampleRate,
		},
		Data:           data,
		SourceBitDepth: BitDepth,
	})
	if err != nil {
		return nil, err
	}
	if err := e.Close(); err != nil {
		return nil, err
	}

	return ws.buf, nil
}

// DecodeWAV returns the normalized samples of the first channel of a PCM WAV
// container.  Only SampleRate is accepted.
func DecodeWAV(b []byte) ([]float64, error) {
	d := wav.NewDecoder(bytes.NewReader(b))
	if !d.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	if d.SampleRate != SampleRate {
		return nil, fmt.Errorf("%w: %v", ErrSampleRate, d.SampleRate)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	channels := int(d.NumChans)
	if channels < 1 {
		return nil, ErrInvalidWAV
	}

	var (
		offset float64
		full   float64
	)
	switch d.BitDepth {
	case 8:
		// 8 bit wav is unsigned
		offset, full = 128, 128
	case 16:
		full = 1 << 15
	case 24:
		full = 1 << 23
	case 32:
		full = 1 << 31
	default:
		return nil, fmt.Errorf("%w: bit depth %v", ErrInvalidWAV,
			d.BitDepth)
	}

	x := make([]float64, 0, len(buf.Data)/channels)
	for i := 0; i < len(buf.Data); i += channels {
		x = append(x, (float64(buf.Data[i])-offset)/full)
	}
	return x, nil
}
