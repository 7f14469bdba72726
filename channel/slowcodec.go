// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package channel

import (
	"context"
	"strings"

	"github.com/companyzero/zkpair/audio"
	"github.com/companyzero/zkpair/rpc"
)

const (
	noteFrames      = 2 // 0.2s per note
	melodyAmplitude = 0.5
)

// scale holds three octaves of the C major pentatonic scale plus the high
// C, one note per nibble value.
var scale = [16]struct {
	name      string
	frequency float64
}{
	{"C4", 261.63}, {"D4", 293.66}, {"E4", 329.63}, {"G4", 392.00},
	{"A4", 440.00}, {"C5", 523.25}, {"D5", 587.33}, {"E5", 659.25},
	{"G5", 783.99}, {"A5", 880.00}, {"C6", 1046.50}, {"D6", 1174.66},
	{"E6", 1318.51}, {"G6", 1567.98}, {"A6", 1760.00}, {"C7", 2093.00},
}

// Melody returns the notes for sas, high nibble first, and their names.
func Melody(sas []byte) ([]audio.Note, string) {
	notes := make([]audio.Note, 0, len(sas)*2)
	names := make([]string, 0, len(sas)*2)
	for _, b := range sas {
		for _, n := range []byte{b >> 4, b & 0x0f} {
			notes = append(notes, audio.Note{
				Frequency: scale[n].frequency,
				Frames:    noteFrames,
			})
			names = append(names, scale[n].name)
		}
	}
	return notes, strings.Join(names, " ")
}

// SlowCodec plays the short authenticated string as a melody on both
// devices.  The operator of the receiving device confirms that the melodies
// are the same.
type SlowCodec struct {
	closer
	codec     *audio.Codec
	speaker   Speaker
	confirmer Confirmer
	length    int
}

func (s *SlowCodec) Token() string  { return rpc.ChannelSlowCodec }
func (s *SlowCodec) SASLength() int { return s.length }

func (s *SlowCodec) play(ctx context.Context, sas []byte) (string, error) {
	notes, names := Melody(sas)
	x, err := s.codec.Synthesize(notes, melodyAmplitude)
	if err != nil {
		return "", err
	}
	wav, err := audio.EncodeWAV(x)
	if err != nil {
		return "", err
	}
	return names, s.speaker.Play(ctx, wav)
}

func (s *SlowCodec) Transmit(ctx context.Context, sas []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	_, err := s.play(ctx, sas)
	return err
}

func (s *SlowCodec) Verify(ctx context.Context, sas []byte) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	names, err := s.play(ctx, sas)
	if err != nil {
		return false, err
	}
	return s.confirmer.Confirm(ctx, names)
}
