// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package channel

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/hex"

	"github.com/companyzero/zkpair/audio"
	"github.com/companyzero/zkpair/rpc"
)

// audioPadding trails the hex digits so that the tail of the transmission
// survives a late start of the recorder.
const audioPadding = 6

// recordSlackMs is added to the expected duration of a transmission.
const recordSlackMs = 1000

// Audio plays the short authenticated string through the speaker and
// records the peer's transmission with the microphone.
type Audio struct {
	closer
	codec      *audio.Codec
	speaker    Speaker
	microphone Microphone
	length     int
}

func (a *Audio) Token() string  { return rpc.ChannelAudio }
func (a *Audio) SASLength() int { return a.length }

func audioPayload(sas []byte) []byte {
	p := make([]byte, hex.EncodedLen(len(sas))+audioPadding)
	hex.Encode(p, sas)
	return p
}

func (a *Audio) Transmit(ctx context.Context, sas []byte) error {
	if err := a.check(); err != nil {
		return err
	}
	wav, err := a.codec.Encode(audioPayload(sas))
	if err != nil {
		return err
	}
	return a.speaker.Play(ctx, wav)
}

func (a *Audio) Verify(ctx context.Context, sas []byte) (bool, error) {
	if err := a.check(); err != nil {
		return false, err
	}
	ms := audio.DurationMs(len(audioPayload(sas))) + recordSlackMs
	wav, err := a.microphone.Record(ctx, ms)
	if err != nil {
		return false, err
	}
	payload, err := a.codec.Decode(wav)
	if err != nil {
		return false, err
	}

	// A well formed transmission that is not ours is a mismatch.
	remote, err := hex.DecodeString(string(bytes.TrimRight(payload, "\x00")))
	if err != nil {
		return false, nil
	}
	return subtle.ConstantTimeCompare(remote, sas) == 1, nil
}
