// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package channel

import (
	"context"
	"crypto/subtle"

	"github.com/companyzero/zkpair/rpc"
	"github.com/companyzero/zkpair/visual"
)

// Visual shows the short authenticated string as a QR code and scans the
// peer's code with a camera.
type Visual struct {
	closer
	codec   visual.Codec
	display Display
	camera  Camera
	length  int
}

func (v *Visual) Token() string  { return rpc.ChannelVisual }
func (v *Visual) SASLength() int { return v.length }

func (v *Visual) Transmit(ctx context.Context, sas []byte) error {
	if err := v.check(); err != nil {
		return err
	}
	m, err := v.codec.Encode(sas)
	if err != nil {
		return err
	}
	return v.display.Show(ctx, visual.Render(m, visual.DefaultScale))
}

func (v *Visual) Verify(ctx context.Context, sas []byte) (bool, error) {
	if err := v.check(); err != nil {
		return false, err
	}
	img, err := v.camera.Capture(ctx)
	if err != nil {
		return false, err
	}
	payload, err := v.codec.Decode(img)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(payload, sas) == 1, nil
}
