// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package channel

import (
	"context"
	"fmt"

	"github.com/companyzero/zkpair/features"
	"github.com/companyzero/zkpair/motion"
	"github.com/companyzero/zkpair/rpc"
)

// DefaultMotionThreshold is the minimum similarity of two shaken devices.
const DefaultMotionThreshold = 0.7

// Motion compares accelerometer spectra of two devices shaken together.
type Motion struct {
	closer
	sensor    Sensor
	window    int
	rate      int
	threshold float64
}

func (m *Motion) Token() string  { return rpc.ChannelMotion }
func (m *Motion) SASLength() int { return 0 }

func (m *Motion) Transmit(ctx context.Context, sas []byte) error {
	return ErrMutual
}

func (m *Motion) Verify(ctx context.Context, sas []byte) (bool, error) {
	return false, ErrMutual
}

func (m *Motion) params() (window, rate int, threshold float64) {
	window, rate, threshold = m.window, m.rate, m.threshold
	if window == 0 {
		window = motion.DefaultWindow
	}
	if rate == 0 {
		rate = motion.DefaultRate
	}
	if threshold == 0 {
		threshold = DefaultMotionThreshold
	}
	return
}

// Sample records one window and returns its encoded feature vector.
func (m *Motion) Sample(ctx context.Context) ([]byte, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	window, rate, _ := m.params()
	ms := (window*1000 + rate - 1) / rate
	samples, err := m.sensor.SampleWindow(ctx, ms)
	if err != nil {
		return nil, err
	}
	v, err := motion.Extract(samples, window)
	if err != nil {
		return nil, err
	}
	return features.Encode(v)
}

// Compare scores local against remote evidence.
func (m *Motion) Compare(local, remote []byte) (bool, error) {
	if err := m.check(); err != nil {
		return false, err
	}
	a, err := features.Decode(local)
	if err != nil {
		return false, err
	}
	b, err := features.Decode(remote)
	if err != nil {
		return false, err
	}
	if len(a) != len(b) {
		return false, fmt.Errorf("%w: feature length %v, peer %v",
			features.ErrDecode, len(a), len(b))
	}
	_, _, threshold := m.params()
	return motion.Score(a, b) >= threshold, nil
}
