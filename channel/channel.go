// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// channel implements the out of band verification channels.  A one way
// channel has a transmitting side that emits the short authenticated string
// and a receiving side that captures the emission and compares it with its
// own.  The motion channel is mutual: both sides sample and the evidence is
// compared after it has been exchanged in band.
//
// Channels reach the physical world only through the narrow boundary
// interfaces declared here.
package channel

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/companyzero/zkpair/audio"
	"github.com/companyzero/zkpair/kx"
	"github.com/companyzero/zkpair/motion"
	"github.com/companyzero/zkpair/rpc"
	"github.com/companyzero/zkpair/trigcache"
	"github.com/companyzero/zkpair/visual"
)

var (
	ErrUnsupported = errors.New("channel not supported")
	ErrMutual      = errors.New("mutual channel has no transmitter")
	ErrNotMutual   = errors.New("channel is not mutual")
	ErrClosed      = errors.New("channel closed")
	ErrLength      = errors.New("invalid sas length")
)

// Display shows an image, typically a code for the peer's camera.
type Display interface {
	Show(ctx context.Context, img image.Image) error
}

// Camera captures a raster.
type Camera interface {
	Capture(ctx context.Context) (image.Image, error)
}

// Speaker plays a WAV container.
type Speaker interface {
	Play(ctx context.Context, wav []byte) error
}

// Microphone records durationMs worth of audio into a WAV container.
type Microphone interface {
	Record(ctx context.Context, durationMs int) ([]byte, error)
}

// Sensor samples the accelerometer for durationMs.
type Sensor interface {
	SampleWindow(ctx context.Context, durationMs int) ([]motion.Sample, error)
}

// Presenter shows text to the operator.
type Presenter interface {
	Present(ctx context.Context, text string) error
}

// Confirmer asks the operator whether text matches what the other device
// shows.
type Confirmer interface {
	Confirm(ctx context.Context, text string) (bool, error)
}

// Channel is a one way verification channel.
type Channel interface {
	// Token returns the wire token of the channel.
	Token() string

	// SASLength returns the number of bytes of short authenticated string
	// the channel carries, 0 for mutual channels.
	SASLength() int

	// Transmit emits sas out of band.
	Transmit(ctx context.Context, sas []byte) error

	// Verify captures the peer's emission and compares it with sas.
	// Decoding failures are returned as errors; IsDecodeFailure tells
	// them apart from fatal errors.
	Verify(ctx context.Context, sas []byte) (bool, error)

	// Close releases channel resources.
	Close() error
}

// Mutual is implemented by channels where both sides capture evidence.
type Mutual interface {
	Channel

	// Sample captures local evidence.
	Sample(ctx context.Context) ([]byte, error)

	// Compare decides whether local and remote evidence match.
	Compare(local, remote []byte) (bool, error)
}

// IsDecodeFailure returns true if err is a channel specific decoding failure
// that warrants a replay rather than aborting the session.
func IsDecodeFailure(err error) bool {
	return errors.Is(err, audio.ErrDemodulationFailure) ||
		errors.Is(err, visual.ErrNoCodeDetected) ||
		errors.Is(err, visual.ErrChecksumFailure)
}

// Default short authenticated string lengths in bytes.
var DefaultLengths = map[string]int{
	rpc.ChannelAudio:      7,
	rpc.ChannelVisual:     7,
	rpc.ChannelManualComp: 6, // 12 hex characters
	rpc.ChannelMadlib:     7,
	rpc.ChannelSlowCodec:  5,
	rpc.ChannelMotion:     0,
}

// Set describes the boundaries and parameters available to a device.  A
// channel is supported when all of its boundaries are present.
type Set struct {
	Cache *trigcache.Cache // shared carrier tables, may be nil

	Display    Display
	Camera     Camera
	Speaker    Speaker
	Microphone Microphone
	Sensor     Sensor
	Presenter  Presenter
	Confirmer  Confirmer

	Lengths map[string]int // overrides DefaultLengths

	QRVersion   int
	QRLevel     visual.Level
	MadlibWords int

	MotionWindow    int     // samples, power of two
	MotionRate      int     // Hz
	MotionThreshold float64 // minimum similarity
}

// Validate checks the length overrides of s.  Every length must be usable by
// kx.DeriveSAS and an audio string must fit in a single audio payload.
func (s *Set) Validate() error {
	for token, n := range s.Lengths {
		if _, ok := DefaultLengths[token]; !ok {
			return fmt.Errorf("%w: unknown channel %q", ErrLength, token)
		}
		if n < 1 || n > kx.MaxSASSize {
			return fmt.Errorf("%w: %v %v", ErrLength, token, n)
		}
		if token == rpc.ChannelAudio &&
			len(audioPayload(make([]byte, n))) > audio.MaxPayload {
			return fmt.Errorf("%w: %v %v exceeds audio payload",
				ErrLength, token, n)
		}
	}
	return nil
}

func (s *Set) length(token string) int {
	if n, ok := s.Lengths[token]; ok && n > 0 {
		return n
	}
	return DefaultLengths[token]
}

func (s *Set) supports(token string) bool {
	switch token {
	case rpc.ChannelVisual:
		return s.Display != nil && s.Camera != nil
	case rpc.ChannelAudio:
		return s.Speaker != nil && s.Microphone != nil
	case rpc.ChannelManualComp, rpc.ChannelMadlib:
		return s.Presenter != nil && s.Confirmer != nil
	case rpc.ChannelSlowCodec:
		return s.Speaker != nil && s.Confirmer != nil
	case rpc.ChannelMotion:
		return s.Sensor != nil
	}
	return false
}

// Supported filters preferred down to the channels this set can run.  When
// preferred is empty rpc.Channels is used.
func (s *Set) Supported(preferred []string) []string {
	if len(preferred) == 0 {
		preferred = rpc.Channels
	}
	var r []string
	for _, token := range preferred {
		if s.supports(token) {
			r = append(r, token)
		}
	}
	return r
}

// New returns a fresh channel instance for token.  Instances live for one
// session and must be closed.
func (s *Set) New(token string) (Channel, error) {
	if !s.supports(token) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, token)
	}

	n := s.length(token)
	switch token {
	case rpc.ChannelVisual:
		return &Visual{
			codec:   visual.Codec{Version: s.QRVersion, Level: s.QRLevel},
			display: s.Display,
			camera:  s.Camera,
			length:  n,
		}, nil
	case rpc.ChannelAudio:
		return &Audio{
			codec:      audio.New(s.Cache),
			speaker:    s.Speaker,
			microphone: s.Microphone,
			length:     n,
		}, nil
	case rpc.ChannelManualComp:
		return &HashCompare{
			presenter: s.Presenter,
			confirmer: s.Confirmer,
			length:    n,
		}, nil
	case rpc.ChannelMadlib:
		return &Madlib{
			presenter: s.Presenter,
			confirmer: s.Confirmer,
			words:     s.MadlibWords,
			length:    n,
		}, nil
	case rpc.ChannelSlowCodec:
		return &SlowCodec{
			codec:     audio.New(s.Cache),
			speaker:   s.Speaker,
			confirmer: s.Confirmer,
			length:    n,
		}, nil
	case rpc.ChannelMotion:
		return &Motion{
			sensor:    s.Sensor,
			window:    s.MotionWindow,
			rate:      s.MotionRate,
			threshold: s.MotionThreshold,
		}, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUnsupported, token)
}

// closer tracks the closed state shared by all channels.
type closer struct {
	closed bool
}

func (c *closer) Close() error {
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	return nil
}

func (c *closer) check() error {
	if c.closed {
		return ErrClosed
	}
	return nil
}
