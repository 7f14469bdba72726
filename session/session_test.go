// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/companyzero/zkpair/block"
	"github.com/companyzero/zkpair/channel"
	"github.com/companyzero/zkpair/kx"
	"github.com/companyzero/zkpair/rpc"
	"github.com/companyzero/zkpair/trigcache"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func humanSet() *channel.Set {
	board := &channel.Board{}
	return &channel.Set{Presenter: board, Confirmer: board}
}

func config(set *channel.Set, channels ...string) Config {
	return Config{
		ServiceTimeout: 10 * time.Second,
		MaxReplayCount: 2,
		Channels:       channels,
		Set:            set,
	}
}

// tamper flips bits of the responder's authentication key for the duration
// of the test.  Tests using it must not run in parallel.
func tamper(t *testing.T, f func(authKey []byte)) {
	t.Helper()
	tamperAuthKey = func(role Role, authKey []byte) {
		if role == Responder {
			f(authKey)
		}
	}
	t.Cleanup(func() { tamperAuthKey = nil })
}

// pair runs an initiator and a responder against each other over conns.
func pairOver(t *testing.T, a, b net.Conn, ic, rc Config) (ir, rr *Result) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var eg errgroup.Group
	eg.Go(func() error {
		ir = Initiate(ctx, a, ic)
		return nil
	})
	eg.Go(func() error {
		rr = Respond(ctx, b, rc)
		return nil
	})
	eg.Wait()
	return ir, rr
}

func pair(t *testing.T, ic, rc Config) (ir, rr *Result) {
	t.Helper()
	a, b := net.Pipe()
	return pairOver(t, a, b, ic, rc)
}

func requireSuccess(t *testing.T, r *Result, token string) {
	t.Helper()
	require.NoError(t, r.Err)
	require.Equal(t, StateSuccess, r.State)
	require.Equal(t, token, r.Channel)
	require.Equal(t, KindNone, r.Kind())
}

func requireFailure(t *testing.T, r *Result, kind ErrorKind) {
	t.Helper()
	require.Error(t, r.Err)
	require.Equal(t, StateFailure, r.State)
	require.Equal(t, kind, r.Kind(), "%v", r.Err)
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateInit, StateNegotiating, true},
		{StateNegotiating, StateKeyExchange, true},
		{StateKeyExchange, StateChannelPrepare, true},
		{StateChannelPrepare, StateChannelTransmit, true},
		{StateChannelTransmit, StateVerifying, true},
		{StateVerifying, StateSuccess, true},
		{StateVerifying, StateChannelPrepare, true},
		{StateInit, StateFailure, true},
		{StateVerifying, StateFailure, true},
		{StateInit, StateKeyExchange, false},
		{StateKeyExchange, StateSuccess, false},
		{StateChannelTransmit, StateChannelPrepare, false},
		{StateSuccess, StateFailure, false},
		{StateFailure, StateInit, false},
	}
	for _, test := range tests {
		if got := CanTransition(test.from, test.to); got != test.ok {
			t.Fatalf("%v -> %v: got %v want %v", test.from, test.to,
				got, test.ok)
		}
	}
	if StateChannelPrepare.String() != "CHANNEL_PREPARE" {
		t.Fatalf("unexpected name %v", StateChannelPrepare)
	}
}

func TestHashCompare(t *testing.T) {
	for _, backend := range kx.Backends {
		t.Run(backend, func(t *testing.T) {
			set := humanSet()
			ic := config(set, rpc.ChannelManualComp)
			ic.CryptoBackend = backend
			rc := config(set)
			rc.CryptoBackend = backend

			ir, rr := pair(t, ic, rc)
			requireSuccess(t, ir, rpc.ChannelManualComp)
			requireSuccess(t, rr, rpc.ChannelManualComp)
			require.Zero(t, ir.Retries)
			require.Nil(t, ir.Transport)
			require.NotEqual(t, ir.ID, rr.ID)
		})
	}
}

func TestCorruptedSecret(t *testing.T) {
	set := humanSet()
	ic := config(set, rpc.ChannelManualComp)
	rc := config(set)
	tamper(t, func(authKey []byte) {
		authKey[0] ^= 0x01
	})

	ir, rr := pair(t, ic, rc)
	requireFailure(t, ir, KindVerificationMismatch)
	requireFailure(t, rr, KindVerificationMismatch)
	require.Equal(t, 2, ir.Retries)
	require.Equal(t, 2, rr.Retries)
}

func TestNoReplay(t *testing.T) {
	set := humanSet()
	ic := config(set, rpc.ChannelMadlib)
	ic.MaxReplayCount = 0
	rc := config(set)
	rc.MaxReplayCount = 0
	tamper(t, func(authKey []byte) {
		authKey[31] ^= 0x80
	})

	ir, rr := pair(t, ic, rc)
	requireFailure(t, ir, KindVerificationMismatch)
	requireFailure(t, rr, KindVerificationMismatch)
	require.Zero(t, ir.Retries)
}

// relay runs between the two peers and replaces every public value with one
// of its own, the way a man in the middle would.
func relay(t *testing.T, from, to net.Conn, replays *int32) error {
	backend, err := kx.ByName(kx.BackendX25519)
	if err != nil {
		return err
	}
	src := block.NewReadWriter(from)
	dst := block.NewReadWriter(to)
	defer from.Close()
	defer to.Close()

	for {
		name, payload, err := src.Receive()
		if err != nil {
			return nil
		}
		switch name {
		case rpc.BlockKX:
			var k rpc.KeyExchange
			if err := block.DecodeXDR(payload, &k); err != nil {
				return err
			}
			a, err := kx.NewInitiator(backend)
			if err != nil {
				return err
			}
			k.Public = a.Public()
			if err := dst.SendXDR(name, k); err != nil {
				return nil
			}
			continue
		case rpc.CmdReplay:
			atomic.AddInt32(replays, 1)
		}
		if err := dst.Send(name, payload, len(payload)); err != nil {
			return nil
		}
	}
}

func TestManInTheMiddle(t *testing.T) {
	a1, a2 := net.Pipe()
	b1, b2 := net.Pipe()

	var (
		replays int32
		wg      sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		relay(t, a2, b1, &replays)
	}()
	go func() {
		defer wg.Done()
		relay(t, b1, a2, &replays)
	}()

	set := humanSet()
	ir, rr := pairOver(t, a1, b2, config(set, rpc.ChannelManualComp),
		config(set))
	wg.Wait()

	requireFailure(t, ir, KindVerificationMismatch)
	requireFailure(t, rr, KindVerificationMismatch)
	require.LessOrEqual(t, int(atomic.LoadInt32(&replays)), 2)
}

func TestAudioSession(t *testing.T) {
	air := &channel.Air{}
	set := &channel.Set{
		Cache:      trigcache.NewDefault(),
		Speaker:    air,
		Microphone: air,
	}
	ir, rr := pair(t, config(set, rpc.ChannelAudio), config(set))
	requireSuccess(t, ir, rpc.ChannelAudio)
	requireSuccess(t, rr, rpc.ChannelAudio)
}

func TestAudioReplay(t *testing.T) {
	var sent int32
	air := &channel.Air{
		Filter: func(wav []byte) []byte {
			if atomic.AddInt32(&sent, 1) > 1 {
				return wav
			}
			return wav[:len(wav)/4]
		},
	}
	set := &channel.Set{
		Cache:      trigcache.NewDefault(),
		Speaker:    air,
		Microphone: air,
	}
	ir, rr := pair(t, config(set, rpc.ChannelAudio), config(set))
	requireSuccess(t, ir, rpc.ChannelAudio)
	requireSuccess(t, rr, rpc.ChannelAudio)
	require.Equal(t, 1, ir.Retries)
	require.Equal(t, 1, rr.Retries)
}

func TestAudioDecodeExhausted(t *testing.T) {
	air := &channel.Air{
		Filter: func(wav []byte) []byte {
			return wav[:len(wav)/4]
		},
	}
	set := &channel.Set{
		Speaker:    air,
		Microphone: air,
	}
	ic := config(set, rpc.ChannelAudio)
	ic.MaxReplayCount = 1
	rc := config(set)
	rc.MaxReplayCount = 1
	ir, rr := pair(t, ic, rc)
	requireFailure(t, ir, KindVerificationMismatch)
	requireFailure(t, rr, KindDemodulation)
	require.Equal(t, 1, rr.Retries)
}

func TestVisualCapture(t *testing.T) {
	screen := &channel.Screen{}
	set := &channel.Set{Display: screen, Camera: screen}

	// the initiator scans the responder's code
	ic := config(set, rpc.ChannelVisual)
	ic.Capture = true
	ir, rr := pair(t, ic, config(set))
	requireSuccess(t, ir, rpc.ChannelVisual)
	requireSuccess(t, rr, rpc.ChannelVisual)
}

func TestSlowCodecSession(t *testing.T) {
	board := &channel.Board{}
	set := &channel.Set{Speaker: board, Confirmer: board}
	ir, rr := pair(t, config(set, rpc.ChannelSlowCodec), config(set))
	requireSuccess(t, ir, rpc.ChannelSlowCodec)
	requireSuccess(t, rr, rpc.ChannelSlowCodec)
}

func TestMotionSession(t *testing.T) {
	ir, rr := pair(t,
		config(&channel.Set{Sensor: channel.NewShaker(1, 150)},
			rpc.ChannelMotion),
		config(&channel.Set{Sensor: channel.NewShaker(2, 150)}))
	requireSuccess(t, ir, rpc.ChannelMotion)
	requireSuccess(t, rr, rpc.ChannelMotion)

	ic := config(&channel.Set{Sensor: channel.NewShaker(3, 150)},
		rpc.ChannelMotion)
	ic.MaxReplayCount = 0
	rc := config(&channel.Set{Sensor: channel.NewJitter(4)})
	rc.MaxReplayCount = 0
	ir, rr = pair(t, ic, rc)
	requireFailure(t, ir, KindVerificationMismatch)
	requireFailure(t, rr, KindVerificationMismatch)
}

func TestMotionTamperedKey(t *testing.T) {
	ic := config(&channel.Set{Sensor: channel.NewShaker(1, 150)},
		rpc.ChannelMotion)
	ic.MaxReplayCount = 0
	rc := config(&channel.Set{Sensor: channel.NewShaker(2, 150)})
	rc.MaxReplayCount = 0
	tamper(t, func(authKey []byte) {
		authKey[5] ^= 0xff
	})

	// identical motion but the features do not open
	ir, rr := pair(t, ic, rc)
	requireFailure(t, ir, KindVerificationMismatch)
	requireFailure(t, rr, KindVerificationMismatch)
}

func TestKeepConnected(t *testing.T) {
	set := humanSet()
	ic := config(set, rpc.ChannelManualComp)
	ic.KeepConnected = true
	rc := config(set)
	rc.KeepConnected = true

	ir, rr := pair(t, ic, rc)
	requireSuccess(t, ir, rpc.ChannelManualComp)
	requireSuccess(t, rr, rpc.ChannelManualComp)
	require.NotNil(t, ir.Transport)
	require.NotNil(t, rr.Transport)
	defer ir.Transport.Close()
	defer rr.Transport.Close()

	exchange := func(from, to *Transport, msg string) {
		var eg errgroup.Group
		eg.Go(func() error {
			return from.Write([]byte(msg))
		})
		got, err := to.Read()
		require.NoError(t, err)
		require.NoError(t, eg.Wait())
		require.Equal(t, msg, string(got))
	}
	exchange(ir.Transport, rr.Transport, "hello responder")
	exchange(rr.Transport, ir.Transport, "hello initiator")
	exchange(ir.Transport, rr.Transport, "again")

	// a message sealed under the wrong key does not open
	bogus, err := newTransport(ir.Transport.Conn, make([]byte, 32), true)
	require.NoError(t, err)
	bogus.writeSeq = ir.Transport.writeSeq
	var eg errgroup.Group
	eg.Go(func() error {
		return bogus.Write([]byte("tampered"))
	})
	_, err = rr.Transport.Read()
	require.ErrorIs(t, err, ErrDecrypt)
	require.NoError(t, eg.Wait())
}

func TestTimeout(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	cfg := config(humanSet())
	cfg.ServiceTimeout = 100 * time.Millisecond
	start := time.Now()
	r := Initiate(context.Background(), a, cfg)
	requireFailure(t, r, KindTimeout)
	require.Equal(t, StateFailure, r.State)
	require.Less(t, time.Since(start), 5*time.Second)

	// transport released
	_, err := b.Write([]byte{0})
	require.Error(t, err)
}

func TestCancel(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *Result)
	go func() {
		done <- Respond(ctx, a, config(humanSet()))
	}()
	cancel()

	select {
	case r := <-done:
		requireFailure(t, r, KindTransport)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop")
	}
}

func TestNoCommonChannel(t *testing.T) {
	screen := &channel.Screen{}
	ir, rr := pair(t, config(humanSet()),
		config(&channel.Set{Display: screen, Camera: screen}))
	requireFailure(t, ir, KindProtocolViolation)
	requireFailure(t, rr, KindProtocolViolation)
	require.Empty(t, ir.Channel)
}

func TestBackendMismatch(t *testing.T) {
	set := humanSet()
	ic := config(set)
	ic.CryptoBackend = kx.BackendX448
	ir, rr := pair(t, ic, config(set))
	requireFailure(t, rr, KindKeyAgreement)
	requireFailure(t, ir, KindProtocolViolation)
	require.ErrorIs(t, ir.Err, ErrPeerFailure)
}

// fake sends raw blocks to a responder and returns the first answer.
func fake(t *testing.T, blocks func(s *block.Streamer) error) (*Result, string) {
	t.Helper()
	a, b := net.Pipe()
	defer a.Close()

	done := make(chan *Result)
	go func() {
		done <- Respond(context.Background(), b, config(humanSet()))
	}()

	s := block.NewReadWriter(a)
	require.NoError(t, blocks(s))
	name, _, err := s.Receive()
	require.NoError(t, err)
	return <-done, name
}

func TestProtocolViolation(t *testing.T) {
	r, answer := fake(t, func(s *block.Streamer) error {
		return s.Send("HELLO", []byte("world"), 5)
	})
	requireFailure(t, r, KindProtocolViolation)
	require.Equal(t, rpc.CmdFailure, answer)

	r, answer = fake(t, func(s *block.Streamer) error {
		return s.SendXDR(rpc.CmdPreAuth, rpc.PreAuth{
			Version:  rpc.ProtocolVersion + 1,
			Channels: []string{rpc.ChannelManualComp},
		})
	})
	requireFailure(t, r, KindProtocolViolation)
	require.Equal(t, rpc.CmdFailure, answer)

	// nothing in common
	r, answer = fake(t, func(s *block.Streamer) error {
		return s.SendXDR(rpc.CmdPreAuth, rpc.PreAuth{
			Version:  rpc.ProtocolVersion,
			Channels: []string{"TELEPATHY"},
		})
	})
	requireFailure(t, r, KindProtocolViolation)
	require.Equal(t, rpc.CmdPreAuth, answer)
}

func TestConfig(t *testing.T) {
	var c Config
	require.ErrorIs(t, c.Validate(), ErrInvalidConfig)

	c = Config{Set: humanSet()}
	require.NoError(t, c.Validate())
	require.Equal(t, DefaultServiceTimeout, c.ServiceTimeout)
	require.Equal(t, DefaultCryptoBackend, c.CryptoBackend)

	c = Config{Set: humanSet(), CryptoBackend: "rot13"}
	require.ErrorIs(t, c.Validate(), ErrInvalidConfig)
	c = Config{Set: humanSet(), MaxReplayCount: -1}
	require.ErrorIs(t, c.Validate(), ErrInvalidConfig)
	c = Config{Set: humanSet(), Channels: []string{"SMOKE_SIGNAL"}}
	require.ErrorIs(t, c.Validate(), ErrInvalidConfig)
	c = Config{Set: humanSet(), Channels: []string{rpc.ChannelAudio}}
	require.ErrorIs(t, c.Validate(), ErrInvalidConfig)

	// over long strings are refused before any session starts
	set := humanSet()
	set.Lengths = map[string]int{rpc.ChannelManualComp: kx.MaxSASSize + 1}
	c = Config{Set: set}
	err := c.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.ErrorIs(t, err, channel.ErrLength)

	a, b := net.Pipe()
	defer b.Close()
	r := Initiate(context.Background(), a, Config{})
	requireFailure(t, r, KindConfiguration)
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		kind ErrorKind
	}{
		{nil, KindNone},
		{ErrTimeout, KindTimeout},
		{context.DeadlineExceeded, KindTimeout},
		{errors.Join(block.ErrFraming, errors.New("eof")), KindFraming},
		{block.ErrTransport, KindTransport},
		{context.Canceled, KindTransport},
		{ErrPeerFailure, KindProtocolViolation},
		{kx.ErrInvalidPublicValue, KindKeyAgreement},
		{ErrVerificationMismatch, KindVerificationMismatch},
		{block.ErrNoWriter, KindConfiguration},
	}
	for _, test := range tests {
		if got := Kind(test.err); got != test.kind {
			t.Fatalf("%v: got %v want %v", test.err, got, test.kind)
		}
	}
}
