// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/companyzero/zkpair/blobshare"
	"github.com/companyzero/zkpair/block"
	"github.com/companyzero/zkpair/channel"
	"github.com/companyzero/zkpair/debug"
	"github.com/companyzero/zkpair/kx"
	"github.com/companyzero/zkpair/rpc"
	"github.com/companyzero/zkpair/tools"
)

func isPeerFailure(err error) bool {
	return errors.Is(err, ErrPeerFailure)
}

// step arms the per step deadline on the connection.
func (s *Session) step() {
	s.conn.SetDeadline(time.Now().Add(s.cfg.ServiceTimeout))
}

// send sends command name with optional XDR payload v.
func (s *Session) send(name string, v interface{}) error {
	s.step()
	s.log.T(debug.IDSession, "%v: > %v", s.ID, name)
	if name == rpc.CmdFailure {
		s.failureSent = true
	}
	if v == nil {
		return s.stream.Send(name, nil, 0)
	}
	return s.stream.SendXDR(name, v)
}

// expect receives the next block, which must be one of names.  The payload
// is decoded into v when v is not nil.  An unexpected FAILURE is reported as
// ErrPeerFailure, anything else unexpected is a protocol violation.
func (s *Session) expect(v interface{}, names ...string) (string, error) {
	s.step()
	name, payload, err := s.stream.Receive()
	if err != nil {
		return "", err
	}
	if name == rpc.CmdFailure {
		s.failureSent = true // nothing left to tell
	}

	for _, n := range names {
		if n != name {
			continue
		}
		s.log.T(debug.IDSession, "%v: < %v", s.ID, name)
		if v != nil {
			if err := block.DecodeXDR(payload, v); err != nil {
				return name, fmt.Errorf("%w: %v payload: %w",
					ErrProtocolViolation, name, err)
			}
		}
		return name, nil
	}

	if name == rpc.CmdFailure {
		return name, fmt.Errorf("%w in %v", ErrPeerFailure, s.state)
	}
	s.log.Log(debug.IDSession, "%v: unexpected %v in %v", s.ID, name,
		s.state)
	return name, fmt.Errorf("%w: unexpected %q in %v", ErrProtocolViolation,
		name, s.state)
}

func (s *Session) negotiate() error {
	local := s.cfg.Set.Supported(s.cfg.Channels)

	if s.role == Initiator {
		err := s.send(rpc.CmdPreAuth, rpc.PreAuth{
			Version:  rpc.ProtocolVersion,
			Channels: local,
		})
		if err != nil {
			return err
		}
		var pa rpc.PreAuth
		if _, err := s.expect(&pa, rpc.CmdPreAuth); err != nil {
			return err
		}
		if pa.Version != rpc.ProtocolVersion {
			return fmt.Errorf("%w: protocol version %v",
				ErrProtocolViolation, pa.Version)
		}
		common := rpc.Intersect(local, pa.Channels)
		if len(common) == 0 {
			return fmt.Errorf("%w: no common channel",
				ErrProtocolViolation)
		}
		s.token = common[0]

		cmd := rpc.CmdTransferAuth
		s.transmitter = true
		if s.cfg.Capture {
			cmd = rpc.CmdInput
			s.transmitter = false
		}
		err = s.send(cmd, rpc.ChannelSelect{Channel: s.token})
		if err != nil {
			return err
		}
		_, err = s.expect(nil, rpc.CmdAck)
		return err
	}

	var pa rpc.PreAuth
	if _, err := s.expect(&pa, rpc.CmdPreAuth); err != nil {
		return err
	}
	if pa.Version != rpc.ProtocolVersion {
		return fmt.Errorf("%w: protocol version %v", ErrProtocolViolation,
			pa.Version)
	}
	common := rpc.Intersect(pa.Channels, local)
	err := s.send(rpc.CmdPreAuth, rpc.PreAuth{
		Version:  rpc.ProtocolVersion,
		Channels: common,
	})
	if err != nil {
		return err
	}
	if len(common) == 0 {
		return fmt.Errorf("%w: no common channel", ErrProtocolViolation)
	}

	var cs rpc.ChannelSelect
	name, err := s.expect(&cs, rpc.CmdTransferAuth, rpc.CmdInput)
	if err != nil {
		return err
	}
	if len(rpc.Intersect([]string{cs.Channel}, common)) == 0 {
		s.log.Log(debug.IDSession, "%v: rejected channel %q", s.ID,
			cs.Channel)
		return fmt.Errorf("%w: channel not offered", ErrProtocolViolation)
	}
	s.token = cs.Channel
	s.transmitter = name == rpc.CmdInput
	return s.send(rpc.CmdAck, nil)
}

func (s *Session) keyExchange() error {
	backend, err := kx.ByName(s.cfg.CryptoBackend)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeyAgreement, err)
	}

	var (
		a      *kx.Agreement
		remote rpc.KeyExchange
	)
	if s.role == Initiator {
		a, err = kx.NewInitiator(backend)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrKeyAgreement, err)
		}
		err = s.send(rpc.BlockKX, rpc.KeyExchange{
			Backend: a.Backend(),
			Public:  a.Public(),
		})
		if err != nil {
			return err
		}
		if _, err := s.expect(&remote, rpc.BlockKX); err != nil {
			return err
		}
		if remote.Backend != a.Backend() {
			return fmt.Errorf("%w: %w: %q", ErrKeyAgreement,
				kx.ErrBackendMismatch, remote.Backend)
		}
	} else {
		if _, err := s.expect(&remote, rpc.BlockKX); err != nil {
			return err
		}
		if remote.Backend != backend.Name() {
			return fmt.Errorf("%w: %w: %q", ErrKeyAgreement,
				kx.ErrBackendMismatch, remote.Backend)
		}
		a, err = kx.NewResponder(backend)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrKeyAgreement, err)
		}
		err = s.send(rpc.BlockKX, rpc.KeyExchange{
			Backend: a.Backend(),
			Public:  a.Public(),
		})
		if err != nil {
			return err
		}
	}

	s.log.T(debug.IDKX, "%v: %v ours %v theirs %v", s.ID, a.Backend(),
		tools.ShortFingerprint(a.Public()),
		tools.ShortFingerprint(remote.Public))

	s.authKey, err = a.Complete(remote.Public)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeyAgreement, err)
	}
	return nil
}

func (s *Session) prepare() error {
	if s.role == Initiator {
		if err := s.send(rpc.CmdPrepare, nil); err != nil {
			return err
		}
		if _, err := s.expect(nil, rpc.CmdAck); err != nil {
			return err
		}
		return s.send(rpc.CmdStart, nil)
	}

	if _, err := s.expect(nil, rpc.CmdPrepare); err != nil {
		return err
	}
	if err := s.send(rpc.CmdAck, nil); err != nil {
		return err
	}
	_, err := s.expect(nil, rpc.CmdStart)
	return err
}

// transmit runs the out of band part.  It returns our verdict and, for a
// failed verdict, the reason.
func (s *Session) transmit(ctx context.Context) (verdict int, reason error, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ServiceTimeout)
	defer cancel()

	if m, ok := s.channel.(channel.Mutual); ok {
		return s.exchangeFeatures(ctx, m)
	}

	if s.transmitter {
		if err := s.channel.Transmit(ctx, s.sas); err != nil {
			return 0, nil, err
		}
		if err := s.send(rpc.CmdDone, nil); err != nil {
			return 0, nil, err
		}
		return rpc.VerdictAbstain, nil, nil
	}

	verdict = rpc.VerdictPass
	ok, err := s.channel.Verify(ctx, s.sas)
	switch {
	case err != nil && channel.IsDecodeFailure(err):
		verdict, reason = rpc.VerdictFail, err
	case err != nil:
		return 0, nil, err
	case !ok:
		verdict, reason = rpc.VerdictFail, ErrVerificationMismatch
	}
	if _, err := s.expect(nil, rpc.CmdDone); err != nil {
		return 0, nil, err
	}
	return verdict, reason, nil
}

func (s *Session) exchangeFeatures(ctx context.Context, m channel.Mutual) (verdict int, reason error, err error) {
	local, err := m.Sample(ctx)
	if err != nil {
		return 0, nil, err
	}
	key, err := kx.DeriveKey(s.authKey, "features")
	if err != nil {
		return 0, nil, err
	}
	sealed, err := blobshare.Seal(key, local)
	if err != nil {
		return 0, nil, err
	}

	var remote rpc.Features
	if s.role == Initiator {
		err := s.send(rpc.BlockFeatures, rpc.Features{Sealed: sealed})
		if err != nil {
			return 0, nil, err
		}
		if _, err := s.expect(&remote, rpc.BlockFeatures); err != nil {
			return 0, nil, err
		}
	} else {
		if _, err := s.expect(&remote, rpc.BlockFeatures); err != nil {
			return 0, nil, err
		}
		err := s.send(rpc.BlockFeatures, rpc.Features{Sealed: sealed})
		if err != nil {
			return 0, nil, err
		}
	}

	verdict, reason = rpc.VerdictFail, ErrVerificationMismatch
	if theirs, err := blobshare.Open(key, remote.Sealed); err != nil {
		s.log.Warn(debug.IDSession, "%v: features: %v", s.ID, err)
	} else if same, err := m.Compare(local, theirs); err != nil {
		reason = fmt.Errorf("%w: %w", ErrVerificationMismatch, err)
	} else if same {
		verdict, reason = rpc.VerdictPass, nil
	}

	if s.role == Initiator {
		err = s.send(rpc.CmdDone, nil)
	} else {
		_, err = s.expect(nil, rpc.CmdDone)
	}
	if err != nil {
		return 0, nil, err
	}
	return verdict, reason, nil
}

// verify exchanges verdicts and returns the combined outcome.
func (s *Session) verify(verdict int) (bool, error) {
	var remote rpc.Verify
	if s.role == Initiator {
		if err := s.send(rpc.CmdVerify, rpc.Verify{Verdict: verdict}); err != nil {
			return false, err
		}
		if _, err := s.expect(&remote, rpc.CmdVerify); err != nil {
			return false, err
		}
	} else {
		if _, err := s.expect(&remote, rpc.CmdVerify); err != nil {
			return false, err
		}
		if err := s.send(rpc.CmdVerify, rpc.Verify{Verdict: verdict}); err != nil {
			return false, err
		}
	}
	s.log.Dbg(debug.IDSession, "%v: verdict ours %v theirs %v", s.ID,
		verdict, remote.Verdict)
	return rpc.Combine(verdict, remote.Verdict), nil
}

// outcome settles the round.  It returns true on SUCCESS, false with a nil
// error on REPLAY and an error on FAILURE.
func (s *Session) outcome(pass bool, reason error) (bool, error) {
	if s.role == Initiator {
		if pass {
			if err := s.send(rpc.CmdSuccess, nil); err != nil {
				return false, err
			}
			_, err := s.expect(nil, rpc.CmdAck)
			return err == nil, err
		}
		if s.retries < s.cfg.MaxReplayCount {
			if err := s.send(rpc.CmdReplay, nil); err != nil {
				return false, err
			}
			_, err := s.expect(nil, rpc.CmdAck)
			if isPeerFailure(err) {
				return false, fmt.Errorf("replay rejected: %w", reason)
			}
			return false, err
		}
		if err := s.send(rpc.CmdFailure, nil); err != nil {
			return false, err
		}
		return false, reason
	}

	name, err := s.expect(nil, rpc.CmdSuccess, rpc.CmdReplay,
		rpc.CmdFailure)
	if err != nil {
		return false, err
	}
	switch name {
	case rpc.CmdSuccess:
		if !pass {
			s.send(rpc.CmdFailure, nil)
			return false, fmt.Errorf("peer claimed success: %w", reason)
		}
		return true, s.send(rpc.CmdAck, nil)

	case rpc.CmdReplay:
		if pass {
			return false, fmt.Errorf("%w: replay after pass",
				ErrProtocolViolation)
		}
		if s.retries >= s.cfg.MaxReplayCount {
			s.send(rpc.CmdFailure, nil)
			return false, fmt.Errorf("replay budget exhausted: %w",
				reason)
		}
		return false, s.send(rpc.CmdAck, nil)
	}

	// FAILURE
	if pass {
		return false, fmt.Errorf("%w after pass", ErrPeerFailure)
	}
	return false, reason
}
