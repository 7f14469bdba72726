// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// session runs the pairing protocol over a connection.  A Session owns its
// connection for its whole life and releases it on every exit path unless
// the connection is handed out as an authenticated Transport.
package session

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/companyzero/zkpair/block"
	"github.com/companyzero/zkpair/channel"
	"github.com/companyzero/zkpair/debug"
	"github.com/companyzero/zkpair/kx"
	"github.com/companyzero/zkpair/rpc"
	"github.com/google/uuid"
)

const (
	DefaultServiceTimeout = 30 * time.Second
	DefaultMaxReplayCount = 2
	DefaultCryptoBackend  = kx.BackendX25519

	// abortTimeout bounds the best effort FAILURE sent when bailing out.
	abortTimeout = time.Second
)

// Role selects the side of the protocol.
type Role int

const (
	Initiator Role = iota
	Responder
)

func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

// Config is the per session configuration.
type Config struct {
	ServiceTimeout time.Duration // abort when a step makes no progress
	KeepConnected  bool          // hand out a Transport on success
	MaxReplayCount int           // REPLAY bound
	CryptoBackend  string        // kx backend name
	Channels       []string      // preference order, empty for all
	Capture        bool          // initiator captures instead of transmitting

	Set *channel.Set
	Log *debug.Debug
}

// tamperAuthKey, when set, is applied to the authentication key before the
// short authenticated string is derived.  Only tests set it.
var tamperAuthKey func(role Role, authKey []byte)

// Validate fills in defaults and checks c.
func (c *Config) Validate() error {
	if c.ServiceTimeout == 0 {
		c.ServiceTimeout = DefaultServiceTimeout
	}
	if c.CryptoBackend == "" {
		c.CryptoBackend = DefaultCryptoBackend
	}

	if c.ServiceTimeout < 0 {
		return fmt.Errorf("%w: service timeout %v", ErrInvalidConfig,
			c.ServiceTimeout)
	}
	if c.MaxReplayCount < 0 {
		return fmt.Errorf("%w: max replay count %v", ErrInvalidConfig,
			c.MaxReplayCount)
	}
	if _, err := kx.ByName(c.CryptoBackend); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for _, v := range c.Channels {
		if !rpc.IsChannel(v) {
			return fmt.Errorf("%w: unknown channel %q", ErrInvalidConfig,
				v)
		}
	}
	if c.Set == nil {
		return fmt.Errorf("%w: no channel set", ErrInvalidConfig)
	}
	if err := c.Set.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if len(c.Set.Supported(c.Channels)) == 0 {
		return fmt.Errorf("%w: no usable channel", ErrInvalidConfig)
	}
	return nil
}

// Result is the terminal outcome of a session.
type Result struct {
	ID      uuid.UUID
	Role    Role
	State   State  // SUCCESS or FAILURE
	Channel string // agreed channel token, if any
	Retries int    // number of REPLAY transitions
	Err     error  // nil on SUCCESS

	// Transport is set on SUCCESS when the connection is kept.
	Transport *Transport
}

// Kind returns the failure kind of the result.
func (r *Result) Kind() ErrorKind {
	return Kind(r.Err)
}

// Session is a single pairing run.
type Session struct {
	ID uuid.UUID

	role   Role
	cfg    Config
	conn   net.Conn
	stream *block.Streamer
	log    *debug.Debug
	state  State

	token       string
	transmitter bool // we emit on a one way channel
	channel     channel.Channel
	authKey     []byte
	sas         []byte
	retries     int
	failureSent bool
}

// New returns a Session that runs the protocol as role over conn.
func New(conn net.Conn, role Role, cfg Config) (*Session, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: no connection", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		ID:     uuid.New(),
		role:   role,
		cfg:    cfg,
		conn:   conn,
		stream: block.NewReadWriter(conn),
		log:    cfg.Log,
		state:  StateInit,
	}, nil
}

// Initiate runs an initiator session over conn.
func Initiate(ctx context.Context, conn net.Conn, cfg Config) *Result {
	return run(ctx, conn, Initiator, cfg)
}

// Respond runs a responder session over conn.
func Respond(ctx context.Context, conn net.Conn, cfg Config) *Result {
	return run(ctx, conn, Responder, cfg)
}

func run(ctx context.Context, conn net.Conn, role Role, cfg Config) *Result {
	s, err := New(conn, role, cfg)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return &Result{Role: role, State: StateFailure, Err: err}
	}
	return s.Run(ctx)
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Run executes the protocol to completion.  Cancelling ctx closes the
// connection and fails the session.
func (s *Session) Run(ctx context.Context) *Result {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	s.log.Dbg(debug.IDSession, "%v: start %v from %v", s.ID, s.role,
		s.conn.RemoteAddr())

	r := &Result{ID: s.ID, Role: s.role}
	err := s.run(ctx)
	if err == nil {
		r.Transport, err = s.finish()
	}
	r.Channel = s.token
	r.Retries = s.retries
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w (%v)", block.ErrTransport,
				context.Cause(ctx), err)
		}
		s.abort(err)
		r.State = StateFailure
		r.Err = err
		s.log.Warn(debug.IDSession, "%v: %v failed: %v (%v)", s.ID,
			s.role, Kind(err), err)
		return r
	}

	r.State = StateSuccess
	s.log.Info(debug.IDSession, "%v: %v paired over %v after %v replays",
		s.ID, s.role, s.token, s.retries)
	return r
}

func (s *Session) transition(to State) error {
	if !CanTransition(s.state, to) {
		return fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, s.state,
			to)
	}
	s.log.T(debug.IDSession, "%v: %v -> %v", s.ID, s.state, to)
	s.state = to
	return nil
}

func (s *Session) run(ctx context.Context) error {
	if err := s.transition(StateNegotiating); err != nil {
		return err
	}
	if err := s.negotiate(); err != nil {
		return err
	}

	if err := s.transition(StateKeyExchange); err != nil {
		return err
	}
	if err := s.keyExchange(); err != nil {
		return err
	}
	if tamperAuthKey != nil {
		tamperAuthKey(s.role, s.authKey)
	}

	ch, err := s.cfg.Set.New(s.token)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	s.channel = ch
	if n := ch.SASLength(); n > 0 {
		s.sas, err = kx.DeriveSAS(s.authKey, n)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	for {
		if err := s.transition(StateChannelPrepare); err != nil {
			return err
		}
		if err := s.prepare(); err != nil {
			return err
		}

		if err := s.transition(StateChannelTransmit); err != nil {
			return err
		}
		verdict, reason, err := s.transmit(ctx)
		if err != nil {
			return err
		}

		if err := s.transition(StateVerifying); err != nil {
			return err
		}
		pass, err := s.verify(verdict)
		if err != nil {
			return err
		}
		if !pass && reason == nil {
			reason = ErrVerificationMismatch
		}

		done, err := s.outcome(pass, reason)
		if err != nil {
			return err
		}
		if done {
			return s.transition(StateSuccess)
		}

		s.retries++
		s.log.Dbg(debug.IDSession, "%v: replay %v/%v: %v", s.ID,
			s.retries, s.cfg.MaxReplayCount, reason)
	}
}

// finish releases session resources after SUCCESS and returns the transport
// when the connection is kept.
func (s *Session) finish() (*Transport, error) {
	defer s.release()

	if !s.cfg.KeepConnected {
		s.conn.Close()
		return nil, nil
	}

	if err := s.conn.SetDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("%w: %w", block.ErrTransport, err)
	}
	t, err := newTransport(s.conn, s.authKey, s.role == Initiator)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// abort moves to FAILURE, tells the peer when the connection is still in
// sync and releases everything.
func (s *Session) abort(err error) {
	if !s.state.Terminal() {
		s.transition(StateFailure)
	} else {
		s.state = StateFailure
	}

	switch Kind(err) {
	case KindProtocolViolation, KindKeyAgreement, KindConfiguration,
		KindVerificationMismatch, KindDemodulation, KindNoCodeDetected,
		KindChecksum:
		if !s.failureSent && !isPeerFailure(err) {
			s.conn.SetWriteDeadline(time.Now().Add(abortTimeout))
			s.stream.Send(rpc.CmdFailure, nil, 0)
		}
	}

	s.conn.Close()
	s.release()
}

// release zeroes session secrets and closes the channel.
func (s *Session) release() {
	for i := range s.authKey {
		s.authKey[i] = 0
	}
	for i := range s.sas {
		s.sas[i] = 0
	}
	if s.channel != nil {
		s.channel.Close()
		s.channel = nil
	}
}
