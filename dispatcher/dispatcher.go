// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// dispatcher accepts connections and runs a responder session for each of
// them.  The accept loop never runs protocol logic; every admitted
// connection is handed to its own goroutine immediately.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/companyzero/zkpair/channel"
	"github.com/companyzero/zkpair/debug"
	"github.com/companyzero/zkpair/session"
	"github.com/companyzero/zkpair/tagstack"
	"golang.org/x/sync/errgroup"
)

const DefaultMaxSessions = 32

var ErrInvalidMaxSessions = errors.New("max sessions must be positive")

// Handler receives the terminal result of every session.  A handler that
// keeps a result's Transport owns it; otherwise the dispatcher closes it.
type Handler func(r *session.Result) (keep bool)

// SlotSet returns the channel set for the session running in slot.  A slot
// is held by at most one session at a time and is reused once that session
// terminates.
type SlotSet func(slot uint32) (*channel.Set, error)

// Dispatcher runs responder sessions for accepted connections.
type Dispatcher struct {
	log     *debug.Debug
	cfg     session.Config
	handler Handler
	tags    *tagstack.TagStack
	slotSet SlotSet

	mtx   sync.Mutex
	conns map[uint32]net.Conn // open session connections by slot
}

// New returns a dispatcher that runs at most maxSessions concurrent sessions
// with cfg.  handler may be nil.
func New(cfg session.Config, maxSessions int, handler Handler) (*Dispatcher, error) {
	if maxSessions < 1 {
		return nil, ErrInvalidMaxSessions
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Dispatcher{
		log:     cfg.Log,
		cfg:     cfg,
		handler: handler,
		tags:    tagstack.New(maxSessions),
		conns:   make(map[uint32]net.Conn, maxSessions),
	}, nil
}

// PerSlot replaces the configured channel set with the one f returns for the
// slot of each session.  Boundaries that keep state on disk or on a device
// use it to keep concurrent sessions apart.  It must be called before Serve.
func (d *Dispatcher) PerSlot(f SlotSet) {
	d.slotSet = f
}

// Active returns the number of sessions in progress.
func (d *Dispatcher) Active() int {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return len(d.conns)
}

func (d *Dispatcher) track(tag uint32, conn net.Conn) {
	d.mtx.Lock()
	d.conns[tag] = conn
	d.mtx.Unlock()
}

func (d *Dispatcher) untrack(tag uint32) {
	d.mtx.Lock()
	delete(d.conns, tag)
	d.mtx.Unlock()

	if err := d.tags.Push(tag); err != nil {
		// tags are only pushed after a successful pop
		panic(fmt.Sprintf("tag %v: %v", tag, err))
	}
}

// closeAll closes every tracked connection.
func (d *Dispatcher) closeAll() {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	for _, conn := range d.conns {
		conn.Close()
	}
}

// Serve accepts connections from l until ctx is cancelled or l is closed.
// On return l and every session connection are closed and all sessions have
// terminated.  Serve returns nil when stopped through ctx.
func (d *Dispatcher) Serve(ctx context.Context, l net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	d.log.Info(debug.IDDispatcher, "listening on %v", l.Addr())

	var (
		eg  errgroup.Group
		err error
	)
	for {
		var conn net.Conn
		conn, err = l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			d.log.Error(debug.IDDispatcher, "Accept: %v", err)
			continue
		}

		tag, perr := d.tags.Pop()
		if perr != nil {
			d.log.Warn(debug.IDDispatcher, "rejecting %v: %v "+
				"sessions in progress", conn.RemoteAddr(),
				d.tags.Depth())
			conn.Close()
			continue
		}
		d.track(tag, conn)

		d.log.Dbg(debug.IDDispatcher, "incoming connection: %v slot %v",
			conn.RemoteAddr(), tag)
		eg.Go(func() error {
			defer d.untrack(tag)
			d.serve(ctx, tag, conn)
			return nil
		})
	}

	stopped := ctx.Err() != nil
	cancel()
	d.closeAll()
	eg.Wait()
	l.Close()

	d.log.Info(debug.IDDispatcher, "stopped listening on %v", l.Addr())
	if stopped {
		return nil
	}
	return err
}

func (d *Dispatcher) serve(ctx context.Context, slot uint32, conn net.Conn) {
	remote := conn.RemoteAddr()

	cfg := d.cfg
	if d.slotSet != nil {
		set, err := d.slotSet(slot)
		if err != nil {
			d.log.Error(debug.IDDispatcher, "%v: slot %v: %v", remote,
				slot, err)
			conn.Close()
			return
		}
		cfg.Set = set
	}
	r := session.Respond(ctx, conn, cfg)

	if r.State == session.StateSuccess {
		d.log.Info(debug.IDDispatcher, "%v: paired with %v over %v",
			r.ID, remote, r.Channel)
	} else {
		d.log.Info(debug.IDDispatcher, "%v: %v failed: %v", r.ID,
			remote, r.Kind())
	}

	keep := false
	if d.handler != nil {
		keep = d.handler(r)
	}
	if r.Transport != nil && !keep {
		r.Transport.Close()
	}
}
