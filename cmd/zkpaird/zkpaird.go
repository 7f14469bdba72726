// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/companyzero/zkpair/channel"
	"github.com/companyzero/zkpair/debug"
	"github.com/companyzero/zkpair/dispatcher"
	"github.com/companyzero/zkpair/rpc"
	"github.com/companyzero/zkpair/session"
	"github.com/companyzero/zkpair/settings"
	"github.com/companyzero/zkpair/spool"
	"github.com/companyzero/zkpair/trigcache"
	"github.com/companyzero/zkpair/zkutil"
	"github.com/davecgh/go-spew/spew"
)

type zkpaird struct {
	*debug.Debug

	settings *settings.Settings
}

// converse logs messages received over a kept transport until the peer
// hangs up.
func (z *zkpaird) converse(r *session.Result) {
	defer r.Transport.Close()

	for {
		msg, err := r.Transport.Read()
		if err != nil {
			z.Dbg(debug.IDApp, "%v: transport: %v", r.ID, err)
			return
		}
		z.Log(debug.IDApp, "%v: message: %s", r.ID, msg)
	}
}

func (z *zkpaird) handle(r *session.Result) bool {
	if r.State != session.StateSuccess {
		z.Warn(debug.IDApp, "%v: pairing failed (%v): %v", r.ID,
			r.Kind(), r.Err)
		return false
	}
	z.Info(debug.IDApp, "%v: paired over %v after %v replays", r.ID,
		r.Channel, r.Retries)

	if r.Transport == nil {
		return false
	}
	go z.converse(r)
	return true
}

func _main() error {
	z := &zkpaird{}

	// flags and settings
	var err error
	z.settings, err = ObtainSettings()
	if err != nil {
		return err
	}

	// create paths
	err = os.MkdirAll(z.settings.Root, 0700)
	if err != nil {
		return err
	}

	// handle logging
	z.Debug, err = debug.New(z.settings.LogFile, z.settings.TimeFormat)
	if err != nil {
		return err
	}
	err = z.RegisterAll(debug.Names())
	if err != nil {
		return err
	}

	// print version
	z.Info(debug.IDApp, "Version: %v, Protocol: %v",
		zkutil.Version(), rpc.ProtocolVersion)

	z.Info(debug.IDApp, "Start of day")
	z.Info(debug.IDApp, "Settings %v", spew.Sdump(z.settings))
	defer z.Info(debug.IDApp, "End of times")

	// debugging
	if z.settings.Debug {
		z.Info(debug.IDApp, "Debug enabled")
		z.EnableDebug()

		if z.settings.Trace {
			z.Info(debug.IDApp, "Trace enabled")
			z.EnableTrace()
		}
	}

	// channel boundaries
	sp, err := spool.New(filepath.Join(z.settings.Root, "spool"),
		os.Stdin, os.Stdout, z.Debug)
	if err != nil {
		return err
	}
	cfg, err := z.settings.Session(sp.Set(trigcache.NewDefault()), z.Debug)
	if err != nil {
		return err
	}
	z.Info(debug.IDApp, "Spool directory: %v/<slot>", sp.Dir)
	z.Info(debug.IDApp, "Channels: %v", cfg.Set.Supported(cfg.Channels))

	d, err := dispatcher.New(cfg, z.settings.MaxSessions, z.handle)
	if err != nil {
		return err
	}
	// every session slot gets its own spool subdirectory
	template := cfg.Set
	d.PerSlot(func(slot uint32) (*channel.Set, error) {
		sub, err := sp.Sub(strconv.FormatUint(uint64(slot), 10))
		if err != nil {
			return nil, err
		}
		return sub.Attach(template), nil
	})

	l, err := net.Listen("tcp", z.settings.Listen)
	if err != nil {
		return fmt.Errorf("could not listen: %v", err)
	}

	// wait for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT,
		syscall.SIGTERM)
	defer stop()

	return d.Serve(ctx, l)
}

func main() {
	err := _main()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
