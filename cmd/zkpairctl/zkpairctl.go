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
	"syscall"

	"github.com/companyzero/zkpair/debug"
	"github.com/companyzero/zkpair/session"
	"github.com/companyzero/zkpair/spool"
	"github.com/companyzero/zkpair/trigcache"
	"github.com/davecgh/go-spew/spew"
)

func _main() error {
	s, message, err := ObtainSettings()
	if err != nil {
		return err
	}

	err = os.MkdirAll(s.Root, 0700)
	if err != nil {
		return err
	}

	log, err := debug.New(s.LogFile, s.TimeFormat)
	if err != nil {
		return err
	}
	err = log.RegisterAll(debug.Names())
	if err != nil {
		return err
	}
	if s.Debug {
		log.EnableDebug()
		if s.Trace {
			log.EnableTrace()
		}
	}
	log.Dbg(debug.IDApp, "Settings %v", spew.Sdump(s))

	sp, err := spool.New(filepath.Join(s.Root, "spool-ctl"), os.Stdin,
		os.Stdout, log)
	if err != nil {
		return err
	}
	cfg, err := s.Session(sp.Set(trigcache.NewDefault()), log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT,
		syscall.SIGTERM)
	defer stop()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.Connect)
	if err != nil {
		return err
	}
	fmt.Printf("Pairing with %v, spool directory %v\n", s.Connect, sp.Dir)

	r := session.Initiate(ctx, conn, cfg)
	if r.State != session.StateSuccess {
		return fmt.Errorf("pairing failed (%v): %w", r.Kind(), r.Err)
	}
	fmt.Printf("Paired over %v (%v)\n", r.Channel, r.ID)

	if r.Transport == nil {
		return nil
	}
	defer r.Transport.Close()
	if message != "" {
		return r.Transport.Write([]byte(message))
	}
	return nil
}

func main() {
	err := _main()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
