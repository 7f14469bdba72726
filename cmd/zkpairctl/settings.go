// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/companyzero/zkpair/rpc"
	"github.com/companyzero/zkpair/settings"
	"github.com/companyzero/zkpair/zkutil"
	"github.com/ogier/pflag"
)

// ObtainSettings returns the settings and the message to send once paired.
func ObtainSettings() (*settings.Settings, string, error) {
	// defaults
	s := settings.New()

	defaultConfFile, err := zkutil.DefaultConfPath()
	if err != nil {
		return nil, "", err
	}

	// config file
	filename := pflag.StringP("cfg", "C", defaultConfFile, "config file")
	export := pflag.String("export", "", "export default config file")
	version := pflag.BoolP("version", "v", false, "show version")
	debug := pflag.BoolP("debug", "d", false, "enable debug")
	connect := pflag.StringP("connect", "c", "", "override responder address")
	message := pflag.StringP("message", "m", "", "message sent over the paired transport")
	pflag.Parse()

	if *version {
		fmt.Fprintf(os.Stderr, "zkpairctl %s (%s) protocol version %d\n",
			zkutil.Version(), runtime.Version(), rpc.ProtocolVersion)
		os.Exit(0)
	}

	if *export != "" {
		fmt.Printf("exporting config file to: %v\n", *export)
		if err := settings.WriteDefault(*export); err != nil {
			return nil, "", err
		}
		os.Exit(0)
	}

	// first run with defaults creates the config file
	_, err = os.Stat(*filename)
	if os.IsNotExist(err) && *filename == defaultConfFile {
		fmt.Printf("Initial run, creating default config: %v\n",
			defaultConfFile)
		err = os.MkdirAll(filepath.Dir(defaultConfFile), 0700)
		if err != nil {
			return nil, "", err
		}
		err = settings.WriteDefault(defaultConfFile)
		if err != nil {
			return nil, "", err
		}
	}

	// load file
	err = s.Load(*filename)
	if err != nil {
		return nil, "", err
	}

	if *debug {
		s.Debug = true
	}
	if *connect != "" {
		s.Connect = *connect
	}
	if *message != "" {
		// a message needs the transport
		s.KeepConnected = true
	}

	return s, *message, nil
}
