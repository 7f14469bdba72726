// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zkutil

import (
	"fmt"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

const (
	DefaultDir  = ".zkpair"
	DefaultConf = "zkpair.conf"

	versionMajor = 0
	versionMinor = 1
	versionPatch = 0
)

// versionPre may be set at link time.
var versionPre = ""

func Version() string {
	v := fmt.Sprintf("%d.%d.%d", versionMajor, versionMinor, versionPatch)
	if versionPre != "" {
		v += "-" + versionPre
	}
	return v
}

func DefaultRootPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("homedir.Dir: %v", err)
	}
	return filepath.Join(home, DefaultDir), nil
}

func DefaultConfPath() (string, error) {
	root, err := DefaultRootPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, DefaultConf), nil
}
