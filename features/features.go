// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// features serializes feature vectors.  A vector is the XDR encoding of a
// small header followed by IEEE 754 doubles, which makes the round trip exact.
package features

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/davecgh/go-xdr/xdr2"
)

const (
	Version = 1

	// MaxValues bounds decoding, a 1024 point spectrum has 513 bins.
	MaxValues = 4096
)

var (
	ErrVersion  = errors.New("unsupported feature version")
	ErrTooLarge = errors.New("too many values")
	ErrDecode   = errors.New("could not decode features")
)

type vector struct {
	Version int
	Values  []float64
}

// Encode returns the canonical byte form of v.
func Encode(v []float64) ([]byte, error) {
	if len(v) > MaxValues {
		return nil, ErrTooLarge
	}
	if v == nil {
		v = []float64{}
	}
	var bb bytes.Buffer
	_, err := xdr.Marshal(&bb, vector{Version: Version, Values: v})
	if err != nil {
		return nil, err
	}
	return bb.Bytes(), nil
}

// Decode parses the output of Encode.
func Decode(b []byte) ([]float64, error) {
	var v vector
	br := bytes.NewReader(b)
	_, err := xdr.UnmarshalLimited(br, &v, MaxValues)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if v.Version != Version {
		return nil, fmt.Errorf("%w: %v", ErrVersion, v.Version)
	}
	if br.Len() != 0 {
		return nil, fmt.Errorf("%w: %v trailing bytes", ErrDecode,
			br.Len())
	}
	if v.Values == nil {
		v.Values = []float64{}
	}
	return v.Values, nil
}
