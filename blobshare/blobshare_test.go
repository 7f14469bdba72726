// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blobshare

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"testing"
)

func newKey(t *testing.T) *[32]byte {
	var key [32]byte
	_, err := io.ReadFull(rand.Reader, key[:])
	if err != nil {
		t.Fatal(err)
	}
	return &key
}

func TestPackNonce(t *testing.T) {
	var (
		nonce [NonceSize]byte
		data  [1024]byte
	)

	_, err := io.ReadFull(rand.Reader, data[:])
	if err != nil {
		t.Fatal(err)
	}
	nonce[3] = 0x42

	packed := PackNonce(&nonce, data[:])

	nonceR, dataR, err := UnpackNonce(packed)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(nonce[:], nonceR[:]) {
		t.Fatalf("corrupted nonce")
	}
	if !bytes.Equal(data[:], dataR) {
		t.Fatalf("corrupted data")
	}

	_, _, err = UnpackNonce(packed[:NonceSize+1])
	if !errors.Is(err, ErrShort) {
		t.Fatalf("expected short blob got %v", err)
	}
}

func TestSealOpen(t *testing.T) {
	var payload [1024]byte
	_, err := io.ReadFull(rand.Reader, payload[:])
	if err != nil {
		t.Fatal(err)
	}
	key := newKey(t)

	packed, err := Seal(key, payload[:])
	if err != nil {
		t.Fatal(err)
	}
	decrypted, err := Open(key, packed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decrypted, payload[:]) {
		t.Fatalf("corrupted data")
	}

	// same payload, different nonce
	again, err := Seal(key, payload[:])
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(again, packed) {
		t.Fatalf("nonce reused")
	}

	// wrong key
	if _, err := Open(newKey(t), packed); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected decrypt failure got %v", err)
	}

	// flipped bit
	packed[len(packed)-1] ^= 0x01
	if _, err := Open(key, packed); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected decrypt failure got %v", err)
	}
}

func TestEmpty(t *testing.T) {
	key := newKey(t)
	packed, err := Seal(key, nil)
	if err != nil {
		t.Fatal(err)
	}
	decrypted, err := Open(key, packed)
	if err != nil {
		t.Fatal(err)
	}
	if len(decrypted) != 0 {
		t.Fatalf("unexpected data %x", decrypted)
	}
}
