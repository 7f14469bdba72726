// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// blobshare seals blobs that are shared with a peer under a key derived
// from the pairing secret.  A packed blob is the random nonce followed by the
// secretbox.
package blobshare

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const NonceSize = 24

var (
	ErrShort   = errors.New("packed blob too short")
	ErrDecrypt = errors.New("could not decrypt")
)

func PackNonce(nonce *[NonceSize]byte, data []byte) []byte {
	// pack all the things
	packed := make([]byte, len(nonce)+len(data))
	copy(packed[0:], nonce[:])
	copy(packed[NonceSize:], data)

	return packed
}

func UnpackNonce(packed []byte) (nonce *[NonceSize]byte, data []byte, err error) {
	if len(packed) < NonceSize+secretbox.Overhead {
		return nil, nil, ErrShort
	}

	var nonceR [NonceSize]byte
	copy(nonceR[:], packed[0:NonceSize])
	nonce = &nonceR

	data = packed[NonceSize:]

	return
}

func Encrypt(data []byte, key *[32]byte) ([]byte, *[NonceSize]byte, error) {
	var (
		nonce [NonceSize]byte
	)

	// random nonce
	_, err := io.ReadFull(rand.Reader, nonce[:])
	if err != nil {
		return nil, nil, err
	}

	// encrypt data
	return secretbox.Seal(nil, data, &nonce, key), &nonce, nil
}

func Decrypt(key *[32]byte, nonce *[NonceSize]byte, data []byte) ([]byte, error) {
	decrypted, ok := secretbox.Open(nil, data, nonce, key)
	if !ok {
		return nil, ErrDecrypt
	}
	return decrypted, nil
}

// Seal encrypts data and packs it with its nonce.
func Seal(key *[32]byte, data []byte) ([]byte, error) {
	sealed, nonce, err := Encrypt(data, key)
	if err != nil {
		return nil, err
	}
	return PackNonce(nonce, sealed), nil
}

// Open reverses Seal.
func Open(key *[32]byte, packed []byte) ([]byte, error) {
	nonce, data, err := UnpackNonce(packed)
	if err != nil {
		return nil, err
	}
	return Decrypt(key, nonce, data)
}
