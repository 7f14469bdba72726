// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// kx performs ephemeral Diffie-Hellman key agreement and derives short
// authenticated strings from the result.  The agreement process is as
// follows:
//	1. Both sides generate an ephemeral key pair with the same backend
//	2. The initiator sends its public value, the responder replies with its
//	   own
//	3. Both sides validate the remote public value and compute the shared
//	   secret
//	4. The secret is expanded with HKDF into an authentication key bound to
//	   both public values in initiator, responder order; the secret is then
//	   zeroed
//	5. Short authenticated strings and auxiliary keys are derived from the
//	   authentication key
//
// Transport of the public values is left to the caller.
package kx

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	AuthKeySize = 32
	MaxSASSize  = sha256.Size
)

var (
	ErrInvalidPublicValue = errors.New("invalid public value")
	ErrUnknownBackend     = errors.New("unknown key agreement backend")
	ErrBackendMismatch    = errors.New("key agreement backend mismatch")
	ErrReflected          = errors.New("remote public value equals ours")
	ErrSASLength          = errors.New("invalid sas length")
	ErrCompleted          = errors.New("key agreement already completed")
)

var (
	authInfo = []byte("zkpair auth v1\x00")
)

// Backend is a Diffie-Hellman implementation.
type Backend interface {
	// Name is the backend identifier carried on the wire.
	Name() string

	// Generate returns a fresh ephemeral key pair.
	Generate(r io.Reader) (*KeyPair, error)

	// Shared computes the shared secret.  It must return
	// ErrInvalidPublicValue when remote is malformed or outside the group.
	Shared(kp *KeyPair, remote []byte) ([]byte, error)
}

// KeyPair is an ephemeral key pair.  Private must never leave the process.
type KeyPair struct {
	Public  []byte
	Private []byte
}

// Zero overwrites the private value.
func (kp *KeyPair) Zero() {
	zero(kp.Private)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Backends lists the backend names in order of preference.
var Backends = []string{BackendX25519, BackendX448, BackendModP2048}

// ByName returns the named backend.
func ByName(name string) (Backend, error) {
	switch name {
	case BackendX25519:
		return x25519Backend{}, nil
	case BackendX448:
		return x448Backend{}, nil
	case BackendModP2048:
		return modpBackend{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
}

// Agreement holds the state of a single key agreement.
type Agreement struct {
	backend   Backend
	initiator bool
	kp        *KeyPair
	done      bool
}

func newAgreement(backend Backend, initiator bool) (*Agreement, error) {
	kp, err := backend.Generate(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Agreement{
		backend:   backend,
		initiator: initiator,
		kp:        kp,
	}, nil
}

// NewInitiator returns an Agreement for the side that sends its public value
// first.
func NewInitiator(backend Backend) (*Agreement, error) {
	return newAgreement(backend, true)
}

// NewResponder returns an Agreement for the side that answers.
func NewResponder(backend Backend) (*Agreement, error) {
	return newAgreement(backend, false)
}

// Backend returns the backend name.
func (a *Agreement) Backend() string {
	return a.backend.Name()
}

// Public returns our ephemeral public value.
func (a *Agreement) Public() []byte {
	return a.kp.Public
}

// Complete validates the remote public value and returns the authentication
// key.  The shared secret and our private value are zeroed before returning,
// so Complete may only be called once.
func (a *Agreement) Complete(remote []byte) ([]byte, error) {
	if a.done {
		return nil, ErrCompleted
	}
	a.done = true
	defer a.kp.Zero()

	if subtle.ConstantTimeCompare(remote, a.kp.Public) == 1 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPublicValue,
			ErrReflected)
	}

	secret, err := a.backend.Shared(a.kp, remote)
	if err != nil {
		return nil, err
	}
	defer zero(secret)

	var transcript bytes.Buffer
	transcript.Write(authInfo)
	if a.initiator {
		transcript.Write(a.kp.Public)
		transcript.Write(remote)
	} else {
		transcript.Write(remote)
		transcript.Write(a.kp.Public)
	}

	authKey := make([]byte, AuthKeySize)
	kdf := hkdf.New(sha256.New, secret, nil, transcript.Bytes())
	if _, err := io.ReadFull(kdf, authKey); err != nil {
		return nil, err
	}
	return authKey, nil
}

// DoubleSHA256 returns SHA256(SHA256(m) || m).
func DoubleSHA256(m []byte) []byte {
	inner := sha256.Sum256(m)
	h := sha256.New()
	h.Write(inner[:])
	h.Write(m)
	return h.Sum(nil)
}

// DeriveSAS returns the first length bytes of DoubleSHA256(authKey).
func DeriveSAS(authKey []byte, length int) ([]byte, error) {
	if length < 1 || length > MaxSASSize {
		return nil, fmt.Errorf("%w: %v", ErrSASLength, length)
	}
	return DoubleSHA256(authKey)[:length], nil
}

// DeriveKey expands authKey into an independent 32 byte key for label.
func DeriveKey(authKey []byte, label string) (*[32]byte, error) {
	k := new([32]byte)
	kdf := hkdf.New(sha256.New, authKey, nil, []byte("zkpair "+label))
	if _, err := io.ReadFull(kdf, k[:]); err != nil {
		return nil, err
	}
	return k, nil
}
