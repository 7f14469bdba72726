// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package kx

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/cloudflare/circl/dh/x448"
	"golang.org/x/crypto/curve25519"
)

const (
	BackendX25519   = "x25519"
	BackendX448     = "x448"
	BackendModP2048 = "modp2048"
)

type x25519Backend struct{}

func (x25519Backend) Name() string { return BackendX25519 }

func (x25519Backend) Generate(r io.Reader) (*KeyPair, error) {
	kp := &KeyPair{Private: make([]byte, curve25519.ScalarSize)}
	if _, err := io.ReadFull(r, kp.Private); err != nil {
		return nil, err
	}
	pub, err := curve25519.X25519(kp.Private, curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	kp.Public = pub
	return kp, nil
}

func (x25519Backend) Shared(kp *KeyPair, remote []byte) ([]byte, error) {
	if len(remote) != curve25519.PointSize {
		return nil, fmt.Errorf("%w: length %v", ErrInvalidPublicValue,
			len(remote))
	}
	// X25519 fails on low order points, the result would be all zeroes
	s, err := curve25519.X25519(kp.Private, remote)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicValue, err)
	}
	return s, nil
}

type x448Backend struct{}

func (x448Backend) Name() string { return BackendX448 }

func (x448Backend) Generate(r io.Reader) (*KeyPair, error) {
	var pub, sec x448.Key
	if _, err := io.ReadFull(r, sec[:]); err != nil {
		return nil, err
	}
	x448.KeyGen(&pub, &sec)
	kp := &KeyPair{
		Public:  append([]byte(nil), pub[:]...),
		Private: append([]byte(nil), sec[:]...),
	}
	zero(sec[:])
	return kp, nil
}

func (x448Backend) Shared(kp *KeyPair, remote []byte) ([]byte, error) {
	if len(remote) != x448.Size {
		return nil, fmt.Errorf("%w: length %v", ErrInvalidPublicValue,
			len(remote))
	}
	var shared, sec, pub x448.Key
	copy(sec[:], kp.Private)
	copy(pub[:], remote)
	ok := x448.Shared(&shared, &sec, &pub)
	zero(sec[:])
	if !ok {
		return nil, fmt.Errorf("%w: low order point", ErrInvalidPublicValue)
	}
	return append([]byte(nil), shared[:]...), nil
}

// RFC 3526 2048-bit MODP group, generator 2.
var (
	modpP, _ = new(big.Int).SetString(
		"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1"+
			"29024E088A67CC74020BBEA63B139B22514A08798E3404DD"+
			"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245"+
			"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED"+
			"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D"+
			"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F"+
			"83655D23DCA3AD961C62F356208552BB9ED529077096966D"+
			"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B"+
			"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9"+
			"DE2BCBF6955817183995497CEA956AE515D2261898FA0510"+
			"15728E5A8AACAA68FFFFFFFFFFFFFFFF", 16)
	modpG = big.NewInt(2)
)

const (
	modpSize         = 256 // bytes
	modpExponentBits = 320
)

type modpBackend struct{}

func (modpBackend) Name() string { return BackendModP2048 }

func (modpBackend) Generate(r io.Reader) (*KeyPair, error) {
	max := new(big.Int).Lsh(big.NewInt(1), modpExponentBits)
	x, err := rand.Int(r, max)
	if err != nil {
		return nil, err
	}
	// keep the exponent away from trivial values
	x.SetBit(x, modpExponentBits-1, 1)

	y := new(big.Int).Exp(modpG, x, modpP)
	return &KeyPair{
		Public:  y.FillBytes(make([]byte, modpSize)),
		Private: x.FillBytes(make([]byte, modpExponentBits/8)),
	}, nil
}

// validModP returns true if 1 < y < p-1.
func validModP(y *big.Int) bool {
	pm1 := new(big.Int).Sub(modpP, big.NewInt(1))
	return y.Cmp(big.NewInt(1)) > 0 && y.Cmp(pm1) < 0
}

func (modpBackend) Shared(kp *KeyPair, remote []byte) ([]byte, error) {
	if len(remote) != modpSize {
		return nil, fmt.Errorf("%w: length %v", ErrInvalidPublicValue,
			len(remote))
	}
	y := new(big.Int).SetBytes(remote)
	if !validModP(y) {
		return nil, fmt.Errorf("%w: outside group", ErrInvalidPublicValue)
	}

	x := new(big.Int).SetBytes(kp.Private)
	s := new(big.Int).Exp(y, x, modpP)
	x.SetInt64(0)
	if s.Cmp(big.NewInt(1)) == 0 {
		return nil, fmt.Errorf("%w: small subgroup", ErrInvalidPublicValue)
	}
	return s.FillBytes(make([]byte, modpSize)), nil
}
