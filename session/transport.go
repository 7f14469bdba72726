// Copyright (c) 2016,2017 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/companyzero/zkpair/kx"
	"github.com/davecgh/go-xdr/xdr2"
	"golang.org/x/crypto/nacl/secretbox"
)

const DefaultMaxMessageSize = 1024 * 1024

var (
	ErrDecrypt   = errors.New("decrypt failure")
	ErrOverflow  = errors.New("message too large")
	ErrMarshal   = errors.New("could not marshal")
	ErrUnmarshal = errors.New("could not unmarshal")
)

// Transport is the authenticated connection handed out by a successful
// session when the connection is kept.  Every message is sealed with a key
// derived from the authentication key, one per direction, and a nonce that
// is incremented per message.
type Transport struct {
	Conn           net.Conn
	MaxMessageSize uint

	rmtx     sync.Mutex
	readKey  *[32]byte
	readSeq  [24]byte
	wmtx     sync.Mutex
	writeKey *[32]byte
	writeSeq [24]byte
}

// newTransport derives the directional keys from authKey.
func newTransport(conn net.Conn, authKey []byte, initiator bool) (*Transport, error) {
	i2r, err := kx.DeriveKey(authKey, "transport initiator")
	if err != nil {
		return nil, err
	}
	r2i, err := kx.DeriveKey(authKey, "transport responder")
	if err != nil {
		return nil, err
	}

	t := &Transport{
		Conn:           conn,
		MaxMessageSize: DefaultMaxMessageSize,
	}
	if initiator {
		t.writeKey, t.readKey = i2r, r2i
	} else {
		t.writeKey, t.readKey = r2i, i2r
	}
	return t, nil
}

func (t *Transport) SetWriteDeadline(d time.Time) {
	t.Conn.SetWriteDeadline(d)
}

func (t *Transport) SetReadDeadline(d time.Time) {
	t.Conn.SetReadDeadline(d)
}

func (t *Transport) Close() error {
	return t.Conn.Close()
}

// Read returns the next message.
func (t *Transport) Read() ([]byte, error) {
	t.rmtx.Lock()
	defer t.rmtx.Unlock()

	var payload []byte
	_, err := xdr.UnmarshalLimited(t.Conn, &payload, t.MaxMessageSize)
	if err != nil {
		return nil, ErrUnmarshal
	}
	data, ok := secretbox.Open(nil, payload, &t.readSeq, t.readKey)
	incSeq(&t.readSeq)
	if !ok {
		return nil, ErrDecrypt
	}
	return data, nil
}

// Write seals and marshals data to the underlying connection.
func (t *Transport) Write(data []byte) error {
	t.wmtx.Lock()
	defer t.wmtx.Unlock()

	payload := secretbox.Seal(nil, data, &t.writeSeq, t.writeKey)
	if uint(len(payload)) > t.MaxMessageSize {
		return ErrOverflow
	}
	incSeq(&t.writeSeq)
	_, err := xdr.Marshal(t.Conn, payload)
	if err != nil {
		return ErrMarshal
	}
	return nil
}

// incSeq increments the provided nonce.
func incSeq(seq *[24]byte) {
	n := uint32(1)
	for i := 0; i < 8; i++ {
		n += uint32(seq[i])
		seq[i] = byte(n)
		n >>= 8
	}
}
