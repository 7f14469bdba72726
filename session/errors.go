// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"errors"
	"net"
	"os"

	"github.com/companyzero/zkpair/audio"
	"github.com/companyzero/zkpair/block"
	"github.com/companyzero/zkpair/kx"
	"github.com/companyzero/zkpair/visual"
)

var (
	ErrInvalidConfig        = errors.New("invalid session configuration")
	ErrTimeout              = errors.New("timeout")
	ErrProtocolViolation    = errors.New("protocol violation")
	ErrPeerFailure          = errors.New("peer reported failure")
	ErrKeyAgreement         = errors.New("key agreement failure")
	ErrVerificationMismatch = errors.New("verification mismatch")
	ErrInvalidTransition    = errors.New("invalid state transition")
)

// ErrorKind classifies the reason a session failed.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindFraming
	KindTransport
	KindProtocolViolation
	KindKeyAgreement
	KindDemodulation
	KindNoCodeDetected
	KindChecksum
	KindVerificationMismatch
	KindTimeout
	KindConfiguration
)

var kindNames = map[ErrorKind]string{
	KindNone:                 "None",
	KindFraming:              "FramingError",
	KindTransport:            "TransportError",
	KindProtocolViolation:    "ProtocolViolation",
	KindKeyAgreement:         "KeyAgreementFailure",
	KindDemodulation:         "DemodulationFailure",
	KindNoCodeDetected:       "NoCodeDetected",
	KindChecksum:             "ChecksumFailure",
	KindVerificationMismatch: "VerificationMismatch",
	KindTimeout:              "Timeout",
	KindConfiguration:        "InvalidConfiguration",
}

func (k ErrorKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "Unknown"
}

// Kind maps err onto the failure taxonomy.  Order matters: a timed out read
// is reported by block as a framing error that wraps the deadline.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrTimeout),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, audio.ErrDemodulationFailure):
		return KindDemodulation
	case errors.Is(err, visual.ErrNoCodeDetected):
		return KindNoCodeDetected
	case errors.Is(err, visual.ErrChecksumFailure):
		return KindChecksum
	case errors.Is(err, ErrVerificationMismatch):
		return KindVerificationMismatch
	case errors.Is(err, ErrKeyAgreement),
		errors.Is(err, kx.ErrInvalidPublicValue),
		errors.Is(err, kx.ErrBackendMismatch):
		return KindKeyAgreement
	case errors.Is(err, ErrProtocolViolation),
		errors.Is(err, ErrPeerFailure),
		errors.Is(err, ErrInvalidTransition):
		return KindProtocolViolation
	case errors.Is(err, ErrInvalidConfig),
		errors.Is(err, block.ErrInvalidConfiguration),
		errors.Is(err, block.ErrNoReader),
		errors.Is(err, block.ErrNoWriter):
		return KindConfiguration
	case errors.Is(err, block.ErrTransport),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, context.Canceled):
		return KindTransport
	case errors.Is(err, block.ErrFraming):
		return KindFraming
	}
	return KindTransport
}
