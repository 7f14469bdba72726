// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// rpc contains the wire vocabulary of the pairing protocol.
//
// Every message is a named block (see package block).  The block name is the
// command and the payload, when present, is one of the XDR encoded structures
// below.  A pairing run has the following phases:
//	1. negotiation, PRE_AUTH is exchanged followed by TRANSFER_AUTH or INPUT
//	   which selects the out of band channel and who transmits on it
//	2. key exchange, both sides send a KX block, initiator first
//	3. channel preparation, PREPARE/OK followed by START
//	4. transmission, the transmitter emits the short authenticated string
//	   out of band and sends DONE; mutual channels exchange FEATURES instead
//	5. verification, both sides send VERIFY with their verdict
//	6. outcome, the initiator sends SUCCESS, REPLAY or FAILURE and the
//	   responder acknowledges with OK when it agrees
//
// Initiator always writes first whenever both sides send the same command.
package rpc

import (
	"strings"
)

const (
	ProtocolVersion = 1
)

// Commands.
const (
	CmdPreAuth      = "PRE_AUTH"
	CmdTransferAuth = "TRANSFER_AUTH"
	CmdInput        = "INPUT"
	CmdVerify       = "VERIFY"
	CmdAck          = "OK"
	CmdPrepare      = "PREPARE"
	CmdStart        = "START"
	CmdDone         = "DONE"
	CmdSuccess      = "SUCCESS"
	CmdFailure      = "FAILURE"
	CmdReplay       = "REPLAY"

	// data blocks
	BlockKX       = "KX"
	BlockFeatures = "FEATURES"
)

// Channel tokens carried in TRANSFER_AUTH and INPUT.
const (
	ChannelVisual     = "VISUAL"
	ChannelAudio      = "AUDIO"
	ChannelSlowCodec  = "SLOWCODEC"
	ChannelMadlib     = "MADLIB"
	ChannelManualComp = "MANUAL_COMP"
	ChannelMotion     = "MOTION"
)

var (
	// Commands lists every command, used to tell a protocol violation
	// apart from garbage.
	Commands = []string{
		CmdPreAuth, CmdTransferAuth, CmdInput, CmdVerify, CmdAck,
		CmdPrepare, CmdStart, CmdDone, CmdSuccess, CmdFailure, CmdReplay,
		BlockKX, BlockFeatures,
	}

	// Channels lists every known channel token in default preference
	// order.
	Channels = []string{
		ChannelVisual,
		ChannelAudio,
		ChannelMotion,
		ChannelManualComp,
		ChannelMadlib,
		ChannelSlowCodec,
	}
)

// IsCommand returns true if name is part of the protocol vocabulary.
func IsCommand(name string) bool {
	for _, v := range Commands {
		if v == name {
			return true
		}
	}
	return false
}

// IsChannel returns true if token is a known channel token.
func IsChannel(token string) bool {
	for _, v := range Channels {
		if v == token {
			return true
		}
	}
	return false
}

// ParseChannels splits a comma separated list of channel tokens.  Empty
// elements are skipped and tokens are upper cased.
func ParseChannels(s string) []string {
	var r []string
	for _, v := range strings.Split(s, ",") {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		r = append(r, v)
	}
	return r
}

// Intersect returns the elements of ours that also appear in theirs,
// preserving the order of ours.
func Intersect(ours, theirs []string) []string {
	var r []string
	for _, o := range ours {
		for _, t := range theirs {
			if o == t {
				r = append(r, o)
				break
			}
		}
	}
	return r
}

// PreAuth is the first block sent by both sides.  The responder replies with
// the subset of the initiator's channels it supports.
type PreAuth struct {
	Version  int      // protocol version
	Channels []string // supported channel tokens in preference order
}

// ChannelSelect is the payload of TRANSFER_AUTH and INPUT.
type ChannelSelect struct {
	Channel string // channel token
}

// KeyExchange carries an ephemeral public value.
type KeyExchange struct {
	Backend string // key agreement backend name
	Public  []byte // encoded public value
}

// Verdict values.
const (
	VerdictAbstain = 0 // did not observe anything, transmitter side
	VerdictPass    = 1
	VerdictFail    = 2
)

// Verify is the payload of VERIFY.
type Verify struct {
	Verdict int
}

// Features is the payload of FEATURES.  Sealed contains a 24 byte nonce
// followed by a secretbox sealed FeatureCodec blob.
type Features struct {
	Sealed []byte
}

// Combine folds the local and remote verdicts into a single outcome.  At
// least one side must have observed a pass and neither side may have failed.
func Combine(local, remote int) bool {
	if local == VerdictFail || remote == VerdictFail {
		return false
	}
	if local != VerdictPass && remote != VerdictPass {
		return false
	}
	return (local == VerdictPass || local == VerdictAbstain) &&
		(remote == VerdictPass || remote == VerdictAbstain)
}
