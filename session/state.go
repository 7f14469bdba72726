// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"fmt"
)

// State is a pairing session state.
type State int

const (
	StateInit State = iota
	StateNegotiating
	StateKeyExchange
	StateChannelPrepare
	StateChannelTransmit
	StateVerifying
	StateSuccess
	StateFailure
)

var stateNames = map[State]string{
	StateInit:            "INIT",
	StateNegotiating:     "NEGOTIATING",
	StateKeyExchange:     "KEY_EXCHANGE",
	StateChannelPrepare:  "CHANNEL_PREPARE",
	StateChannelTransmit: "CHANNEL_TRANSMIT",
	StateVerifying:       "VERIFYING",
	StateSuccess:         "SUCCESS",
	StateFailure:         "FAILURE",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal returns true for SUCCESS and FAILURE.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// transitions lists the legal successors of every non terminal state.
// FAILURE is reachable from all of them and is added by CanTransition.
var transitions = map[State][]State{
	StateInit:            {StateNegotiating},
	StateNegotiating:     {StateKeyExchange},
	StateKeyExchange:     {StateChannelPrepare},
	StateChannelPrepare:  {StateChannelTransmit},
	StateChannelTransmit: {StateVerifying},
	StateVerifying:       {StateSuccess, StateChannelPrepare},
}

// CanTransition returns true if from may move to to.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailure {
		return true
	}
	for _, v := range transitions[from] {
		if v == to {
			return true
		}
	}
	return false
}
