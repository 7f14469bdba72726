// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package channel

import (
	"context"
	"encoding/hex"

	"github.com/companyzero/zkpair/madlib"
	"github.com/companyzero/zkpair/rpc"
	"github.com/companyzero/zkpair/tools"
)

// HashCompare presents the short authenticated string as hex digits grouped
// in fours.  The operator of the receiving device confirms that both screens
// agree.
type HashCompare struct {
	closer
	presenter Presenter
	confirmer Confirmer
	length    int
}

func (h *HashCompare) Token() string  { return rpc.ChannelManualComp }
func (h *HashCompare) SASLength() int { return h.length }

func (h *HashCompare) Transmit(ctx context.Context, sas []byte) error {
	if err := h.check(); err != nil {
		return err
	}
	text, err := tools.InFours(hex.EncodeToString(sas))
	if err != nil {
		return err
	}
	return h.presenter.Present(ctx, text)
}

func (h *HashCompare) Verify(ctx context.Context, sas []byte) (bool, error) {
	if err := h.check(); err != nil {
		return false, err
	}
	text, err := tools.InFours(hex.EncodeToString(sas))
	if err != nil {
		return false, err
	}
	return h.confirmer.Confirm(ctx, text)
}

// Madlib presents the short authenticated string as a sentence.
type Madlib struct {
	closer
	presenter Presenter
	confirmer Confirmer
	words     int
	length    int
}

func (m *Madlib) Token() string  { return rpc.ChannelMadlib }
func (m *Madlib) SASLength() int { return m.length }

func (m *Madlib) sentence(sas []byte) (string, error) {
	words := m.words
	if words == 0 {
		words = madlib.DefaultWords
	}
	return madlib.Generate(sas, words)
}

func (m *Madlib) Transmit(ctx context.Context, sas []byte) error {
	if err := m.check(); err != nil {
		return err
	}
	text, err := m.sentence(sas)
	if err != nil {
		return err
	}
	return m.presenter.Present(ctx, text)
}

func (m *Madlib) Verify(ctx context.Context, sas []byte) (bool, error) {
	if err := m.check(); err != nil {
		return false, err
	}
	text, err := m.sentence(sas)
	if err != nil {
		return false, err
	}
	return m.confirmer.Confirm(ctx, text)
}
