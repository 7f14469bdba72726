// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// visual carries short payloads in QR codes.  Payloads are hex encoded in
// upper case so they always fit the alphanumeric mode and survive the text
// oriented decoders unchanged.
package visual

import (
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	MaxVersion   = 40
	DefaultScale = 4
)

var (
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrNoCodeDetected  = errors.New("no code detected")
	ErrChecksumFailure = errors.New("checksum failure")
	ErrInvalidVersion  = errors.New("invalid version")
	ErrInvalidLevel    = errors.New("invalid recovery level")
	ErrEmptyPayload    = errors.New("empty payload")
)

// Level is the error correction level.
type Level int

const (
	LevelL Level = iota // 7%
	LevelM              // 15%
	LevelQ              // 25%
	LevelH              // 30%
)

// ParseLevel converts L, M, Q or H to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(s) {
	case "L":
		return LevelL, nil
	case "M":
		return LevelM, nil
	case "Q":
		return LevelQ, nil
	case "H":
		return LevelH, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

func (l Level) recovery() (qrcode.RecoveryLevel, error) {
	switch l {
	case LevelL:
		return qrcode.Low, nil
	case LevelM:
		return qrcode.Medium, nil
	case LevelQ:
		return qrcode.High, nil
	case LevelH:
		return qrcode.Highest, nil
	}
	return 0, ErrInvalidLevel
}

// Matrix is a square grid of modules, true is dark.  It includes the quiet
// zone.
type Matrix [][]bool

// Size returns the number of modules per side.
func (m Matrix) Size() int {
	return len(m)
}

// Codec encodes and decodes QR payloads.  Version 0 selects the smallest
// version that fits.
type Codec struct {
	Version int
	Level   Level
}

// Encode returns the QR matrix carrying payload.
func (c *Codec) Encode(payload []byte) (Matrix, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if c.Version < 0 || c.Version > MaxVersion {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVersion, c.Version)
	}
	level, err := c.Level.recovery()
	if err != nil {
		return nil, err
	}

	content := strings.ToUpper(hex.EncodeToString(payload))

	var q *qrcode.QRCode
	if c.Version == 0 {
		q, err = qrcode.New(content, level)
	} else {
		q, err = qrcode.NewWithForcedVersion(content, c.Version, level)
	}
	if err != nil {
		// the only remaining failure is content that does not fit
		return nil, fmt.Errorf("%w: %v bytes: %v", ErrPayloadTooLarge,
			len(payload), err)
	}

	return Matrix(q.Bitmap()), nil
}

// Render draws m with every module scale pixels wide.
func Render(m Matrix, scale int) *image.Gray {
	if scale < 1 {
		scale = DefaultScale
	}
	size := m.Size() * scale
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y, row := range m {
		for x, dark := range row {
			c := color.Gray{Y: 0xff}
			if dark {
				c = color.Gray{Y: 0x00}
			}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetGray(x*scale+dx, y*scale+dy, c)
				}
			}
		}
	}
	return img
}

// Decode locates a QR code in img and returns its payload.
func (c *Codec) Decode(img image.Image) ([]byte, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCodeDetected, err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := zxqrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return nil, classify(err)
	}

	payload, err := hex.DecodeString(result.GetText())
	if err != nil {
		// a valid code that was not produced by us
		return nil, fmt.Errorf("%w: %v", ErrChecksumFailure, err)
	}
	return payload, nil
}

func classify(err error) error {
	var (
		nf gozxing.NotFoundException
		ce gozxing.ChecksumException
		fe gozxing.FormatException
	)
	switch {
	case errors.As(err, &ce), errors.As(err, &fe):
		return fmt.Errorf("%w: %v", ErrChecksumFailure, err)
	case errors.As(err, &nf):
		return fmt.Errorf("%w: %v", ErrNoCodeDetected, err)
	}
	return fmt.Errorf("%w: %v", ErrNoCodeDetected, err)
}
