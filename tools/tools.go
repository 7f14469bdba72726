// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint returns the hex encoded sha256 digest of blob.
func Fingerprint(blob []byte) string {
	d := sha256.Sum256(blob)
	return hex.EncodeToString(d[:])
}

// ShortFingerprint returns the first 16 characters of Fingerprint grouped in
// fours, suitable for log lines.
func ShortFingerprint(blob []byte) string {
	s, _ := InFours(Fingerprint(blob)[:16])
	return s
}

// InGroups splits x into space separated groups of n characters for human
// comparison.  The last group may be shorter.
func InGroups(x string, n int) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("invalid group size %v", n)
	}
	if len(x) == 0 {
		return "", fmt.Errorf("too small")
	}

	var b strings.Builder
	for i := 0; i < len(x); i += n {
		if i > 0 {
			b.WriteByte(' ')
		}
		end := i + n
		if end > len(x) {
			end = len(x)
		}
		b.WriteString(x[i:end])
	}
	return b.String(), nil
}

// InFours groups x in fours.
func InFours(x string) (string, error) {
	return InGroups(x, 4)
}
