// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// madlib turns a short authenticated string into a sentence that two people
// can read to each other.  The input bits are folded with xor into one
// WordBits index per template slot, in the manner of S/KEY.
package madlib

import (
	"errors"
	"fmt"
	"strings"
)

const (
	WordBits     = 6
	MinWords     = 1
	MaxWords     = 6
	DefaultWords = 5
)

var (
	ErrWords = errors.New("unsupported number of words")
	ErrEmpty = errors.New("empty input")
)

type class int

const (
	className class = iota
	classAdjective
	classAnimal
	classVerb
	classNoun
	classAdverb
)

var dictionary = map[class][]string{
	className:      names[:],
	classAdjective: adjectives[:],
	classAnimal:    animals[:],
	classVerb:      verbs[:],
	classNoun:      nouns[:],
	classAdverb:    adverbs[:],
}

var placeholders = map[string]class{
	"{NAME}":      className,
	"{ADJECTIVE}": classAdjective,
	"{ANIMAL}":    classAnimal,
	"{VERB}":      classVerb,
	"{NOUN}":      classNoun,
	"{ADVERB}":    classAdverb,
}

// templates is indexed by word count.
var templates = [MaxWords + 1]string{
	1: "{NAME}.",
	2: "{NAME} saw a {ANIMAL}.",
	3: "{NAME} {VERB} a {ANIMAL}.",
	4: "{NAME} {VERB} a {ADJECTIVE} {ANIMAL}.",
	5: "{NAME} {VERB} a {ADJECTIVE} {ANIMAL} with a {NOUN}.",
	6: "{NAME} {ADVERB} {VERB} a {ADJECTIVE} {ANIMAL} with a {NOUN}.",
}

// Fold collapses in into words indices of WordBits bits each.
func Fold(in []byte, words int) ([]int, error) {
	if words < MinWords || words > MaxWords {
		return nil, fmt.Errorf("%w: %v", ErrWords, words)
	}
	if len(in) == 0 {
		return nil, ErrEmpty
	}

	width := words * WordBits
	folded := make([]byte, width)
	for i := 0; i < len(in)*8; i++ {
		bit := (in[i/8] >> uint(7-i%8)) & 1
		folded[i%width] ^= bit
	}

	idx := make([]int, words)
	for w := range idx {
		for b := 0; b < WordBits; b++ {
			idx[w] = idx[w]<<1 | int(folded[w*WordBits+b])
		}
	}
	return idx, nil
}

// Generate returns the sentence for in using a template with words slots.
func Generate(in []byte, words int) (string, error) {
	idx, err := Fold(in, words)
	if err != nil {
		return "", err
	}

	var (
		b    strings.Builder
		rest = templates[words]
		slot int
	)
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated placeholder in %q",
				templates[words])
		}
		p := rest[open : open+end+1]
		c, ok := placeholders[p]
		if !ok {
			return "", fmt.Errorf("unknown placeholder %v", p)
		}
		b.WriteString(rest[:open])
		b.WriteString(dictionary[c][idx[slot]])
		slot++
		rest = rest[open+end+1:]
	}

	return b.String(), nil
}
