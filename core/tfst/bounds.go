// Package tfst holds the value types of a sentence automaton: token bounds,
// parsed tags and the token table of the current sentence.
package tfst

import (
	"fmt"
	"strconv"
	"strings"
)

// Bounds is the span of a sentence-automaton box in token, character and
// letter coordinates. Bounds values are never mutated after creation.
type Bounds struct {
	StartInTokens  int `json:"start_in_tokens"`
	EndInTokens    int `json:"end_in_tokens"`
	StartInChars   int `json:"start_in_chars"`
	EndInChars     int `json:"end_in_chars"`
	StartInLetters int `json:"start_in_letters"`
}

// NewBounds validates and returns a Bounds.
func NewBounds(startTok, endTok, startChar, endChar, startLetter int) (Bounds, error) {
	b := Bounds{
		StartInTokens:  startTok,
		EndInTokens:    endTok,
		StartInChars:   startChar,
		EndInChars:     endChar,
		StartInLetters: startLetter,
	}
	return b, b.Validate()
}

// Validate checks that every coordinate is non-negative and the token span is ordered.
func (b Bounds) Validate() error {
	if b.StartInTokens < 0 || b.EndInTokens < 0 || b.StartInChars < 0 || b.EndInChars < 0 || b.StartInLetters < 0 {
		return fmt.Errorf("negative bound in %s", b)
	}
	if b.StartInTokens > b.EndInTokens {
		return fmt.Errorf("start token %d after end token %d", b.StartInTokens, b.EndInTokens)
	}
	return nil
}

// StartsToken reports whether the box begins at the first letter of its first token.
func (b Bounds) StartsToken() bool {
	return b.StartInChars == 0 && b.StartInLetters == 0
}

// Overlaps reports whether the token spans of b and o intersect.
func (b Bounds) Overlaps(o Bounds) bool {
	return b.StartInTokens <= o.EndInTokens && o.StartInTokens <= b.EndInTokens
}

// String renders the bounds in the on-disk field order.
func (b Bounds) String() string {
	return fmt.Sprintf("%d %d %d %d %d", b.StartInTokens, b.EndInTokens, b.StartInChars, b.EndInChars, b.StartInLetters)
}

// ParseBounds parses the five space-separated integers written by String.
func ParseBounds(s string) (Bounds, error) {
	fields := strings.Fields(s)
	if len(fields) != 5 {
		return Bounds{}, fmt.Errorf("bounds need 5 fields, got %d", len(fields))
	}
	var v [5]int
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return Bounds{}, fmt.Errorf("bounds field %d: %w", i+1, err)
		}
		v[i] = n
	}
	return NewBounds(v[0], v[1], v[2], v[3], v[4])
}

// SplitBoundsSuffix splits "content/st et sc ec sl" into content and bounds.
// When the text has no valid suffix, it is returned unchanged with ok=false.
func SplitBoundsSuffix(text string) (content string, b Bounds, ok bool) {
	i := strings.LastIndexByte(text, '/')
	if i < 0 {
		return text, Bounds{}, false
	}
	parsed, err := ParseBounds(text[i+1:])
	if err != nil {
		return text, Bounds{}, false
	}
	return text[:i], parsed, true
}

// JoinBoundsSuffix is the inverse of SplitBoundsSuffix.
func JoinBoundsSuffix(content string, b Bounds) string {
	return content + "/" + b.String()
}
