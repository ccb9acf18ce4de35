package tfst

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
)

// TokenSource maps a token range to the literal text it covers.
type TokenSource interface {
	TokenSequence(start, end int) string
}

// Token is one record of a sentence token file.
type Token struct {
	Offset  int    // rune offset in the sentence text
	Length  int    // length in runes
	Surface string // literal token text
}

// TokensInfo is the token table of the current sentence.
type TokensInfo struct {
	text   []rune
	tokens []Token
}

// NewTokensInfo builds a token table over a sentence text. Tokens without a
// surface take it from the text.
func NewTokensInfo(text string, tokens []Token) *TokensInfo {
	ti := &TokensInfo{text: []rune(text), tokens: make([]Token, len(tokens))}
	copy(ti.tokens, tokens)
	for i, t := range ti.tokens {
		if t.Surface == "" && t.Offset >= 0 && t.Offset+t.Length <= len(ti.text) {
			ti.tokens[i].Surface = string(ti.text[t.Offset : t.Offset+t.Length])
		}
	}
	return ti
}

// ReadTokens parses a token file: a count line followed by one
// "offset length [surface]" line per token.
func ReadTokens(r io.Reader) ([]Token, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: empty token file", tfsterrors.ErrInvalidInput)
	}
	count, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff")))
	if err != nil || count < 0 {
		return nil, fmt.Errorf("%w: bad token count %q", tfsterrors.ErrInvalidInput, sc.Text())
	}
	tokens := make([]Token, 0, count)
	line := 1
	for len(tokens) < count && sc.Scan() {
		line++
		fields := strings.SplitN(sc.Text(), " ", 3)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: token line %d: %q", tfsterrors.ErrInvalidInput, line, sc.Text())
		}
		off, err1 := strconv.Atoi(fields[0])
		n, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil || off < 0 || n < 0 {
			return nil, fmt.Errorf("%w: token line %d: %q", tfsterrors.ErrInvalidInput, line, sc.Text())
		}
		tok := Token{Offset: off, Length: n}
		if len(fields) == 3 {
			tok.Surface = fields[2]
		}
		tokens = append(tokens, tok)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(tokens) != count {
		return nil, fmt.Errorf("%w: expected %d tokens, found %d", tfsterrors.ErrInvalidInput, count, len(tokens))
	}
	return tokens, nil
}

// LoadTokensInfo reads a token file and pairs it with the sentence text.
func LoadTokensInfo(path, text string) (*TokensInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tfsterrors.NewIO("open", path, err)
	}
	defer f.Close()
	tokens, err := ReadTokens(f)
	if err != nil {
		return nil, tfsterrors.Wrapf(err, "reading %s", path)
	}
	return NewTokensInfo(text, tokens), nil
}

// Count returns the number of tokens.
func (ti *TokensInfo) Count() int {
	return len(ti.tokens)
}

// Token returns token i.
func (ti *TokensInfo) Token(i int) (Token, bool) {
	if i < 0 || i >= len(ti.tokens) {
		return Token{}, false
	}
	return ti.tokens[i], true
}

// Text returns the sentence text.
func (ti *TokensInfo) Text() string {
	return string(ti.text)
}

// TokenSequence returns the text from the first rune of token start to the
// last rune of token end. Out-of-range requests yield the joined surfaces of
// the tokens that exist.
func (ti *TokensInfo) TokenSequence(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end >= len(ti.tokens) {
		end = len(ti.tokens) - 1
	}
	if start > end {
		return ""
	}
	first, last := ti.tokens[start], ti.tokens[end]
	if len(ti.text) > 0 && first.Offset <= last.Offset+last.Length && last.Offset+last.Length <= len(ti.text) {
		return string(ti.text[first.Offset : last.Offset+last.Length])
	}
	var sb strings.Builder
	for _, t := range ti.tokens[start : end+1] {
		sb.WriteString(t.Surface)
	}
	return sb.String()
}

// Between returns the text strictly between token a and token b, with ok=false
// when the tokens are unknown or out of order.
func (ti *TokensInfo) Between(a, b int) (string, bool) {
	ta, okA := ti.Token(a)
	tb, okB := ti.Token(b)
	if !okA || !okB {
		return "", false
	}
	from, to := ta.Offset+ta.Length, tb.Offset
	if from > to || to > len(ti.text) {
		return "", false
	}
	return string(ti.text[from:to]), true
}
