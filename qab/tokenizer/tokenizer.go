package tokenizer

import (
	"strings"

	"github.com/ZanzyTHEbar/qa-batcher/qab/vocab"
)

// WordIndex is the read-only word table the tokenizer maps against.
type WordIndex interface {
	ID(word string) int
	Word(id int) (string, bool)
}

// CharIndex is the read-only character table used for char ids.
type CharIndex interface {
	ID(r rune) int
}

// Tokenizer converts one raw line into tokens and their vocabulary ids
type Tokenizer interface {
	Tokenize(line string) (tokens []string, ids []int)
}

// Whitespace splits on runs of ASCII whitespace and looks tokens up in a fixed vocabulary.
type Whitespace struct {
	words WordIndex
}

// NewWhitespace creates a whitespace tokenizer over words
func NewWhitespace(words WordIndex) *Whitespace {
	return &Whitespace{words: words}
}

// Tokenize implements Tokenizer
func (w *Whitespace) Tokenize(line string) ([]string, []int) {
	tokens := Split(line)
	return tokens, TokensToIDs(tokens, w.words)
}

// isSpace matches the byte-string whitespace set: no Unicode or locale-specific spaces.
func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// Split returns the whitespace-delimited tokens of line; empty fragments are dropped.
func Split(line string) []string {
	return strings.FieldsFunc(line, isSpace)
}

// TokensToIDs maps each token to its vocabulary id; unknown tokens map to UNK.
func TokensToIDs(tokens []string, words WordIndex) []int {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		ids[i] = words.ID(tok)
	}
	return ids
}

var (
	_ Tokenizer = (*Whitespace)(nil)
	_ WordIndex = (*vocab.Vocab)(nil)
	_ CharIndex = (*vocab.Charset)(nil)
)
