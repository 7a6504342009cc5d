package batcher

import (
	"errors"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ZanzyTHEbar/qa-batcher/qab/vocab"

	"github.com/stretchr/testify/require"
)

var testWords = []string{"the", "cat", "sat", "on", "mat", "what", "who", "where", "did", "a", "dog"}

func testTables(t *testing.T) Tables {
	t.Helper()
	chars := vocab.DefaultCharset()
	require.NotNil(t, chars)
	return Tables{Words: vocab.NewVocab(testWords), Chars: chars}
}

func testOptions() Options {
	return Options{
		BatchSize:   3,
		ContextLen:  8,
		QuestionLen: 5,
		WordLen:     4,
		Rand:        rand.New(rand.NewPCG(7, 11)),
	}
}

// triple is one aligned input row.
type triple struct {
	context  string
	question string
	answer   string
}

func sourcesOf(rows []triple) Sources {
	var c, q, a strings.Builder
	for _, r := range rows {
		c.WriteString(r.context + "\n")
		q.WriteString(r.question + "\n")
		a.WriteString(r.answer + "\n")
	}
	return Sources{
		Context:  strings.NewReader(c.String()),
		Question: strings.NewReader(q.String()),
		Answer:   strings.NewReader(a.String()),
	}
}

// sevenRows has question lengths 1..7 in scrambled order, all spans valid.
func sevenRows() []triple {
	return []triple{
		{"the cat sat on the mat", "what did the cat", "1 1"},
		{"a dog sat", "who", "0 1"},
		{"the mat", "where is the dog now ?", "1 1"},
		{"the cat", "what did", "0 0"},
		{"a cat on a mat", "what did a cat sit on ?", "4 4"},
		{"the dog", "who sat on", "1 1"},
		{"the cat sat", "what did the cat do", "2 2"},
	}
}

// trackingCloser records Close calls on a reader the stream owns.
type trackingCloser struct {
	*strings.Reader
	closed atomic.Int32
}

func (tc *trackingCloser) Close() error {
	tc.closed.Add(1)
	return nil
}

// failingReader returns data and then err.
type failingReader struct {
	data string
	err  error
	done bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.done {
		return 0, f.err
	}
	f.done = true
	return copy(p, f.data), nil
}

var errDisk = errors.New("disk on fire")
