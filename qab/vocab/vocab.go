package vocab

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/qa-batcher/qab/common"

	"github.com/armon/go-radix"
)

// Reserved ids and tokens shared by every vocabulary and charset.
const (
	PadID     = 0
	UnkID     = 1
	PadCharID = 0
	UnkCharID = 1

	PadToken = "<pad>"
	UnkToken = "<unk>"
)

// Vocab is an immutable word <-> id mapping with PAD and UNK reserved at ids 0 and 1.
// It is safe for concurrent use by any number of readers.
type Vocab struct {
	index *radix.Tree // word -> id
	words map[int]string
}

func newEmptyVocab() *Vocab {
	v := &Vocab{
		index: radix.New(),
		words: make(map[int]string),
	}
	v.index.Insert(PadToken, PadID)
	v.index.Insert(UnkToken, UnkID)
	v.words[PadID] = PadToken
	v.words[UnkID] = UnkToken
	return v
}

// NewVocab builds a vocabulary from words in order: the i-th non-reserved entry gets
// id 2+i, so ids line up with the rows of an embedding matrix in the same order.
// Empty strings and the reserved tokens take no id. A repeated word still uses up
// its id, which maps back to it through Word, but ID keeps returning the first one.
func NewVocab(words []string) *Vocab {
	v := newEmptyVocab()
	next := UnkID + 1
	for _, w := range words {
		if w == "" || w == PadToken || w == UnkToken {
			continue
		}
		if _, ok := v.index.Get(w); !ok {
			v.index.Insert(w, next)
		}
		v.words[next] = w
		next++
	}
	return v
}

// NewVocabFromMap wraps an externally built word -> id mapping. Ids 0 and 1 may only
// be bound to the reserved tokens, and no two words may share an id.
func NewVocabFromMap(word2id map[string]int) (*Vocab, error) {
	v := newEmptyVocab()
	for w, id := range word2id {
		if id < 0 {
			return nil, fmt.Errorf("word %q has negative id %d: %w", w, id, common.ErrInvalidVocab)
		}
		if id == PadID || id == UnkID {
			if w != v.words[id] {
				return nil, fmt.Errorf("id %d is reserved for %q, got %q: %w", id, v.words[id], w, common.ErrInvalidVocab)
			}
			continue
		}
		if prev, ok := v.words[id]; ok {
			return nil, fmt.Errorf("id %d bound to both %q and %q: %w", id, prev, w, common.ErrInvalidVocab)
		}
		v.index.Insert(w, id)
		v.words[id] = w
	}
	return v, nil
}

// LoadVocab reads one entry per line and keeps the first field, so plain word lists
// and GloVe text files both load. Fields are split on ASCII whitespace only, the same
// set the tokenizer splits on, so a word holding a no-break space stays whole.
// Ids follow row order as in NewVocab; blank lines are skipped.
func LoadVocab(path string) (*Vocab, error) {
	eu := common.NewErrorUtils()

	f, err := os.Open(path)
	if err != nil {
		return nil, eu.WrapError(err, "open vocab %s", path)
	}
	defer f.Close()

	var words []string
	reader := bufio.NewReader(f)
	for {
		line, readErr := reader.ReadString('\n')
		if word := firstField(line); word != "" {
			words = append(words, word)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, eu.WrapError(readErr, "read vocab %s", path)
		}
	}
	return NewVocab(words), nil
}

// asciiSpace matches the whitespace the tokenizer splits on.
const asciiSpace = " \t\n\v\f\r"

func firstField(line string) string {
	line = strings.TrimLeft(line, asciiSpace)
	if i := strings.IndexAny(line, asciiSpace); i >= 0 {
		return line[:i]
	}
	return line
}

// ID returns the id of word, or UnkID when the word is unknown.
func (v *Vocab) ID(word string) int {
	if id, ok := v.Lookup(word); ok {
		return id
	}
	return UnkID
}

// Lookup reports whether word is in the vocabulary.
func (v *Vocab) Lookup(word string) (int, bool) {
	raw, ok := v.index.Get(word)
	if !ok {
		return 0, false
	}
	return raw.(int), true
}

// Word returns the word bound to id.
func (v *Vocab) Word(id int) (string, bool) {
	w, ok := v.words[id]
	return w, ok
}

// Size is the number of ids in use, reserved ones and repeated rows included.
func (v *Vocab) Size() int {
	return len(v.words)
}

// Prefix lists the words starting with prefix in lexical order.
func (v *Vocab) Prefix(prefix string) []string {
	var out []string
	v.index.WalkPrefix(prefix, func(key string, _ interface{}) bool {
		out = append(out, key)
		return false
	})
	sort.Strings(out)
	return out
}
