package vocab

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ZanzyTHEbar/qa-batcher/qab/common"

	"gonum.org/v1/gonum/mat"
)

// defaultChars is the ASCII character set seen in the tokenized train and dev data,
// in the order the ids were originally assigned.
const defaultChars = "$(,048<@`dhlptx|#'+/37;?[_cgkosw{\"&*.26:>^bfjnrvz~!%)-159=]aeimquy}"

// Charset is an immutable character <-> id mapping with PAD_CHAR and UNK_CHAR
// reserved at ids 0 and 1.
type Charset struct {
	char2id map[rune]int
	id2char map[int]rune
	size    int
}

// NewCharset assigns ids 2.. to chars in order. Repeated characters keep their first id.
func NewCharset(chars []rune) *Charset {
	cs := &Charset{
		char2id: make(map[rune]int, len(chars)),
		id2char: make(map[int]rune, len(chars)),
		size:    UnkCharID + 1,
	}
	for _, r := range chars {
		if _, ok := cs.char2id[r]; ok {
			continue
		}
		cs.char2id[r] = cs.size
		cs.id2char[cs.size] = r
		cs.size++
	}
	return cs
}

// NewCharsetFromMap wraps an externally built char -> id mapping. Ids 0 and 1 are
// reserved and must not be bound to a character.
func NewCharsetFromMap(char2id map[rune]int) (*Charset, error) {
	cs := &Charset{
		char2id: make(map[rune]int, len(char2id)),
		id2char: make(map[int]rune, len(char2id)),
		size:    UnkCharID + 1,
	}
	for r, id := range char2id {
		if id <= UnkCharID {
			return nil, fmt.Errorf("char %q uses reserved id %d: %w", r, id, common.ErrInvalidVocab)
		}
		if prev, ok := cs.id2char[id]; ok {
			return nil, fmt.Errorf("id %d bound to both %q and %q: %w", id, prev, r, common.ErrInvalidVocab)
		}
		cs.char2id[r] = id
		cs.id2char[id] = r
		if id+1 > cs.size {
			cs.size = id + 1
		}
	}
	return cs, nil
}

// DefaultCharset returns the charset used when no charset file is configured. It
// holds printable ASCII only: every non-ASCII rune maps to UnkCharID, so words in
// other scripts carry no character signal. Load a charset file to cover them.
func DefaultCharset() *Charset {
	return NewCharset([]rune(defaultChars))
}

// LoadCharset reads one character per line; the first rune of each non-empty line is
// taken. A line holding only a space is kept as the space character.
func LoadCharset(path string) (*Charset, error) {
	eu := common.NewErrorUtils()

	f, err := os.Open(path)
	if err != nil {
		return nil, eu.WrapError(err, "open charset %s", path)
	}
	defer f.Close()

	var chars []rune
	reader := bufio.NewReader(f)
	for {
		line, readErr := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			r, _ := utf8.DecodeRuneInString(line)
			chars = append(chars, r)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, eu.WrapError(readErr, "read charset %s", path)
		}
	}
	return NewCharset(chars), nil
}

// ID returns the id of r, or UnkCharID when r is not in the charset.
func (cs *Charset) ID(r rune) int {
	if id, ok := cs.char2id[r]; ok {
		return id
	}
	return UnkCharID
}

// Char returns the character bound to id.
func (cs *Charset) Char(id int) (rune, bool) {
	r, ok := cs.id2char[id]
	return r, ok
}

// Size is one past the largest id, so it can size an embedding matrix.
func (cs *Charset) Size() int {
	return cs.size
}

// EmbeddingMatrix builds an untrained (Size, dim) character embedding matrix.
// The PAD and UNK rows are always drawn uniformly from [0, 1); the remaining rows
// are random when randomInit is set and zero otherwise. dim must be positive. A nil
// rng draws from a randomly seeded source.
func (cs *Charset) EmbeddingMatrix(dim int, rng *rand.Rand, randomInit bool) *mat.Dense {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	m := mat.NewDense(cs.size, dim, nil)
	for i := 0; i < cs.size; i++ {
		if i > UnkCharID && !randomInit {
			continue
		}
		for j := 0; j < dim; j++ {
			m.Set(i, j, rng.Float64())
		}
	}
	return m
}
