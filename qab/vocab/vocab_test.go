package vocab

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ZanzyTHEbar/qa-batcher/qab/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVocab(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"ReservedEntries", testVocabReservedEntries},
		{"OrderAndDuplicates", testVocabOrderAndDuplicates},
		{"FromMap", testVocabFromMap},
		{"FromMapRejectsReservedIDs", testVocabFromMapRejectsReservedIDs},
		{"LoadPlainAndGlove", testVocabLoadPlainAndGlove},
		{"LoadKeepsRowOrder", testVocabLoadKeepsRowOrder},
		{"LoadMissingFile", testVocabLoadMissingFile},
		{"Prefix", testVocabPrefix},
		{"ConcurrentReaders", testVocabConcurrentReaders},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func testVocabReservedEntries(t *testing.T) {
	v := NewVocab(nil)

	assert.Equal(t, 2, v.Size())
	assert.Equal(t, PadID, v.ID(PadToken))
	assert.Equal(t, UnkID, v.ID(UnkToken))
	assert.Equal(t, UnkID, v.ID("never-seen"))

	w, ok := v.Word(PadID)
	require.True(t, ok)
	assert.Equal(t, PadToken, w)
}

func testVocabOrderAndDuplicates(t *testing.T) {
	v := NewVocab([]string{"the", "cat", "the", "", "sat", UnkToken})

	// the repeated "the" uses up id 4
	assert.Equal(t, 6, v.Size())
	assert.Equal(t, 2, v.ID("the"))
	assert.Equal(t, 3, v.ID("cat"))
	assert.Equal(t, 5, v.ID("sat"))
	assert.Equal(t, UnkID, v.ID(UnkToken))

	id, ok := v.Lookup("cat")
	assert.True(t, ok)
	assert.Equal(t, 3, id)

	_, ok = v.Lookup("dog")
	assert.False(t, ok)

	w, ok := v.Word(4)
	assert.True(t, ok)
	assert.Equal(t, "the", w)

	w, ok = v.Word(5)
	assert.True(t, ok)
	assert.Equal(t, "sat", w)

	_, ok = v.Word(99)
	assert.False(t, ok)
}

func testVocabFromMap(t *testing.T) {
	v, err := NewVocabFromMap(map[string]int{
		PadToken: PadID,
		"up":     4,
		"down":   2,
		"h":      3,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, v.Size())
	assert.Equal(t, 4, v.ID("up"))
	assert.Equal(t, UnkID, v.ID("left"))

	w, ok := v.Word(2)
	assert.True(t, ok)
	assert.Equal(t, "down", w)
}

func testVocabFromMapRejectsReservedIDs(t *testing.T) {
	cases := map[string]map[string]int{
		"pad id reused": {"up": PadID},
		"unk id reused": {"up": UnkID},
		"duplicate id":  {"up": 2, "down": 2},
		"negative id":   {"up": -1},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewVocabFromMap(m)
			assert.ErrorIs(t, err, common.ErrInvalidVocab)
		})
	}
}

func testVocabLoadPlainAndGlove(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "vocab.txt")
	require.NoError(t, os.WriteFile(plain, []byte("<pad>\n<unk>\nthe\n\nof\nand"), 0o644))

	v, err := LoadVocab(plain)
	require.NoError(t, err)
	assert.Equal(t, 5, v.Size())
	assert.Equal(t, 2, v.ID("the"))
	assert.Equal(t, 3, v.ID("of"))
	assert.Equal(t, 4, v.ID("and"), "last line without newline must load")

	glove := filepath.Join(dir, "glove.6B.50d.txt")
	require.NoError(t, os.WriteFile(glove, []byte("the 0.1 0.2\r\n, 0.3 0.4\r\n"), 0o644))

	g, err := LoadVocab(glove)
	require.NoError(t, err)
	assert.Equal(t, 2, g.ID("the"))
	assert.Equal(t, 3, g.ID(","))
	assert.Equal(t, UnkID, g.ID("0.1"))
}

func testVocabLoadKeepsRowOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glove.txt")
	rows := "the 0.1\nfoo\u00a0bar 0.2\nfoo 0.3\ncat 0.4\nthe 0.5\ndog\t0.6\n"
	require.NoError(t, os.WriteFile(path, []byte(rows), 0o644))

	v, err := LoadVocab(path)
	require.NoError(t, err)

	// one id per row, in file order
	assert.Equal(t, 2, v.ID("the"))
	assert.Equal(t, 3, v.ID("foo\u00a0bar"))
	assert.Equal(t, 4, v.ID("foo"))
	assert.Equal(t, 5, v.ID("cat"))
	assert.Equal(t, 7, v.ID("dog"))
	assert.Equal(t, UnkID, v.ID("bar"))
	assert.Equal(t, 8, v.Size())

	w, ok := v.Word(6)
	require.True(t, ok)
	assert.Equal(t, "the", w)
}

func testVocabLoadMissingFile(t *testing.T) {
	_, err := LoadVocab(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func testVocabPrefix(t *testing.T) {
	v := NewVocab([]string{"run", "running", "ran", "runner", "walk"})

	assert.Equal(t, []string{"run", "runner", "running"}, v.Prefix("run"))
	assert.Empty(t, v.Prefix("swim"))
}

func testVocabConcurrentReaders(t *testing.T) {
	v := NewVocab([]string{"a", "b", "c"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, 3, v.ID("b"))
				assert.Equal(t, UnkID, v.ID("z"))
			}
		}()
	}
	wg.Wait()
}

func TestCharset(t *testing.T) {
	t.Run("NewCharset", func(t *testing.T) {
		cs := NewCharset([]rune{'a', 'b', 'a', 'c'})
		assert.Equal(t, 5, cs.Size())
		assert.Equal(t, 2, cs.ID('a'))
		assert.Equal(t, 4, cs.ID('c'))
		assert.Equal(t, UnkCharID, cs.ID('z'))

		r, ok := cs.Char(3)
		assert.True(t, ok)
		assert.Equal(t, 'b', r)
	})

	t.Run("FromMap", func(t *testing.T) {
		cs, err := NewCharsetFromMap(map[rune]int{'h': 6, 'i': 7})
		require.NoError(t, err)
		assert.Equal(t, 8, cs.Size())
		assert.Equal(t, 6, cs.ID('h'))
		assert.Equal(t, UnkCharID, cs.ID('x'))

		_, err = NewCharsetFromMap(map[rune]int{'h': PadCharID})
		assert.ErrorIs(t, err, common.ErrInvalidVocab)
		_, err = NewCharsetFromMap(map[rune]int{'h': 2, 'i': 2})
		assert.ErrorIs(t, err, common.ErrInvalidVocab)
	})

	t.Run("Default", func(t *testing.T) {
		cs := DefaultCharset()
		assert.Equal(t, 2, cs.ID('$'))
		assert.NotEqual(t, UnkCharID, cs.ID('a'))
		assert.NotEqual(t, UnkCharID, cs.ID('"'))
		assert.Equal(t, UnkCharID, cs.ID('é'))
		assert.Equal(t, UnkCharID, cs.ID('日'), "non-ASCII input carries no character signal")
		assert.Equal(t, UnkCharID, cs.ID('A'), "training text is lowercased")
	})

	t.Run("Load", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "chars.txt")
		require.NoError(t, os.WriteFile(path, []byte("a\n \né\n\nb"), 0o644))

		cs, err := LoadCharset(path)
		require.NoError(t, err)
		assert.Equal(t, 2, cs.ID('a'))
		assert.Equal(t, 3, cs.ID(' '))
		assert.Equal(t, 4, cs.ID('é'))
		assert.Equal(t, 5, cs.ID('b'))
	})
}

func TestCharsetEmbeddingMatrix(t *testing.T) {
	cs := NewCharset([]rune("abcd"))

	m := cs.EmbeddingMatrix(3, rand.New(rand.NewPCG(1, 2)), false)
	rows, cols := m.Dims()
	assert.Equal(t, 6, rows)
	assert.Equal(t, 3, cols)

	for j := 0; j < cols; j++ {
		assert.Greater(t, m.At(PadCharID, j)+m.At(UnkCharID, j), 0.0)
		for i := 2; i < rows; i++ {
			assert.Zero(t, m.At(i, j))
		}
	}

	r := cs.EmbeddingMatrix(3, rand.New(rand.NewPCG(1, 2)), true)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := r.At(i, j)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.Less(t, v, 1.0)
		}
	}
	assert.Equal(t, m.At(0, 0), r.At(0, 0), "same seed yields the same reserved rows")

	n := cs.EmbeddingMatrix(2, nil, true)
	rows, cols = n.Dims()
	assert.Equal(t, 6, rows)
	assert.Equal(t, 2, cols)
}
