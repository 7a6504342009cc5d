package batcher

import (
	"github.com/ZanzyTHEbar/qa-batcher/qab/tokenizer"
	"github.com/ZanzyTHEbar/qa-batcher/qab/vocab"
)

// Tables are the read-only lookup tables a stream maps against. They may be shared
// by any number of streams.
type Tables struct {
	Words tokenizer.WordIndex
	Chars tokenizer.CharIndex
}

// Batch is one padded, fixed-shape mini-batch. Array fields have BatchSize rows:
// ids and masks are (BatchSize, ContextLen|QuestionLen), char ids add a WordLen axis.
// Token fields are unpadded and kept for human-readable output.
// In eval mode AnsSpan and AnsTokens are nil and UUIDs is set.
type Batch struct {
	ContextIDs     [][]int
	ContextMask    [][]int
	ContextCharIDs [][][]int
	ContextTokens  [][]string

	QnIDs     [][]int
	QnMask    [][]int
	QnCharIDs [][][]int
	QnTokens  [][]string

	AnsSpan   [][2]int
	AnsTokens [][]string

	UUIDs []string

	BatchSize int
}

func newBatch(examples []Example, tables Tables, opts Options) *Batch {
	n := len(examples)
	b := &Batch{
		ContextTokens: make([][]string, n),
		QnTokens:      make([][]string, n),
		BatchSize:     n,
	}

	contextIDs := make([][]int, n)
	qnIDs := make([][]int, n)
	for i, ex := range examples {
		contextIDs[i] = ex.ContextIDs
		qnIDs[i] = ex.QnIDs
		b.ContextTokens[i] = ex.ContextTokens
		b.QnTokens[i] = ex.QnTokens
	}

	if opts.Mode == ModeEval {
		b.UUIDs = make([]string, n)
		for i, ex := range examples {
			b.UUIDs[i] = ex.UUID
		}
	} else {
		b.AnsSpan = make([][2]int, n)
		b.AnsTokens = make([][]string, n)
		for i, ex := range examples {
			b.AnsSpan[i] = [2]int{ex.AnsSpan.Start, ex.AnsSpan.End}
			b.AnsTokens[i] = ex.AnsTokens
		}
	}

	b.ContextIDs = padded(contextIDs, opts.ContextLen)
	b.QnIDs = padded(qnIDs, opts.QuestionLen)

	b.ContextMask = mask(b.ContextIDs)
	b.QnMask = mask(b.QnIDs)

	// Char ids come from the padded ids so PAD positions become all-PAD_CHAR words.
	b.ContextCharIDs = tokenizer.IDsToCharIDs(b.ContextIDs, tables.Words, tables.Chars, opts.WordLen)
	b.QnCharIDs = tokenizer.IDsToCharIDs(b.QnIDs, tables.Words, tables.Chars, opts.WordLen)

	return b
}

// padded copies every row into a fresh slice of exactly length, PAD-filled on the right.
func padded(rows [][]int, length int) [][]int {
	out := make([][]int, len(rows))
	for i, row := range rows {
		p := make([]int, length)
		n := copy(p, row)
		for j := n; j < length; j++ {
			p[j] = vocab.PadID
		}
		out[i] = p
	}
	return out
}

// mask is 1 where ids holds a real token and 0 at PAD.
func mask(ids [][]int) [][]int {
	out := make([][]int, len(ids))
	for i, row := range ids {
		m := make([]int, len(row))
		for j, id := range row {
			if id != vocab.PadID {
				m[j] = 1
			}
		}
		out[i] = m
	}
	return out
}
