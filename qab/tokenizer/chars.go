package tokenizer

import (
	"github.com/ZanzyTHEbar/qa-batcher/qab/vocab"
)

// WordToCharIDs maps the first wordLen characters of word to char ids and right-pads
// with PAD_CHAR so the result always has exactly wordLen entries.
func WordToCharIDs(word string, chars CharIndex, wordLen int) []int {
	out := make([]int, wordLen)
	i := 0
	for _, r := range word {
		if i == wordLen {
			break
		}
		out[i] = chars.ID(r)
		i++
	}
	for ; i < wordLen; i++ {
		out[i] = vocab.PadCharID
	}
	return out
}

// WordsToCharIDs applies WordToCharIDs to every word; shape (len(words), wordLen).
func WordsToCharIDs(words []string, chars CharIndex, wordLen int) [][]int {
	out := make([][]int, len(words))
	for i, w := range words {
		out[i] = WordToCharIDs(w, chars, wordLen)
	}
	return out
}

// IDsToCharIDs expands padded word ids into character ids, shape
// (len(wordIDs), len(row), wordLen). PAD and UNK ids, and ids absent from the
// vocabulary, become an all-PAD_CHAR word: UNK words carry no character signal.
func IDsToCharIDs(wordIDs [][]int, words WordIndex, chars CharIndex, wordLen int) [][][]int {
	out := make([][][]int, len(wordIDs))
	for i, row := range wordIDs {
		tokens := make([]string, len(row))
		for j, id := range row {
			if id == vocab.PadID || id == vocab.UnkID {
				continue
			}
			if w, ok := words.Word(id); ok {
				tokens[j] = w
			}
		}
		out[i] = WordsToCharIDs(tokens, chars, wordLen)
	}
	return out
}
