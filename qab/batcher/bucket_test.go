package batcher

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func examplesWithQuestionLengths(lengths ...int) []Example {
	out := make([]Example, len(lengths))
	for i, n := range lengths {
		out[i] = Example{QnIDs: make([]int, n), Line: i + 1}
	}
	return out
}

func batchSizes(batches [][]Example) []int {
	sizes := make([]int, len(batches))
	for i, b := range batches {
		sizes[i] = len(b)
	}
	return sizes
}

func TestBucketAndBatch(t *testing.T) {
	examples := examplesWithQuestionLengths(4, 1, 7, 2, 6, 3, 5)

	batches := BucketAndBatch(examples, 3, rand.New(rand.NewPCG(1, 1)))
	require.Len(t, batches, 3)

	sizes := batchSizes(batches)
	slices.Sort(sizes)
	assert.Equal(t, []int{1, 3, 3}, sizes)

	// batches are consecutive runs of the length-sorted examples
	var runs [][]int
	for _, b := range batches {
		var lens []int
		for _, ex := range b {
			lens = append(lens, len(ex.QnIDs))
		}
		assert.True(t, slices.IsSorted(lens), "batch %v must be sorted by question length", lens)
		runs = append(runs, lens)
	}
	assert.ElementsMatch(t, [][]int{{1, 2, 3}, {4, 5, 6}, {7}}, runs)

	// the input slice is left untouched
	assert.Equal(t, 4, len(examples[0].QnIDs))
}

func TestBucketAndBatchStableForEqualLengths(t *testing.T) {
	examples := examplesWithQuestionLengths(2, 2, 2, 2)

	batches := BucketAndBatch(examples, 4, rand.New(rand.NewPCG(3, 3)))
	require.Len(t, batches, 1)

	var lines []int
	for _, ex := range batches[0] {
		lines = append(lines, ex.Line)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, lines)
}

func TestBucketAndBatchReproducibleOrder(t *testing.T) {
	examples := examplesWithQuestionLengths(9, 8, 7, 6, 5, 4, 3, 2, 1, 0)

	a := BucketAndBatch(examples, 2, rand.New(rand.NewPCG(42, 0)))
	b := BucketAndBatch(examples, 2, rand.New(rand.NewPCG(42, 0)))
	assert.Equal(t, a, b)

	orders := map[string]bool{}
	for seed := uint64(0); seed < 20; seed++ {
		batches := BucketAndBatch(examples, 2, rand.New(rand.NewPCG(seed, 0)))
		key := ""
		for _, bt := range batches {
			key += string(rune('a' + len(bt[0].QnIDs)))
		}
		orders[key] = true
	}
	assert.Greater(t, len(orders), 1, "batch order should depend on the seed")
}

func TestBucketAndBatchEmpty(t *testing.T) {
	assert.Nil(t, BucketAndBatch(nil, 3, nil))
	assert.Nil(t, BucketAndBatch(examplesWithQuestionLengths(1), 0, nil))

	batches := BucketAndBatch(examplesWithQuestionLengths(1, 2), 5, nil)
	assert.Equal(t, []int{2}, batchSizes(batches))
}
