package batcher

import (
	"cmp"
	"math/rand/v2"
	"slices"
)

// BucketAndBatch groups examples into batches of batchSize and shuffles the batch order.
//
// Examples are stable-sorted by question length first, so each batch holds questions
// of similar length and little padding is wasted. Sorting by context length instead
// would put the same context in a batch many times, since every context is shared by
// several questions. Only the order of batches is shuffled, never their contents; the
// last batch may be short.
func BucketAndBatch(examples []Example, batchSize int, rng *rand.Rand) [][]Example {
	if len(examples) == 0 || batchSize <= 0 {
		return nil
	}

	sorted := slices.Clone(examples)
	slices.SortStableFunc(sorted, func(a, b Example) int {
		return cmp.Compare(len(a.QnIDs), len(b.QnIDs))
	})

	batches := make([][]Example, 0, (len(sorted)+batchSize-1)/batchSize)
	for start := 0; start < len(sorted); start += batchSize {
		end := min(start+batchSize, len(sorted))
		batches = append(batches, sorted[start:end:end])
	}

	swap := func(i, j int) { batches[i], batches[j] = batches[j], batches[i] }
	if rng != nil {
		rng.Shuffle(len(batches), swap)
	} else {
		rand.Shuffle(len(batches), swap)
	}
	return batches
}
