package export

import (
	"math/rand"

	"finsent-backend/plugin/shared"
)

// NewDummyInput builds the tracing batch: token ids drawn uniformly from
// [0, vocabSize), full attention, a single segment. The same seed always
// yields the same batch.
func NewDummyInput(batchSize, sequenceLength, vocabSize int, seed int64) shared.DummyInput {
	rng := rand.New(rand.NewSource(seed))

	dummy := shared.DummyInput{
		InputIds:      make([][]int64, batchSize),
		AttentionMask: make([][]int64, batchSize),
		TokenTypeIds:  make([][]int64, batchSize),
	}

	for b := 0; b < batchSize; b++ {
		ids := make([]int64, sequenceLength)
		mask := make([]int64, sequenceLength)
		for i := range ids {
			ids[i] = rng.Int63n(int64(vocabSize))
			mask[i] = 1
		}
		dummy.InputIds[b] = ids
		dummy.AttentionMask[b] = mask
		dummy.TokenTypeIds[b] = make([]int64, sequenceLength)
	}

	return dummy
}

func flatten(rows [][]int64) []int64 {
	var out []int64
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}
