package core_test

import (
	"math"
	"testing"

	"finsent-backend/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftmax(t *testing.T) {
	probs := core.Softmax([]float32{1, 2, 3})
	require.Len(t, probs, 3)

	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 0.6652409, probs[2], 1e-6)

	// Large logits must not overflow.
	probs = core.Softmax([]float32{1000, 1000})
	assert.InDelta(t, 0.5, probs[0], 1e-9)

	assert.Nil(t, core.Softmax(nil))
}

func TestProcessLogits(t *testing.T) {
	pred, err := core.ProcessLogits([]float32{0.1, 2.5, -1.0}, finbertLabels)
	require.NoError(t, err)

	assert.Equal(t, "Positive", pred.Label)
	assert.Greater(t, pred.Score, 0.5)
	assert.LessOrEqual(t, pred.Score, 1.0)
	assert.InDelta(t, pred.Probabilities["Positive"]-pred.Probabilities["Negative"], pred.Polarity, 1e-12)
	assert.Greater(t, pred.Polarity, 0.0)
	assert.Len(t, pred.Probabilities, 3)

	pred, err = core.ProcessLogits([]float32{0, 0, 4}, finbertLabels)
	require.NoError(t, err)
	assert.Equal(t, "Negative", pred.Label)
	assert.Less(t, pred.Polarity, 0.0)
}

func TestProcessLogitsErrors(t *testing.T) {
	_, err := core.ProcessLogits([]float32{1, 2}, finbertLabels)
	assert.Error(t, err)

	_, err = core.ProcessLogits([]float32{1, float32(math.NaN()), 0}, finbertLabels)
	assert.Error(t, err)
}

func TestProcessLogitsWithoutPolarLabels(t *testing.T) {
	pred, err := core.ProcessLogits([]float32{3, 1}, []string{"LABEL_0", "LABEL_1"})
	require.NoError(t, err)
	assert.Equal(t, "LABEL_0", pred.Label)
	assert.Equal(t, 0.0, pred.Polarity)
}
