package export_test

import (
	"testing"

	"finsent-backend/internal/export"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDummyInput(t *testing.T) {
	dummy := export.NewDummyInput(2, 256, 30873, 42)

	require.Len(t, dummy.InputIds, 2)
	require.Len(t, dummy.AttentionMask, 2)
	require.Len(t, dummy.TokenTypeIds, 2)

	for b := 0; b < 2; b++ {
		require.Len(t, dummy.InputIds[b], 256)
		for i := 0; i < 256; i++ {
			assert.GreaterOrEqual(t, dummy.InputIds[b][i], int64(0))
			assert.Less(t, dummy.InputIds[b][i], int64(30873))
			assert.Equal(t, int64(1), dummy.AttentionMask[b][i])
			assert.Equal(t, int64(0), dummy.TokenTypeIds[b][i])
		}
	}
}

func TestNewDummyInputSeeded(t *testing.T) {
	assert.Equal(t, export.NewDummyInput(1, 64, 100, 7), export.NewDummyInput(1, 64, 100, 7))
	assert.NotEqual(t, export.NewDummyInput(1, 64, 100, 7).InputIds, export.NewDummyInput(1, 64, 100, 8).InputIds)
}
