package core_test

import (
	"testing"
	"time"

	"finsent-backend/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCache(t *testing.T) {
	cache := core.NewResultCache(512*1024, time.Minute)

	_, ok := cache.Get("the stock rose")
	assert.False(t, ok)

	pred, err := core.ProcessLogits([]float32{0.2, 1.7, -0.4}, finbertLabels)
	require.NoError(t, err)
	cache.Set("the stock rose", pred)

	got, ok := cache.Get("the stock rose")
	require.True(t, ok)
	assert.Equal(t, pred, got)
	assert.Equal(t, int64(1), cache.EntryCount())

	_, ok = cache.Get("The stock rose")
	assert.False(t, ok, "lookups are exact on the raw text")
	assert.Greater(t, cache.HitRate(), 0.0)
}

func TestTextDigest(t *testing.T) {
	assert.Len(t, core.TextDigest("profit"), 32)
	assert.Equal(t, core.TextDigest("profit"), core.TextDigest("profit"))
	assert.NotEqual(t, core.TextDigest("profit"), core.TextDigest("loss"))
}
