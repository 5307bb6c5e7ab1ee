package core_test

import (
	"testing"

	"finsent-backend/internal/core"

	"github.com/stretchr/testify/assert"
)

func TestPackEncodingDropsTokenizerPadding(t *testing.T) {
	// tokenizer.json with padding enabled: two real ids then pad ids.
	ids := []uint32{101, 2000, 102, 0, 0, 0}
	typeIds := []uint32{0, 0, 0, 0, 0, 0}
	mask := []uint32{1, 1, 1, 0, 0, 0}

	enc := core.PackEncoding(ids, typeIds, mask, 8, 0)
	assert.Equal(t, []int64{101, 2000, 102, 0, 0, 0, 0, 0}, enc.InputIds)
	assert.Equal(t, []int64{1, 1, 1, 0, 0, 0, 0, 0}, enc.AttentionMask)
}

func TestPackEncodingTruncation(t *testing.T) {
	ids := []uint32{101, 5, 6, 7, 8, 102}
	typeIds := []uint32{0, 0, 0, 1, 1, 1}

	enc := core.PackEncoding(ids, typeIds, nil, 4, 0)
	assert.Equal(t, []int64{101, 5, 6, 102}, enc.InputIds)
	assert.Equal(t, []int64{1, 1, 1, 1}, enc.AttentionMask)
	assert.Equal(t, []int64{0, 0, 0, 1}, enc.TokenTypeIds)
}

func TestPackEncodingLeftPadding(t *testing.T) {
	ids := []uint32{0, 0, 101, 9, 102}
	mask := []uint32{0, 0, 1, 1, 1}

	enc := core.PackEncoding(ids, nil, mask, 5, 0)
	assert.Equal(t, []int64{101, 9, 102, 0, 0}, enc.InputIds)
	assert.Equal(t, []int64{1, 1, 1, 0, 0}, enc.AttentionMask)
	assert.Equal(t, []int64{0, 0, 0, 0, 0}, enc.TokenTypeIds)
}
