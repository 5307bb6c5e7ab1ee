package core

import (
	"fmt"

	"github.com/daulet/tokenizers"
)

// HFTokenizer wraps a HuggingFace tokenizer.json. Special tokens are added by
// the tokenizer's own post-processor; truncation keeps the trailing [SEP].
type HFTokenizer struct {
	tokenizer *tokenizers.Tokenizer
	padId     int64
}

var _ Tokenizer = (*HFTokenizer)(nil)

func LoadHFTokenizer(path string, padId int64) (*HFTokenizer, error) {
	tk, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("error loading tokenizer %s: %w", path, err)
	}
	return &HFTokenizer{tokenizer: tk, padId: padId}, nil
}

func (t *HFTokenizer) Encode(text string, maxLen int) (Encoding, error) {
	if maxLen < 2 {
		return Encoding{}, fmt.Errorf("max sequence length must be at least 2, got %d", maxLen)
	}

	enc := t.tokenizer.EncodeWithOptions(text, true,
		tokenizers.WithReturnTypeIDs(),
		tokenizers.WithReturnAttentionMask(),
	)

	return PackEncoding(enc.IDs, enc.TypeIDs, enc.AttentionMask, maxLen, t.padId), nil
}

// PackEncoding lays tokenizer output out as a fixed maxLen encoding. Positions
// the tokenizer itself marked as padding are dropped before truncation, so the
// mask only covers real tokens. Truncation keeps the final special token.
func PackEncoding(ids, typeIds, mask []uint32, maxLen int, padId int64) Encoding {
	type token struct{ id, typeId uint32 }

	tokens := make([]token, 0, len(ids))
	for i, id := range ids {
		if i < len(mask) && mask[i] == 0 {
			continue
		}
		tok := token{id: id}
		if i < len(typeIds) {
			tok.typeId = typeIds[i]
		}
		tokens = append(tokens, tok)
	}

	if len(tokens) > maxLen {
		last := tokens[len(tokens)-1]
		tokens = append(tokens[:maxLen-1:maxLen-1], last)
	}

	out := Encoding{
		InputIds:      make([]int64, maxLen),
		AttentionMask: make([]int64, maxLen),
		TokenTypeIds:  make([]int64, maxLen),
	}
	for i := range out.InputIds {
		if i >= len(tokens) {
			out.InputIds[i] = padId
			continue
		}
		out.InputIds[i] = int64(tokens[i].id)
		out.AttentionMask[i] = 1
		out.TokenTypeIds[i] = int64(tokens[i].typeId)
	}

	return out
}

func (t *HFTokenizer) Close() error {
	return t.tokenizer.Close()
}
