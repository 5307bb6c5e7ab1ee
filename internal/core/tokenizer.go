package core

import "fmt"

// Encoding is one tokenized document padded to a fixed sequence length, in
// the three-tensor layout BERT sequence classifiers expect.
type Encoding struct {
	InputIds      []int64
	AttentionMask []int64
	TokenTypeIds  []int64
}

func (e Encoding) Len() int {
	return len(e.InputIds)
}

type Tokenizer interface {
	// Encode returns an encoding of exactly maxLen tokens: [CLS] text [SEP],
	// truncated or padded as needed.
	Encode(text string, maxLen int) (Encoding, error)

	Close() error
}

type specialTokens struct {
	cls, sep, pad int64
}

// packSequence wraps ids in [CLS]/[SEP], truncates the body so the result
// fits maxLen, and pads the tail with the pad id.
func packSequence(ids []int64, special specialTokens, maxLen int) (Encoding, error) {
	if maxLen < 2 {
		return Encoding{}, fmt.Errorf("max sequence length must be at least 2, got %d", maxLen)
	}

	if len(ids) > maxLen-2 {
		ids = ids[:maxLen-2]
	}

	enc := Encoding{
		InputIds:      make([]int64, maxLen),
		AttentionMask: make([]int64, maxLen),
		TokenTypeIds:  make([]int64, maxLen),
	}

	enc.InputIds[0] = special.cls
	copy(enc.InputIds[1:], ids)
	enc.InputIds[len(ids)+1] = special.sep

	used := len(ids) + 2
	for i := 0; i < used; i++ {
		enc.AttentionMask[i] = 1
	}
	for i := used; i < maxLen; i++ {
		enc.InputIds[i] = special.pad
	}

	return enc, nil
}
