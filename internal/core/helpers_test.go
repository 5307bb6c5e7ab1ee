package core_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"finsent-backend/internal/core"

	"github.com/stretchr/testify/require"
)

var testVocab = []string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]",
	"company", "x", "beat", "earnings", "estimates", "significant", "##ly",
	"filed", "for", "bank", "##ruptcy", "the", "stock", "rose", "fell",
	"profit", "loss", "cafe", ".", ",", "!", "'", "s",
}

var finbertLabels = []string{"Neutral", "Positive", "Negative"}

func vocabMap() map[string]int64 {
	m := make(map[string]int64, len(testVocab))
	for i, token := range testVocab {
		m[token] = int64(i)
	}
	return m
}

func writeVocab(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(testVocab, "\n")+"\n"), 0o644))
	return path
}

func newTestTokenizer(t *testing.T) *core.WordPieceTokenizer {
	t.Helper()
	tok, err := core.NewWordPieceTokenizer(vocabMap(), true)
	require.NoError(t, err)
	return tok
}

// lexiconModel scores token ids against fixed word lists, standing in for the
// checkpoint in tests. Logits are ordered Neutral, Positive, Negative.
type lexiconModel struct {
	positive map[int64]bool
	negative map[int64]bool
	calls    atomic.Int64
	released atomic.Bool
}

func newLexiconModel() *lexiconModel {
	vocab := vocabMap()
	ids := func(words ...string) map[int64]bool {
		m := make(map[int64]bool)
		for _, w := range words {
			m[vocab[w]] = true
		}
		return m
	}
	return &lexiconModel{
		positive: ids("beat", "rose", "profit", "significant"),
		negative: ids("bank", "##ruptcy", "fell", "loss"),
	}
}

func (m *lexiconModel) Forward(enc core.Encoding) ([]float32, error) {
	m.calls.Add(1)
	logits := []float32{0.5, 0, 0}
	for i, id := range enc.InputIds {
		if enc.AttentionMask[i] == 0 {
			continue
		}
		if m.positive[id] {
			logits[1] += 1.5
		}
		if m.negative[id] {
			logits[2] += 1.5
		}
	}
	return logits, nil
}

func (m *lexiconModel) Release() {
	m.released.Store(true)
}
