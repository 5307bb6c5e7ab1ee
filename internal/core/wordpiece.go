package core

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"finsent-backend/internal/checkpoint"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	unkToken = "[UNK]"
	clsToken = "[CLS]"
	sepToken = "[SEP]"
	padToken = "[PAD]"

	maxCharsPerWord = 100
)

// WordPieceTokenizer is the uncased BERT tokenizer driven by a plain
// vocab.txt: basic cleanup and punctuation splitting followed by greedy
// longest-match-first subword lookup.
type WordPieceTokenizer struct {
	vocab     map[string]int64
	special   specialTokens
	unk       int64
	lowercase bool
}

var _ Tokenizer = (*WordPieceTokenizer)(nil)

func LoadVocab(path string) (map[string]int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(file)
	var index int64
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r")
		if _, ok := vocab[token]; !ok {
			vocab[token] = index
		}
		index++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return vocab, nil
}

func LoadWordPieceTokenizer(vocabPath string, lowercase bool) (*WordPieceTokenizer, error) {
	vocab, err := LoadVocab(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("error loading vocab %s: %w", vocabPath, err)
	}
	return NewWordPieceTokenizer(vocab, lowercase)
}

func NewWordPieceTokenizer(vocab map[string]int64, lowercase bool) (*WordPieceTokenizer, error) {
	lookup := func(token string) (int64, error) {
		id, ok := vocab[token]
		if !ok {
			return 0, fmt.Errorf("%w: vocab is missing special token %s", checkpoint.ErrCheckpointIncompatible, token)
		}
		return id, nil
	}

	t := &WordPieceTokenizer{vocab: vocab, lowercase: lowercase}

	var err error
	if t.unk, err = lookup(unkToken); err != nil {
		return nil, err
	}
	if t.special.cls, err = lookup(clsToken); err != nil {
		return nil, err
	}
	if t.special.sep, err = lookup(sepToken); err != nil {
		return nil, err
	}
	if t.special.pad, err = lookup(padToken); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *WordPieceTokenizer) Encode(text string, maxLen int) (Encoding, error) {
	tokens := t.Tokenize(text)

	ids := make([]int64, len(tokens))
	for i, token := range tokens {
		if id, ok := t.vocab[token]; ok {
			ids[i] = id
		} else {
			ids[i] = t.unk
		}
	}

	return packSequence(ids, t.special, maxLen)
}

// Tokenize splits text into wordpiece tokens without special tokens.
func (t *WordPieceTokenizer) Tokenize(text string) []string {
	var tokens []string
	for _, word := range t.basicTokenize(text) {
		tokens = append(tokens, t.wordPiece(word)...)
	}
	return tokens
}

func (t *WordPieceTokenizer) Close() error {
	return nil
}

func (t *WordPieceTokenizer) basicTokenize(text string) []string {
	text = cleanText(text)

	var words []string
	for _, word := range strings.Fields(text) {
		if t.lowercase {
			word = stripAccents(strings.ToLower(word))
		}
		words = append(words, splitOnPunctuation(word)...)
	}
	return words
}

func (t *WordPieceTokenizer) wordPiece(word string) []string {
	if utf8.RuneCountInString(word) > maxCharsPerWord {
		return []string{unkToken}
	}

	var pieces []string
	start := 0
	for start < len(word) {
		end := len(word)
		found := ""
		for end > start {
			sub := word[start:end]
			if start > 0 {
				sub = "##" + sub
			}
			if _, ok := t.vocab[sub]; ok {
				found = sub
				break
			}
			_, size := utf8.DecodeLastRuneInString(word[start:end])
			end -= size
		}
		if found == "" {
			return []string{unkToken}
		}
		pieces = append(pieces, found)
		start = end
	}
	return pieces
}

func cleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == 0 || r == utf8.RuneError:
			continue
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case unicode.IsControl(r) || unicode.Is(unicode.Cf, r):
			continue
		case isCJK(r):
			b.WriteRune(' ')
			b.WriteRune(r)
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripAccents(word string) string {
	// Chains carry state, so each call builds its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, word)
	if err != nil {
		return word
	}
	return out
}

func splitOnPunctuation(word string) []string {
	var parts []string
	current := strings.Builder{}
	for _, r := range word {
		if isPunctuation(r) {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
			parts = append(parts, string(r))
			continue
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}
