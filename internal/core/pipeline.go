package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/semaphore"
)

const DefaultMaxSequenceLength = 256

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrModelUnavailable = errors.New("model unavailable")
)

// Pipeline binds a tokenizer and a model into a text classifier. It is
// built once at startup and shared read-only by every request.
type Pipeline struct {
	tokenizer Tokenizer
	model     Model
	labels    []string
	maxLen    int

	forwardSlots *semaphore.Weighted
	cache        *ResultCache
}

type PipelineOption func(*Pipeline)

// WithConcurrency bounds the number of forward passes running at once.
// Onnxruntime parallelizes inside each pass, so this is usually small.
func WithConcurrency(n int64) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.forwardSlots = semaphore.NewWeighted(n)
		}
	}
}

func WithResultCache(cache *ResultCache) PipelineOption {
	return func(p *Pipeline) {
		p.cache = cache
	}
}

func NewPipeline(tokenizer Tokenizer, model Model, labels []string, maxLen int, opts ...PipelineOption) (*Pipeline, error) {
	if tokenizer == nil || model == nil {
		return nil, fmt.Errorf("%w: tokenizer and model are required", ErrModelUnavailable)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: label set is empty", ErrModelUnavailable)
	}
	if maxLen < 2 {
		return nil, fmt.Errorf("max sequence length must be at least 2, got %d", maxLen)
	}

	p := &Pipeline{
		tokenizer: tokenizer,
		model:     model,
		labels:    append([]string(nil), labels...),
		maxLen:    maxLen,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Analyze classifies a single document. Empty or whitespace-only text is
// rejected with ErrInvalidInput.
func (p *Pipeline) Analyze(ctx context.Context, text string) (Prediction, error) {
	if strings.TrimSpace(text) == "" {
		return Prediction{}, fmt.Errorf("%w: text must not be empty", ErrInvalidInput)
	}
	if p == nil || p.model == nil || p.tokenizer == nil {
		return Prediction{}, ErrModelUnavailable
	}

	if p.cache != nil {
		if pred, ok := p.cache.Get(text); ok {
			return pred, nil
		}
	}

	enc, err := p.tokenizer.Encode(text, p.maxLen)
	if err != nil {
		return Prediction{}, fmt.Errorf("error tokenizing text: %w", err)
	}

	if p.forwardSlots != nil {
		if err := p.forwardSlots.Acquire(ctx, 1); err != nil {
			return Prediction{}, fmt.Errorf("waiting for inference slot: %w", err)
		}
		defer p.forwardSlots.Release(1)
	}

	logits, err := p.model.Forward(enc)
	if err != nil {
		return Prediction{}, fmt.Errorf("error running model inference: %w", err)
	}

	pred, err := ProcessLogits(logits, p.labels)
	if err != nil {
		return Prediction{}, err
	}

	if p.cache != nil {
		p.cache.Set(text, pred)
	}

	return pred, nil
}

func (p *Pipeline) Labels() []string {
	return append([]string(nil), p.labels...)
}

func (p *Pipeline) MaxSequenceLength() int {
	return p.maxLen
}

func (p *Pipeline) Release() {
	if p.model != nil {
		p.model.Release()
	}
	if p.tokenizer != nil {
		_ = p.tokenizer.Close()
	}
}
