package core

import (
	"fmt"
	"log/slog"
	"time"

	"finsent-backend/internal/checkpoint"
)

type PipelineConfig struct {
	CheckpointDir     string
	ModelFile         string
	MaxSequenceLength int
	Lowercase         bool
	Concurrency       int64
	ResultCacheBytes  int
	ResultCacheTTL    time.Duration
}

type ModelInfo struct {
	Checkpoint        string
	ModelPath         string
	TokenizerKind     checkpoint.TokenizerKind
	Labels            []string
	MaxSequenceLength int
}

// LoadPipeline performs the startup sequence: read the checkpoint config,
// load the tokenizer, load the model, bind them. Any failure is wrapped in
// ErrModelUnavailable.
func LoadPipeline(cfg PipelineConfig, loadModel ModelLoader) (*Pipeline, ModelInfo, error) {
	dir := checkpoint.Dir(cfg.CheckpointDir)

	modelFile := cfg.ModelFile
	if modelFile == "" {
		modelFile = checkpoint.DefaultModelFile
	}
	maxLen := cfg.MaxSequenceLength
	if maxLen == 0 {
		maxLen = DefaultMaxSequenceLength
	}

	ckptCfg, err := checkpoint.LoadConfig(dir.ConfigPath())
	if err != nil {
		return nil, ModelInfo{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	labels, err := ckptCfg.Labels()
	if err != nil {
		return nil, ModelInfo{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	if ckptCfg.MaxPositionEmbeddings > 0 && maxLen > ckptCfg.MaxPositionEmbeddings {
		return nil, ModelInfo{}, fmt.Errorf("%w: max sequence length %d exceeds max_position_embeddings %d",
			ErrModelUnavailable, maxLen, ckptCfg.MaxPositionEmbeddings)
	}

	tokenizerPath, kind, err := dir.TokenizerPath()
	if err != nil {
		return nil, ModelInfo{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	modelPath, err := dir.RequireFile(modelFile)
	if err != nil {
		return nil, ModelInfo{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	var tokenizer Tokenizer
	switch kind {
	case checkpoint.TokenizerHF:
		tokenizer, err = LoadHFTokenizer(tokenizerPath, 0)
	default:
		tokenizer, err = LoadWordPieceTokenizer(tokenizerPath, cfg.Lowercase)
	}
	if err != nil {
		return nil, ModelInfo{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	slog.Info("tokenizer loaded", "path", tokenizerPath, "kind", kind)

	model, err := loadModel(modelPath, len(labels))
	if err != nil {
		_ = tokenizer.Close()
		return nil, ModelInfo{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	slog.Info("model loaded", "path", modelPath, "labels", labels)

	opts := []PipelineOption{WithConcurrency(cfg.Concurrency)}
	if cfg.ResultCacheBytes > 0 {
		opts = append(opts, WithResultCache(NewResultCache(cfg.ResultCacheBytes, cfg.ResultCacheTTL)))
	}

	pipeline, err := NewPipeline(tokenizer, model, labels, maxLen, opts...)
	if err != nil {
		model.Release()
		_ = tokenizer.Close()
		return nil, ModelInfo{}, err
	}

	info := ModelInfo{
		Checkpoint:        cfg.CheckpointDir,
		ModelPath:         modelPath,
		TokenizerKind:     kind,
		Labels:            labels,
		MaxSequenceLength: maxLen,
	}

	return pipeline, info, nil
}
