package core_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"finsent-backend/internal/checkpoint"
	"finsent-backend/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const finbertToneConfig = `{
  "architectures": ["BertForSequenceClassification"],
  "model_type": "bert",
  "vocab_size": 28,
  "hidden_size": 768,
  "num_hidden_layers": 12,
  "num_attention_heads": 12,
  "max_position_embeddings": 512,
  "type_vocab_size": 2,
  "id2label": {"0": "Neutral", "1": "Positive", "2": "Negative"}
}`

func writeCheckpoint(t *testing.T, withConfig, withVocab, withModel bool) string {
	t.Helper()
	dir := t.TempDir()
	if withConfig {
		require.NoError(t, os.WriteFile(filepath.Join(dir, checkpoint.ConfigFile), []byte(finbertToneConfig), 0o644))
	}
	if withVocab {
		writeVocab(t, dir)
	}
	if withModel {
		require.NoError(t, os.WriteFile(filepath.Join(dir, checkpoint.DefaultModelFile), []byte("onnx"), 0o644))
	}
	return dir
}

func unusedLoader(t *testing.T) core.ModelLoader {
	return func(string, int) (core.Model, error) {
		t.Fatal("model loader must not be called for an incomplete checkpoint")
		return nil, nil
	}
}

func TestLoadPipelineFailsFast(t *testing.T) {
	cases := []struct {
		name       string
		withConfig bool
		withVocab  bool
		withModel  bool
	}{
		{"missing config", false, true, true},
		{"missing vocab", true, false, true},
		{"missing model", true, true, false},
		{"empty dir", false, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeCheckpoint(t, tc.withConfig, tc.withVocab, tc.withModel)
			_, _, err := core.LoadPipeline(core.PipelineConfig{CheckpointDir: dir}, unusedLoader(t))
			assert.ErrorIs(t, err, core.ErrModelUnavailable)
			assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
		})
	}
}

func TestLoadPipelineIncompatibleConfig(t *testing.T) {
	dir := writeCheckpoint(t, false, true, true)
	require.NoError(t, os.WriteFile(filepath.Join(dir, checkpoint.ConfigFile), []byte(`{"vocab_size": 0}`), 0o644))

	_, _, err := core.LoadPipeline(core.PipelineConfig{CheckpointDir: dir}, unusedLoader(t))
	assert.ErrorIs(t, err, core.ErrModelUnavailable)
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointIncompatible)
}

func TestLoadPipelineSequenceLengthTooLong(t *testing.T) {
	dir := writeCheckpoint(t, true, true, true)
	_, _, err := core.LoadPipeline(core.PipelineConfig{CheckpointDir: dir, MaxSequenceLength: 1024}, unusedLoader(t))
	assert.ErrorIs(t, err, core.ErrModelUnavailable)
}

func TestLoadPipelineModelError(t *testing.T) {
	dir := writeCheckpoint(t, true, true, true)
	_, _, err := core.LoadPipeline(core.PipelineConfig{CheckpointDir: dir}, func(string, int) (core.Model, error) {
		return nil, errors.New("invalid onnx graph")
	})
	assert.ErrorIs(t, err, core.ErrModelUnavailable)
}

func TestLoadPipeline(t *testing.T) {
	dir := writeCheckpoint(t, true, true, true)
	model := newLexiconModel()

	var gotPath string
	var gotLabels int
	pipeline, info, err := core.LoadPipeline(
		core.PipelineConfig{CheckpointDir: dir, Lowercase: true, Concurrency: 1},
		func(path string, numLabels int) (core.Model, error) {
			gotPath, gotLabels = path, numLabels
			return model, nil
		},
	)
	require.NoError(t, err)
	defer pipeline.Release()

	assert.Equal(t, filepath.Join(dir, checkpoint.DefaultModelFile), gotPath)
	assert.Equal(t, 3, gotLabels)

	assert.Equal(t, finbertLabels, info.Labels)
	assert.Equal(t, checkpoint.TokenizerWordPiece, info.TokenizerKind)
	assert.Equal(t, core.DefaultMaxSequenceLength, info.MaxSequenceLength)

	pred, err := pipeline.Analyze(context.Background(), "Company X filed for bankruptcy")
	require.NoError(t, err)
	assert.Equal(t, "Negative", pred.Label)
}
