package checkpoint_test

import (
	"os"
	"path/filepath"
	"testing"

	"finsent-backend/internal/checkpoint"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigFinbertTone(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, checkpoint.ConfigFile, `{
		"architectures": ["BertForSequenceClassification"],
		"model_type": "bert",
		"vocab_size": 30873,
		"hidden_size": 768,
		"num_hidden_layers": 12,
		"num_attention_heads": 12,
		"max_position_embeddings": 512,
		"type_vocab_size": 2,
		"id2label": {"0": "Neutral", "1": "Positive", "2": "Negative"}
	}`)

	cfg, err := checkpoint.LoadConfig(path)
	require.NoError(t, err)

	labels, err := cfg.Labels()
	require.NoError(t, err)
	assert.Equal(t, []string{"Neutral", "Positive", "Negative"}, labels)
	assert.Equal(t, 3, cfg.ResolvedNumLabels())
	assert.Equal(t, 30873, cfg.VocabSize)
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()

	t.Run("NoLabels", func(t *testing.T) {
		cfg, err := checkpoint.LoadConfig(writeFile(t, dir, "a.json", `{"vocab_size": 100}`))
		require.NoError(t, err)
		labels, err := cfg.Labels()
		require.NoError(t, err)
		assert.Equal(t, checkpoint.DefaultLabels, labels)
	})

	t.Run("NumLabelsOnly", func(t *testing.T) {
		cfg, err := checkpoint.LoadConfig(writeFile(t, dir, "b.json", `{"vocab_size": 100, "num_labels": 2}`))
		require.NoError(t, err)
		labels, err := cfg.Labels()
		require.NoError(t, err)
		assert.Equal(t, []string{"LABEL_0", "LABEL_1"}, labels)
	})
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := checkpoint.LoadConfig(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)

	_, err = checkpoint.LoadConfig(writeFile(t, dir, "bad.json", `{not json`))
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointIncompatible)

	_, err = checkpoint.LoadConfig(writeFile(t, dir, "novocab.json", `{"hidden_size": 768}`))
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointIncompatible)

	_, err = checkpoint.LoadConfig(writeFile(t, dir, "gap.json", `{"vocab_size": 10, "id2label": {"0": "a", "2": "b"}}`))
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointIncompatible)

	_, err = checkpoint.LoadConfig(writeFile(t, dir, "count.json", `{"vocab_size": 10, "num_labels": 2, "id2label": {"0": "a", "1": "b", "2": "c"}}`))
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointIncompatible)
}

func TestDirLayout(t *testing.T) {
	dir := t.TempDir()
	d := checkpoint.Dir(dir)

	_, err := d.WeightsPath()
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
	_, _, err = d.TokenizerPath()
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)

	writeFile(t, dir, checkpoint.PytorchWeightsFile, "weights")
	writeFile(t, dir, checkpoint.VocabFile, "[PAD]\n")

	weights, err := d.WeightsPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, checkpoint.PytorchWeightsFile), weights)

	path, kind, err := d.TokenizerPath()
	require.NoError(t, err)
	assert.Equal(t, checkpoint.TokenizerWordPiece, kind)
	assert.Equal(t, filepath.Join(dir, checkpoint.VocabFile), path)

	writeFile(t, dir, checkpoint.TokenizerFile, "{}")
	_, kind, err = d.TokenizerPath()
	require.NoError(t, err)
	assert.Equal(t, checkpoint.TokenizerHF, kind)

	writeFile(t, dir, checkpoint.SafetensorsFile, "weights")
	weights, err = d.WeightsPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, checkpoint.SafetensorsFile), weights)

	_, err = d.RequireFile(checkpoint.DefaultModelFile)
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
}
