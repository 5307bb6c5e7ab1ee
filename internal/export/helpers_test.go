package export_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"finsent-backend/internal/export"
	"finsent-backend/plugin/shared"

	"github.com/stretchr/testify/require"
)

const finbertConfig = `{
  "architectures": ["BertForSequenceClassification"],
  "model_type": "bert",
  "vocab_size": 30873,
  "hidden_size": 768,
  "num_hidden_layers": 12,
  "num_attention_heads": 12,
  "max_position_embeddings": 512,
  "type_vocab_size": 2,
  "id2label": {"0": "Neutral", "1": "Positive", "2": "Negative"}
}`

func writeCheckpoint(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(finbertConfig), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pytorch_model.bin"), []byte("weights"), 0o644))
	return dir
}

// fakeBackend writes a placeholder graph and reports the configured result.
type fakeBackend struct {
	result   shared.ExportResult
	err      error
	noWrite  bool
	requests []shared.ExportRequest
}

func (b *fakeBackend) Export(ctx context.Context, req shared.ExportRequest) (shared.ExportResult, error) {
	b.requests = append(b.requests, req)
	if b.err != nil {
		return shared.ExportResult{}, b.err
	}
	if !b.noWrite {
		if err := os.WriteFile(req.OutputPath, []byte("onnx graph"), 0o644); err != nil {
			return shared.ExportResult{}, err
		}
	}

	result := b.result
	if result.OutputShape == nil {
		result.OutputShape = []int64{int64(len(req.Dummy.InputIds)), int64(req.NumLabels)}
	}
	return result, nil
}

// fakeInspector reports a signature matching the default export config
// unless told otherwise.
type fakeInspector struct {
	info     *export.ArtifactInfo
	runShape []int64
	runErr   error
	runs     int
}

func (i *fakeInspector) Inspect(path string) (export.ArtifactInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return export.ArtifactInfo{}, err
	}
	if i.info != nil {
		return *i.info, nil
	}
	return matchingArtifact(1, 256, 3), nil
}

func (i *fakeInspector) Run(path string, inputNames, outputNames []string, dummy shared.DummyInput) ([]int64, error) {
	i.runs++
	if i.runErr != nil {
		return nil, i.runErr
	}
	if i.runShape != nil {
		return i.runShape, nil
	}
	if len(dummy.InputIds) == 0 {
		return nil, errors.New("empty dummy batch")
	}
	return []int64{int64(len(dummy.InputIds)), 3}, nil
}

func matchingArtifact(batch, seq, labels int64) export.ArtifactInfo {
	input := func(name string) export.TensorInfo {
		return export.TensorInfo{Name: name, Shape: []int64{batch, seq}, ElementType: "int64"}
	}
	output := export.TensorInfo{Name: "logits", Shape: []int64{batch, labels}, ElementType: "float32"}
	return export.ArtifactInfo{
		Inputs:  []export.TensorInfo{input("input_ids"), input("attention_mask"), input("token_type_ids")},
		Outputs: []export.TensorInfo{output},
	}
}
