package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	ConfigFile         = "config.json"
	VocabFile          = "vocab.txt"
	TokenizerFile      = "tokenizer.json"
	PytorchWeightsFile = "pytorch_model.bin"
	SafetensorsFile    = "model.safetensors"
	DefaultModelFile   = "model.onnx"
)

// Dir is a local checkpoint directory laid out the way HuggingFace
// save_pretrained writes it, plus the exported ONNX graph.
type Dir string

func (d Dir) Path(name string) string {
	return filepath.Join(string(d), name)
}

func (d Dir) ConfigPath() string {
	return d.Path(ConfigFile)
}

// WeightsPath prefers safetensors over the pickled torch weights when both
// are present.
func (d Dir) WeightsPath() (string, error) {
	for _, name := range []string{SafetensorsFile, PytorchWeightsFile} {
		path := d.Path(name)
		if exists(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no %s or %s in %s", ErrCheckpointNotFound, SafetensorsFile, PytorchWeightsFile, d)
}

type TokenizerKind string

const (
	TokenizerWordPiece TokenizerKind = "wordpiece"
	TokenizerHF        TokenizerKind = "huggingface"
)

// TokenizerPath returns tokenizer.json when the checkpoint ships one and
// falls back to the WordPiece vocabulary otherwise.
func (d Dir) TokenizerPath() (string, TokenizerKind, error) {
	if path := d.Path(TokenizerFile); exists(path) {
		return path, TokenizerHF, nil
	}
	if path := d.Path(VocabFile); exists(path) {
		return path, TokenizerWordPiece, nil
	}
	return "", "", fmt.Errorf("%w: no %s or %s in %s", ErrCheckpointNotFound, TokenizerFile, VocabFile, d)
}

func (d Dir) RequireFile(name string) (string, error) {
	path := d.Path(name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s does not exist", ErrCheckpointNotFound, path)
		}
		return "", fmt.Errorf("error checking %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrCheckpointNotFound, path)
	}
	return path, nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
