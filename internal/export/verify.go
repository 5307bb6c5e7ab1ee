package export

import (
	"errors"
	"fmt"
	"slices"

	"finsent-backend/plugin/shared"
)

var ErrArtifactMismatch = errors.New("exported artifact does not match export configuration")

type TensorInfo struct {
	Name        string  `json:"name"`
	Shape       []int64 `json:"shape"`
	ElementType string  `json:"element_type"`
}

type ArtifactInfo struct {
	Inputs  []TensorInfo `json:"inputs"`
	Outputs []TensorInfo `json:"outputs"`
}

// Inspector opens an exported graph. Run executes one forward pass on the
// dummy batch and returns the shape of the first output.
type Inspector interface {
	Inspect(path string) (ArtifactInfo, error)

	Run(path string, inputNames, outputNames []string, dummy shared.DummyInput) ([]int64, error)
}

// CheckArtifact compares the declared graph signature against the export
// configuration: three int64 inputs of shape (batch, seq) in the configured
// order and one float output of shape (batch, numLabels).
func CheckArtifact(info ArtifactInfo, cfg Config, numLabels int) error {
	inputShape := []int64{int64(cfg.BatchSize), int64(cfg.SequenceLength)}
	outputShape := []int64{int64(cfg.BatchSize), int64(numLabels)}

	if len(info.Inputs) != len(cfg.InputNames) {
		return fmt.Errorf("%w: expected %d inputs, found %d", ErrArtifactMismatch, len(cfg.InputNames), len(info.Inputs))
	}
	for i, input := range info.Inputs {
		if input.Name != cfg.InputNames[i] {
			return fmt.Errorf("%w: input %d is named %q, expected %q", ErrArtifactMismatch, i, input.Name, cfg.InputNames[i])
		}
		if input.ElementType != "int64" {
			return fmt.Errorf("%w: input %q has element type %s, expected int64", ErrArtifactMismatch, input.Name, input.ElementType)
		}
		if !slices.Equal(input.Shape, inputShape) {
			return fmt.Errorf("%w: input %q has shape %v, expected %v", ErrArtifactMismatch, input.Name, input.Shape, inputShape)
		}
	}

	if len(info.Outputs) != len(cfg.OutputNames) {
		return fmt.Errorf("%w: expected %d outputs, found %d", ErrArtifactMismatch, len(cfg.OutputNames), len(info.Outputs))
	}
	for i, output := range info.Outputs {
		if output.Name != cfg.OutputNames[i] {
			return fmt.Errorf("%w: output %d is named %q, expected %q", ErrArtifactMismatch, i, output.Name, cfg.OutputNames[i])
		}
		if output.ElementType != "float32" {
			return fmt.Errorf("%w: output %q has element type %s, expected float32", ErrArtifactMismatch, output.Name, output.ElementType)
		}
		if !slices.Equal(output.Shape, outputShape) {
			return fmt.Errorf("%w: output %q has shape %v, expected %v", ErrArtifactMismatch, output.Name, output.Shape, outputShape)
		}
	}

	return nil
}
