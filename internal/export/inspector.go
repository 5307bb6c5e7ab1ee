package export

import (
	"fmt"

	"finsent-backend/internal/core"
	"finsent-backend/plugin/shared"

	ort "github.com/yalue/onnxruntime_go"
)

// OnnxInspector verifies artifacts with the same onnxruntime build the
// serving process loads them with.
type OnnxInspector struct {
	cfg core.OnnxConfig
}

var _ Inspector = (*OnnxInspector)(nil)

func NewOnnxInspector(cfg core.OnnxConfig) (*OnnxInspector, error) {
	if err := core.InitOnnxRuntime(cfg.SharedLibraryPath); err != nil {
		return nil, err
	}
	return &OnnxInspector{cfg: cfg}, nil
}

func (i *OnnxInspector) Inspect(path string) (ArtifactInfo, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return ArtifactInfo{}, fmt.Errorf("error reading graph signature of %s: %w", path, err)
	}

	return ArtifactInfo{
		Inputs:  convertTensorInfo(inputs),
		Outputs: convertTensorInfo(outputs),
	}, nil
}

func (i *OnnxInspector) Run(path string, inputNames, outputNames []string, dummy shared.DummyInput) ([]int64, error) {
	options, err := core.NewSessionOptions(i.cfg)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(path, inputNames, outputNames, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create onnx session for %s: %w", path, err)
	}
	defer session.Destroy()

	batch := int64(len(dummy.InputIds))
	seqLen := int64(0)
	if batch > 0 {
		seqLen = int64(len(dummy.InputIds[0]))
	}
	shape := ort.NewShape(batch, seqLen)

	inputs := make([]ort.Value, 0, 3)
	defer func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}()
	for _, rows := range [][][]int64{dummy.InputIds, dummy.AttentionMask, dummy.TokenTypeIds} {
		tensor, err := ort.NewTensor(shape, flatten(rows))
		if err != nil {
			return nil, fmt.Errorf("failed to create input tensor: %w", err)
		}
		inputs = append(inputs, tensor)
	}

	// Nil outputs are allocated by onnxruntime with whatever shape the graph
	// produces.
	outputs := make([]ort.Value, len(outputNames))
	if err := session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("validation forward pass failed: %w", err)
	}
	defer func() {
		for _, v := range outputs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	if len(outputs) == 0 || outputs[0] == nil {
		return nil, fmt.Errorf("validation forward pass produced no output")
	}
	return []int64(outputs[0].GetShape()), nil
}

func convertTensorInfo(infos []ort.InputOutputInfo) []TensorInfo {
	out := make([]TensorInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, TensorInfo{
			Name:        info.Name,
			Shape:       []int64(info.Dimensions),
			ElementType: elementTypeName(info.DataType),
		})
	}
	return out
}

func elementTypeName(t ort.TensorElementDataType) string {
	switch t {
	case ort.TensorElementDataTypeInt64:
		return "int64"
	case ort.TensorElementDataTypeInt32:
		return "int32"
	case ort.TensorElementDataTypeFloat:
		return "float32"
	case ort.TensorElementDataTypeDouble:
		return "float64"
	case ort.TensorElementDataTypeFloat16:
		return "float16"
	}
	return fmt.Sprintf("type(%d)", int(t))
}
