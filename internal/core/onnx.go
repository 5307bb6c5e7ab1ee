package core

import (
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	initOnce sync.Once
	initErr  error
)

var (
	InputNames  = []string{"input_ids", "attention_mask", "token_type_ids"}
	OutputNames = []string{"logits"}
)

type OnnxConfig struct {
	SharedLibraryPath string
	IntraOpNumThreads int
	InterOpNumThreads int
	CUDADeviceID      string
	NumLabels         int
}

// InitOnnxRuntime loads the onnxruntime shared library. Only the first call
// has any effect; later calls return the first call's result.
func InitOnnxRuntime(sharedLibraryPath string) error {
	initOnce.Do(func() {
		if sharedLibraryPath != "" {
			ort.SetSharedLibraryPath(sharedLibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			initErr = fmt.Errorf("failed to initialize onnxruntime: %w", err)
			return
		}
		slog.Info("onnxruntime initialized", "shared_library", sharedLibraryPath)
	})
	return initErr
}

func NewSessionOptions(cfg OnnxConfig) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}

	if cfg.IntraOpNumThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.IntraOpNumThreads); err != nil {
			options.Destroy()
			return nil, fmt.Errorf("error setting intra op threads: %w", err)
		}
	}

	if cfg.InterOpNumThreads > 0 {
		if err := options.SetInterOpNumThreads(cfg.InterOpNumThreads); err != nil {
			options.Destroy()
			return nil, fmt.Errorf("error setting inter op threads: %w", err)
		}
	}

	if cfg.CUDADeviceID != "" {
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			options.Destroy()
			return nil, fmt.Errorf("error creating cuda provider options: %w", err)
		}
		defer cuda.Destroy()

		if err := cuda.Update(map[string]string{"device_id": cfg.CUDADeviceID}); err != nil {
			options.Destroy()
			return nil, fmt.Errorf("error configuring cuda device %s: %w", cfg.CUDADeviceID, err)
		}
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			options.Destroy()
			return nil, fmt.Errorf("error enabling cuda provider: %w", err)
		}
	}

	return options, nil
}

type OnnxModel struct {
	session   *ort.DynamicAdvancedSession
	numLabels int
}

var _ Model = (*OnnxModel)(nil)

func LoadOnnxModel(path string, cfg OnnxConfig) (*OnnxModel, error) {
	if cfg.NumLabels <= 0 {
		return nil, fmt.Errorf("number of labels must be positive, got %d", cfg.NumLabels)
	}

	if err := InitOnnxRuntime(cfg.SharedLibraryPath); err != nil {
		return nil, err
	}

	options, err := NewSessionOptions(cfg)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(path, InputNames, OutputNames, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create onnx session for %s: %w", path, err)
	}

	return &OnnxModel{session: session, numLabels: cfg.NumLabels}, nil
}

func OnnxModelLoader(cfg OnnxConfig) ModelLoader {
	return func(path string, numLabels int) (Model, error) {
		cfg.NumLabels = numLabels
		return LoadOnnxModel(path, cfg)
	}
}

func (m *OnnxModel) Forward(enc Encoding) ([]float32, error) {
	shape := ort.NewShape(1, int64(enc.Len()))

	inputIds, err := ort.NewTensor(shape, enc.InputIds)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer inputIds.Destroy()

	attentionMask, err := ort.NewTensor(shape, enc.AttentionMask)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer attentionMask.Destroy()

	tokenTypeIds, err := ort.NewTensor(shape, enc.TokenTypeIds)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	defer tokenTypeIds.Destroy()

	logits, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(m.numLabels)))
	if err != nil {
		return nil, fmt.Errorf("failed to create logits tensor: %w", err)
	}
	defer logits.Destroy()

	if err := m.session.Run(
		[]ort.Value{inputIds, attentionMask, tokenTypeIds},
		[]ort.Value{logits},
	); err != nil {
		return nil, fmt.Errorf("session run error: %w", err)
	}

	out := make([]float32, m.numLabels)
	copy(out, logits.GetData())
	return out, nil
}

func (m *OnnxModel) Release() {
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
}

func DestroyOnnxRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}
