package config

import (
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"finsent-backend/internal/core"
	"finsent-backend/internal/storage"

	"github.com/caarlos0/env/v11"
)

type S3Config struct {
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
}

func (c S3Config) ProviderConfig() storage.S3ProviderConfig {
	if c.S3EndpointURL != "" && (c.S3AccessKeyID == "" || c.S3SecretAccessKey == "") {
		log.Println("Warning: S3_ENDPOINT_URL is set, but AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY are missing.")
	}
	return storage.S3ProviderConfig{
		S3EndpointURL:     c.S3EndpointURL,
		S3AccessKeyID:     c.S3AccessKeyID,
		S3SecretAccessKey: c.S3SecretAccessKey,
		S3Region:          c.S3Region,
	}
}

type OnnxConfig struct {
	OnnxRuntimeDylib  string `env:"ONNX_RUNTIME_DYLIB"`
	IntraOpNumThreads int    `env:"ONNXRUNTIME_INTRA_OP_NUM_THREADS" envDefault:"0"`
	InterOpNumThreads int    `env:"ONNXRUNTIME_INTER_OP_NUM_THREADS" envDefault:"0"`
	CUDADeviceID      string `env:"ONNXRUNTIME_CUDA_DEVICE_ID"`
}

func (c OnnxConfig) Runtime() core.OnnxConfig {
	return core.OnnxConfig{
		SharedLibraryPath: c.OnnxRuntimeDylib,
		IntraOpNumThreads: c.IntraOpNumThreads,
		InterOpNumThreads: c.InterOpNumThreads,
		CUDADeviceID:      c.CUDADeviceID,
	}
}

type ServingConfig struct {
	CheckpointDir   string `env:"CHECKPOINT_DIR" envDefault:"./models/finbert-tone"`
	CheckpointS3URI string `env:"CHECKPOINT_S3_URI"`
	ModelFile       string `env:"MODEL_FILE" envDefault:"model.onnx"`

	MaxSequenceLength    int           `env:"MAX_SEQUENCE_LENGTH" envDefault:"256"`
	Lowercase            bool          `env:"LOWERCASE" envDefault:"true"`
	InferenceConcurrency int64         `env:"INFERENCE_CONCURRENCY" envDefault:"1"`
	ResultCacheBytes     int           `env:"RESULT_CACHE_BYTES" envDefault:"0"`
	ResultCacheTTL       time.Duration `env:"RESULT_CACHE_TTL" envDefault:"1h"`

	DatabaseURL    string        `env:"DATABASE_URL"`
	APIPort        string        `env:"API_PORT" envDefault:"8001"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	EnableMetrics  bool          `env:"ENABLE_METRICS" envDefault:"true"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`

	Onnx OnnxConfig
	S3   S3Config
}

func (c ServingConfig) Pipeline() core.PipelineConfig {
	return core.PipelineConfig{
		CheckpointDir:     c.CheckpointDir,
		ModelFile:         c.ModelFile,
		MaxSequenceLength: c.MaxSequenceLength,
		Lowercase:         c.Lowercase,
		Concurrency:       c.InferenceConcurrency,
		ResultCacheBytes:  c.ResultCacheBytes,
		ResultCacheTTL:    c.ResultCacheTTL,
	}
}

type ExportConfig struct {
	CheckpointS3URI  string `env:"CHECKPOINT_S3_URI"`
	DatabaseURL      string `env:"DATABASE_URL"`
	PythonExecutable string `env:"PYTHON_EXECUTABLE" envDefault:"python3"`
	PluginScript     string `env:"EXPORT_PLUGIN_SCRIPT" envDefault:"plugin/plugin-python/exporter.py"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`

	Onnx OnnxConfig
	S3   S3Config
}

func LoadServingConfig() (ServingConfig, error) {
	var cfg ServingConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config: %w", err)
	}
	if cfg.InferenceConcurrency < 1 {
		return cfg, fmt.Errorf("INFERENCE_CONCURRENCY must be at least 1, got %d", cfg.InferenceConcurrency)
	}
	if cfg.MaxSequenceLength < 2 {
		return cfg, fmt.Errorf("MAX_SEQUENCE_LENGTH must be at least 2, got %d", cfg.MaxSequenceLength)
	}
	return cfg, nil
}

func LoadExportConfig() (ExportConfig, error) {
	var cfg ExportConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config: %w", err)
	}
	return cfg, nil
}

func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level '%s'", level)
}
