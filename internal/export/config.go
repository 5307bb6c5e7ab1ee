package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"finsent-backend/internal/checkpoint"

	"gopkg.in/yaml.v2"
)

// Config describes one export run. Shapes are fixed: the graph is traced
// without dynamic axes, so every input is (BatchSize, SequenceLength).
type Config struct {
	CheckpointDir string `yaml:"checkpoint_dir"`
	ConfigPath    string `yaml:"config_path"`
	WeightsPath   string `yaml:"weights_path"`
	OutputPath    string `yaml:"output_path"`

	BatchSize         int      `yaml:"batch_size"`
	SequenceLength    int      `yaml:"sequence_length"`
	OpsetVersion      int      `yaml:"opset_version"`
	DoConstantFolding bool     `yaml:"do_constant_folding"`
	Strict            bool     `yaml:"strict"`
	InputNames        []string `yaml:"input_names"`
	OutputNames       []string `yaml:"output_names"`
	Seed              int64    `yaml:"seed"`

	ReportPath string `yaml:"report_path"`
	PublishURI string `yaml:"publish_uri"`
	SkipVerify bool   `yaml:"skip_verify"`
}

func DefaultConfig() Config {
	return Config{
		BatchSize:         1,
		SequenceLength:    256,
		OpsetVersion:      11,
		DoConstantFolding: false,
		Strict:            false,
		InputNames:        []string{"input_ids", "attention_mask", "token_type_ids"},
		OutputNames:       []string{"logits"},
		Seed:              42,
	}
}

// LoadConfig reads a YAML export configuration on top of DefaultConfig.
// Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("error reading export config %s: %w", path, err)
	}

	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing export config %s: %w", path, err)
	}

	return cfg, nil
}

// Resolve fills the paths derived from CheckpointDir and validates the
// result. Missing checkpoint files are reported with ErrCheckpointNotFound.
func (c *Config) Resolve() error {
	dir := checkpoint.Dir(c.CheckpointDir)

	if c.ConfigPath == "" {
		if c.CheckpointDir == "" {
			return errors.New("either checkpoint_dir or config_path must be set")
		}
		c.ConfigPath = dir.ConfigPath()
	}
	if c.CheckpointDir == "" {
		dir = checkpoint.Dir(filepath.Dir(c.ConfigPath))
	}

	if c.WeightsPath == "" {
		path, err := dir.WeightsPath()
		if err != nil {
			return err
		}
		c.WeightsPath = path
	} else if _, err := os.Stat(c.WeightsPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: weights %s do not exist", checkpoint.ErrCheckpointNotFound, c.WeightsPath)
		}
		return fmt.Errorf("error checking weights %s: %w", c.WeightsPath, err)
	}

	if c.OutputPath == "" {
		c.OutputPath = dir.Path(checkpoint.DefaultModelFile)
	}
	if c.ReportPath == "" {
		c.ReportPath = strings.TrimSuffix(c.OutputPath, filepath.Ext(c.OutputPath)) + ".report.json"
	}

	return c.Validate()
}

func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.SequenceLength < 2 {
		return fmt.Errorf("sequence_length must be at least 2, got %d", c.SequenceLength)
	}
	if c.OpsetVersion <= 0 {
		return fmt.Errorf("opset_version must be positive, got %d", c.OpsetVersion)
	}
	if len(c.InputNames) != 3 {
		return fmt.Errorf("expected 3 input names (ids, mask, token types), got %d", len(c.InputNames))
	}
	if len(c.OutputNames) != 1 {
		return fmt.Errorf("expected 1 output name, got %d", len(c.OutputNames))
	}

	names := append(slices.Clone(c.InputNames), c.OutputNames...)
	for i, name := range names {
		if name == "" {
			return errors.New("input and output names must not be empty")
		}
		if slices.Contains(names[:i], name) {
			return fmt.Errorf("duplicate tensor name %q", name)
		}
	}

	return nil
}
