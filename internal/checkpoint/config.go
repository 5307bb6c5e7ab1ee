package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
)

var (
	ErrCheckpointNotFound     = errors.New("checkpoint not found")
	ErrCheckpointIncompatible = errors.New("checkpoint incompatible with model architecture")
)

// DefaultLabels is the label order of the FinBERT-tone checkpoint. It is used
// when a config.json carries no id2label mapping.
var DefaultLabels = []string{"Neutral", "Positive", "Negative"}

// Config is the subset of a HuggingFace BertConfig the service relies on.
type Config struct {
	Architectures         []string          `json:"architectures,omitempty"`
	ModelType             string            `json:"model_type,omitempty"`
	VocabSize             int               `json:"vocab_size"`
	HiddenSize            int               `json:"hidden_size"`
	NumHiddenLayers       int               `json:"num_hidden_layers"`
	NumAttentionHeads     int               `json:"num_attention_heads"`
	MaxPositionEmbeddings int               `json:"max_position_embeddings"`
	TypeVocabSize         int               `json:"type_vocab_size"`
	NumLabels             int               `json:"num_labels,omitempty"`
	Id2Label              map[string]string `json:"id2label,omitempty"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: config %s does not exist", ErrCheckpointNotFound, path)
		}
		return nil, fmt.Errorf("error reading checkpoint config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: malformed config %s: %v", ErrCheckpointIncompatible, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCheckpointIncompatible, path, err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.VocabSize <= 0 {
		return fmt.Errorf("vocab_size must be positive, got %d", c.VocabSize)
	}
	if c.MaxPositionEmbeddings < 0 {
		return fmt.Errorf("max_position_embeddings must not be negative, got %d", c.MaxPositionEmbeddings)
	}
	if c.NumLabels > 0 && len(c.Id2Label) > 0 && c.NumLabels != len(c.Id2Label) {
		return fmt.Errorf("num_labels is %d but id2label has %d entries", c.NumLabels, len(c.Id2Label))
	}
	if _, err := c.Labels(); err != nil {
		return err
	}
	return nil
}

// Labels returns class names ordered by logit index.
func (c *Config) Labels() ([]string, error) {
	if len(c.Id2Label) == 0 {
		n := c.NumLabels
		if n == 0 || n == len(DefaultLabels) {
			return append([]string(nil), DefaultLabels...), nil
		}
		labels := make([]string, n)
		for i := range labels {
			labels[i] = fmt.Sprintf("LABEL_%d", i)
		}
		return labels, nil
	}

	ids := make([]int, 0, len(c.Id2Label))
	byId := make(map[int]string, len(c.Id2Label))
	for key, label := range c.Id2Label {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("invalid id2label key %q", key)
		}
		ids = append(ids, id)
		byId[id] = label
	}
	sort.Ints(ids)

	labels := make([]string, len(ids))
	for i, id := range ids {
		if id != i {
			return nil, fmt.Errorf("id2label keys must be contiguous from 0, missing %d", i)
		}
		labels[i] = byId[id]
	}
	return labels, nil
}

func (c *Config) ResolvedNumLabels() int {
	labels, err := c.Labels()
	if err != nil {
		return c.NumLabels
	}
	return len(labels)
}
