package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Report is written next to the artifact after every successful export.
type Report struct {
	RunId       uuid.UUID `json:"run_id"`
	Checkpoint  string    `json:"checkpoint"`
	WeightsPath string    `json:"weights_path"`
	OutputPath  string    `json:"output_path"`
	ReportPath  string    `json:"report_path"`
	PublishedTo string    `json:"published_to,omitempty"`

	OpsetVersion      int      `json:"opset_version"`
	DoConstantFolding bool     `json:"do_constant_folding"`
	Strict            bool     `json:"strict"`
	Labels            []string `json:"labels"`

	Artifact *ArtifactInfo `json:"artifact,omitempty"`

	MissingKeys         []string `json:"missing_keys"`
	UnexpectedKeys      []string `json:"unexpected_keys"`
	TraceOutputShape    []int64  `json:"trace_output_shape"`
	ValidateOutputShape []int64  `json:"validate_output_shape,omitempty"`
	ArtifactSizeBytes   int64    `json:"artifact_size_bytes"`

	StartTime  time.Time `json:"start_time"`
	DurationMs int64     `json:"duration_ms"`
}

func (r *Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding export report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing export report %s: %w", path, err)
	}
	return nil
}

func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading export report %s: %w", path, err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("error decoding export report %s: %w", path, err)
	}
	return &report, nil
}
