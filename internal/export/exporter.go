package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"finsent-backend/internal/checkpoint"
	"finsent-backend/internal/database"
	"finsent-backend/internal/storage"
	"finsent-backend/plugin/shared"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

var (
	ErrExportTargetUnwritable = errors.New("export target unwritable")
	ErrOutputShapeMismatch    = errors.New("unexpected model output shape")
)

type Step string

const (
	StepLoadConfig  Step = "load checkpoint config"
	StepCheckTarget Step = "check export target"
	StepTrace       Step = "trace and export graph"
	StepVerify      Step = "verify artifact"
	StepPublish     Step = "publish artifact"
	StepReport      Step = "write report"
)

// Steps lists every step Run may report, in order.
var Steps = []Step{StepLoadConfig, StepCheckTarget, StepTrace, StepVerify, StepPublish, StepReport}

type Exporter struct {
	backend   shared.Exporter
	inspector Inspector
	publisher storage.Provider
	db        *gorm.DB
	onStep    func(Step)
}

type Option func(*Exporter)

// WithInspector enables artifact verification after tracing.
func WithInspector(inspector Inspector) Option {
	return func(e *Exporter) {
		e.inspector = inspector
	}
}

// WithPublisher sets the object store used for Config.PublishURI.
func WithPublisher(provider storage.Provider) Option {
	return func(e *Exporter) {
		e.publisher = provider
	}
}

// WithDatabase records every run in the export_runs table.
func WithDatabase(db *gorm.DB) Option {
	return func(e *Exporter) {
		e.db = db
	}
}

func WithProgress(onStep func(Step)) Option {
	return func(e *Exporter) {
		e.onStep = onStep
	}
}

func NewExporter(backend shared.Exporter, opts ...Option) *Exporter {
	e := &Exporter{backend: backend}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exporter) step(s Step) {
	slog.Info("export step", "step", string(s))
	if e.onStep != nil {
		e.onStep(s)
	}
}

// Run exports the checkpoint described by cfg to a single ONNX file.
// Checkpoint problems are reported as ErrCheckpointNotFound or
// ErrCheckpointIncompatible, an output location that cannot be written as
// ErrExportTargetUnwritable.
func (e *Exporter) Run(ctx context.Context, cfg Config) (*Report, error) {
	start := time.Now()

	e.step(StepLoadConfig)
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	ckptCfg, err := checkpoint.LoadConfig(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	labels, err := ckptCfg.Labels()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", checkpoint.ErrCheckpointIncompatible, err)
	}
	if ckptCfg.MaxPositionEmbeddings > 0 && cfg.SequenceLength > ckptCfg.MaxPositionEmbeddings {
		return nil, fmt.Errorf("%w: sequence_length %d exceeds max_position_embeddings %d",
			checkpoint.ErrCheckpointIncompatible, cfg.SequenceLength, ckptCfg.MaxPositionEmbeddings)
	}

	var publishTo storage.Location
	if cfg.PublishURI != "" {
		if e.publisher == nil {
			return nil, fmt.Errorf("publish_uri %s is set but no object store is configured", cfg.PublishURI)
		}
		if publishTo, err = storage.ParseURI(cfg.PublishURI); err != nil {
			return nil, err
		}
	}

	e.step(StepCheckTarget)
	if err := checkWritable(cfg.OutputPath); err != nil {
		return nil, err
	}
	if err := checkWritable(cfg.ReportPath); err != nil {
		return nil, err
	}

	report := &Report{
		RunId:             uuid.New(),
		Checkpoint:        cfg.ConfigPath,
		WeightsPath:       cfg.WeightsPath,
		OutputPath:        cfg.OutputPath,
		ReportPath:        cfg.ReportPath,
		OpsetVersion:      cfg.OpsetVersion,
		DoConstantFolding: cfg.DoConstantFolding,
		Strict:            cfg.Strict,
		Labels:            labels,
		StartTime:         start.UTC(),
	}

	e.recordStart(ctx, report.RunId, cfg)

	err = e.run(ctx, cfg, len(labels), ckptCfg.VocabSize, publishTo, report)
	report.DurationMs = time.Since(start).Milliseconds()

	e.recordOutcome(ctx, report, err)

	if err != nil {
		return nil, err
	}

	slog.Info("export completed", "output", cfg.OutputPath, "report", cfg.ReportPath, "duration_ms", report.DurationMs)
	return report, nil
}

func (e *Exporter) run(ctx context.Context, cfg Config, numLabels, vocabSize int, publishTo storage.Location, report *Report) error {
	// The graph is traced into a staging file next to the output and only
	// replaces cfg.OutputPath once every check has passed.
	staging, err := stagingPath(cfg.OutputPath)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			if err := os.Remove(staging); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Warn("error removing staged artifact", "path", staging, "error", err)
			}
		}
	}()

	e.step(StepTrace)
	dummy := NewDummyInput(cfg.BatchSize, cfg.SequenceLength, vocabSize, cfg.Seed)

	result, err := e.backend.Export(ctx, shared.ExportRequest{
		ConfigPath:        cfg.ConfigPath,
		WeightsPath:       cfg.WeightsPath,
		OutputPath:        staging,
		NumLabels:         numLabels,
		OpsetVersion:      cfg.OpsetVersion,
		DoConstantFolding: cfg.DoConstantFolding,
		Strict:            cfg.Strict,
		InputNames:        cfg.InputNames,
		OutputNames:       cfg.OutputNames,
		Dummy:             dummy,
	})
	if err != nil {
		return classifyBackendError(err)
	}

	report.MissingKeys = result.MissingKeys
	report.UnexpectedKeys = result.UnexpectedKeys
	report.TraceOutputShape = result.OutputShape

	for _, key := range result.MissingKeys {
		slog.Warn("model parameter not found in checkpoint, left at initialization", "key", key)
	}
	for _, key := range result.UnexpectedKeys {
		slog.Warn("checkpoint weight has no matching model parameter, skipped", "key", key)
	}
	if cfg.Strict && (len(result.MissingKeys) > 0 || len(result.UnexpectedKeys) > 0) {
		return fmt.Errorf("%w: %d missing and %d unexpected keys with strict loading",
			checkpoint.ErrCheckpointIncompatible, len(result.MissingKeys), len(result.UnexpectedKeys))
	}

	expected := []int64{int64(cfg.BatchSize), int64(numLabels)}
	if !slices.Equal(result.OutputShape, expected) {
		return fmt.Errorf("%w: traced output has shape %v, expected %v", ErrOutputShapeMismatch, result.OutputShape, expected)
	}

	info, err := os.Stat(staging)
	if err != nil {
		return fmt.Errorf("%w: artifact %s was not written: %v", ErrExportTargetUnwritable, staging, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: artifact %s is empty", ErrExportTargetUnwritable, staging)
	}
	report.ArtifactSizeBytes = info.Size()

	if e.inspector != nil && !cfg.SkipVerify {
		e.step(StepVerify)
		if err := e.verify(staging, cfg, numLabels, dummy, report); err != nil {
			return err
		}
	}

	if err := os.Rename(staging, cfg.OutputPath); err != nil {
		return fmt.Errorf("%w: %v", ErrExportTargetUnwritable, err)
	}
	committed = true

	if cfg.PublishURI != "" {
		e.step(StepPublish)
		if err := storage.UploadFile(ctx, e.publisher, publishTo, cfg.OutputPath); err != nil {
			return fmt.Errorf("error publishing artifact: %w", err)
		}
		report.PublishedTo = publishTo.String()
	}

	e.step(StepReport)
	return report.Write(cfg.ReportPath)
}

func stagingPath(output string) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(output), ".model-*.onnx")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExportTargetUnwritable, err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("%w: %v", ErrExportTargetUnwritable, err)
	}
	return name, nil
}

// classifyBackendError maps the status codes the exporter plugin aborts with
// onto the export error kinds.
func classifyBackendError(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", checkpoint.ErrCheckpointNotFound, status.Convert(err).Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", checkpoint.ErrCheckpointIncompatible, status.Convert(err).Message())
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrExportTargetUnwritable, status.Convert(err).Message())
	}
	return fmt.Errorf("error exporting graph: %w", err)
}

func (e *Exporter) verify(artifact string, cfg Config, numLabels int, dummy shared.DummyInput, report *Report) error {
	info, err := e.inspector.Inspect(artifact)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactMismatch, err)
	}
	report.Artifact = &info

	if err := CheckArtifact(info, cfg, numLabels); err != nil {
		return err
	}

	shape, err := e.inspector.Run(artifact, cfg.InputNames, cfg.OutputNames, dummy)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactMismatch, err)
	}
	report.ValidateOutputShape = shape

	expected := []int64{int64(cfg.BatchSize), int64(numLabels)}
	if !slices.Equal(shape, expected) {
		return fmt.Errorf("%w: artifact output has shape %v, expected %v", ErrOutputShapeMismatch, shape, expected)
	}

	return nil
}

func (e *Exporter) recordStart(ctx context.Context, runId uuid.UUID, cfg Config) {
	if e.db == nil {
		return
	}

	run := database.ExportRun{
		Id:           runId,
		Checkpoint:   cfg.ConfigPath,
		OutputPath:   cfg.OutputPath,
		PublishUri:   sql.NullString{String: cfg.PublishURI, Valid: cfg.PublishURI != ""},
		OpsetVersion: cfg.OpsetVersion,
		Strict:       cfg.Strict,
	}
	if err := database.CreateExportRun(ctx, e.db, &run); err != nil {
		slog.Error("error recording export run", "run_id", runId, "error", err)
	}
}

func (e *Exporter) recordOutcome(ctx context.Context, report *Report, runErr error) {
	if e.db == nil {
		return
	}

	outcome := database.ExportOutcome{
		MissingKeys:    report.MissingKeys,
		UnexpectedKeys: report.UnexpectedKeys,
		OutputShape:    report.TraceOutputShape,
		Err:            runErr,
	}
	if err := database.CompleteExportRun(ctx, e.db, report.RunId, outcome); err != nil {
		slog.Error("error completing export run", "run_id", report.RunId, "error", err)
	}
}

// checkWritable creates the parent directory of path and probes it with a
// temporary file, so an unwritable target fails before any tracing work.
func checkWritable(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("%w: %v", ErrExportTargetUnwritable, err)
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrExportTargetUnwritable, path)
	}

	probe, err := os.CreateTemp(dir, ".export-probe-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExportTargetUnwritable, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}
