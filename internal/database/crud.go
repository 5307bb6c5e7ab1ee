package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func RecordAnalysis(ctx context.Context, db *gorm.DB, analysis *Analysis) error {
	if analysis.Id == uuid.Nil {
		analysis.Id = uuid.New()
	}
	if analysis.CreationTime.IsZero() {
		analysis.CreationTime = time.Now().UTC()
	}

	if err := db.WithContext(ctx).Create(analysis).Error; err != nil {
		return fmt.Errorf("error saving analysis: %w", err)
	}
	return nil
}

type AnalysisFilter struct {
	Label  string
	Symbol string
	Since  time.Time
	Limit  int
}

// ListAnalyses returns the most recent analyses first.
func ListAnalyses(ctx context.Context, db *gorm.DB, filter AnalysisFilter) ([]Analysis, error) {
	query := db.WithContext(ctx).Order("creation_time DESC")
	if filter.Label != "" {
		query = query.Where("label = ?", filter.Label)
	}
	if filter.Symbol != "" {
		query = query.Where("symbol = ?", filter.Symbol)
	}
	if !filter.Since.IsZero() {
		query = query.Where("creation_time >= ?", filter.Since)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var analyses []Analysis
	if err := query.Find(&analyses).Error; err != nil {
		return nil, fmt.Errorf("error listing analyses: %w", err)
	}
	return analyses, nil
}

func CreateExportRun(ctx context.Context, db *gorm.DB, run *ExportRun) error {
	if run.Id == uuid.Nil {
		run.Id = uuid.New()
	}
	run.Status = ExportRunning
	run.CreationTime = time.Now().UTC()

	if err := db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("error creating export run: %w", err)
	}
	return nil
}

type ExportOutcome struct {
	MissingKeys    []string
	UnexpectedKeys []string
	OutputShape    []int64
	Err            error
}

func CompleteExportRun(ctx context.Context, db *gorm.DB, runId uuid.UUID, outcome ExportOutcome) error {
	status := ExportCompleted
	if outcome.Err != nil {
		status = ExportFailed
	}

	updates := map[string]any{
		"status":          status,
		"completion_time": time.Now().UTC(),
	}
	if outcome.Err != nil {
		updates["error"] = sql.NullString{String: outcome.Err.Error(), Valid: true}
	}

	for column, value := range map[string]any{
		"missing_keys":    outcome.MissingKeys,
		"unexpected_keys": outcome.UnexpectedKeys,
		"output_shape":    outcome.OutputShape,
	} {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("could not marshal %s: %w", column, err)
		}
		updates[column] = datatypes.JSON(data)
	}

	if err := db.WithContext(ctx).Model(&ExportRun{Id: runId}).Updates(updates).Error; err != nil {
		slog.Error("error updating export run", "run_id", runId, "status", status, "error", err)
		return err
	}
	return nil
}

func GetExportRun(ctx context.Context, db *gorm.DB, runId uuid.UUID) (ExportRun, error) {
	var run ExportRun
	if err := db.WithContext(ctx).First(&run, "id = ?", runId).Error; err != nil {
		return ExportRun{}, fmt.Errorf("error getting export run %s: %w", runId, err)
	}
	return run, nil
}

func GetAnalysis(ctx context.Context, db *gorm.DB, id uuid.UUID) (Analysis, error) {
	var analysis Analysis
	if err := db.WithContext(ctx).First(&analysis, "id = ?", id).Error; err != nil {
		return Analysis{}, fmt.Errorf("error getting analysis %s: %w", id, err)
	}
	return analysis, nil
}

// TrendBucket summarizes one UTC day of analyses for a symbol.
type TrendBucket struct {
	Day         time.Time
	Count       int
	AvgPolarity float64
	AvgScore    float64
	LabelCounts map[string]int
}

// SentimentTrend buckets the analyses of symbol recorded since the given time
// by UTC day, oldest first. Days without analyses are omitted.
func SentimentTrend(ctx context.Context, db *gorm.DB, symbol string, since time.Time) ([]TrendBucket, error) {
	var rows []Analysis
	err := db.WithContext(ctx).
		Select("label", "score", "polarity", "creation_time").
		Where("symbol = ? AND creation_time >= ?", symbol, since).
		Order("creation_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error loading sentiment trend for %s: %w", symbol, err)
	}

	buckets := make([]TrendBucket, 0)
	for _, row := range rows {
		day := row.CreationTime.UTC().Truncate(24 * time.Hour)
		if len(buckets) == 0 || !buckets[len(buckets)-1].Day.Equal(day) {
			buckets = append(buckets, TrendBucket{Day: day, LabelCounts: map[string]int{}})
		}
		b := &buckets[len(buckets)-1]
		b.Count++
		b.AvgPolarity += row.Polarity
		b.AvgScore += row.Score
		b.LabelCounts[row.Label]++
	}

	for i := range buckets {
		buckets[i].AvgPolarity /= float64(buckets[i].Count)
		buckets[i].AvgScore /= float64(buckets[i].Count)
	}
	return buckets, nil
}
