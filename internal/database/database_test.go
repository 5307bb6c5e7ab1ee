package database_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"finsent-backend/internal/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())
	return db
}

func TestRecordAndListAnalyses(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	records := []database.Analysis{
		{TextHash: "a", Label: "Positive", Score: 0.9, Polarity: 0.8, CreationTime: base},
		{TextHash: "b", Label: "Negative", Score: 0.7, Polarity: -0.6, CreationTime: base.Add(time.Minute), Symbol: sql.NullString{String: "ACME", Valid: true}},
		{TextHash: "c", Label: "Positive", Score: 0.6, Polarity: 0.3, CreationTime: base.Add(2 * time.Minute), Symbol: sql.NullString{String: "ACME", Valid: true}},
	}
	for i := range records {
		require.NoError(t, database.RecordAnalysis(ctx, db, &records[i]))
		assert.NotEqual(t, uuid.Nil, records[i].Id)
	}

	all, err := database.ListAnalyses(ctx, db, database.AnalysisFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].TextHash, "most recent first")

	positive, err := database.ListAnalyses(ctx, db, database.AnalysisFilter{Label: "Positive"})
	require.NoError(t, err)
	assert.Len(t, positive, 2)

	acme, err := database.ListAnalyses(ctx, db, database.AnalysisFilter{Symbol: "ACME", Limit: 1})
	require.NoError(t, err)
	require.Len(t, acme, 1)
	assert.Equal(t, "c", acme[0].TextHash)

	recent, err := database.ListAnalyses(ctx, db, database.AnalysisFilter{Since: base.Add(90 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestSentimentTrend(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()
	today := time.Now().UTC().Truncate(24 * time.Hour)
	yesterday := today.AddDate(0, 0, -1)
	acme := sql.NullString{String: "ACME", Valid: true}

	records := []database.Analysis{
		{TextHash: "a", Symbol: acme, Label: "Positive", Score: 0.9, Polarity: 0.8, CreationTime: yesterday.Add(time.Hour)},
		{TextHash: "b", Symbol: acme, Label: "Negative", Score: 0.7, Polarity: -0.6, CreationTime: yesterday.Add(2 * time.Hour)},
		{TextHash: "c", Symbol: acme, Label: "Positive", Score: 0.5, Polarity: 0.4, CreationTime: today.Add(time.Minute)},
		{TextHash: "d", Symbol: acme, Label: "Negative", Score: 0.9, Polarity: -0.9, CreationTime: today.AddDate(0, 0, -10)},
		{TextHash: "e", Symbol: sql.NullString{String: "OTHR", Valid: true}, Label: "Negative", Score: 0.9, Polarity: -0.9, CreationTime: today.Add(time.Minute)},
	}
	for i := range records {
		require.NoError(t, database.RecordAnalysis(ctx, db, &records[i]))
	}

	trend, err := database.SentimentTrend(ctx, db, "ACME", yesterday)
	require.NoError(t, err)
	require.Len(t, trend, 2)

	assert.True(t, trend[0].Day.Equal(yesterday))
	assert.Equal(t, 2, trend[0].Count)
	assert.InDelta(t, 0.1, trend[0].AvgPolarity, 1e-9)
	assert.InDelta(t, 0.8, trend[0].AvgScore, 1e-9)
	assert.Equal(t, map[string]int{"Positive": 1, "Negative": 1}, trend[0].LabelCounts)

	assert.True(t, trend[1].Day.Equal(today))
	assert.Equal(t, 1, trend[1].Count)
	assert.Equal(t, map[string]int{"Positive": 1}, trend[1].LabelCounts)

	none, err := database.SentimentTrend(ctx, db, "NONE", yesterday)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestExportRunLifecycle(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	run := database.ExportRun{Checkpoint: "finbert-tone", OutputPath: "model.onnx", OpsetVersion: 11}
	require.NoError(t, database.CreateExportRun(ctx, db, &run))
	assert.Equal(t, database.ExportRunning, run.Status)

	require.NoError(t, database.CompleteExportRun(ctx, db, run.Id, database.ExportOutcome{
		MissingKeys: []string{"classifier.bias"},
		OutputShape: []int64{1, 3},
	}))

	saved, err := database.GetExportRun(ctx, db, run.Id)
	require.NoError(t, err)
	assert.Equal(t, database.ExportCompleted, saved.Status)
	assert.True(t, saved.CompletionTime.Valid)
	assert.False(t, saved.Error.Valid)

	var missing []string
	require.NoError(t, json.Unmarshal(saved.MissingKeys, &missing))
	assert.Equal(t, []string{"classifier.bias"}, missing)

	var shape []int64
	require.NoError(t, json.Unmarshal(saved.OutputShape, &shape))
	assert.Equal(t, []int64{1, 3}, shape)

	failed := database.ExportRun{Checkpoint: "finbert-tone", OutputPath: "model.onnx"}
	require.NoError(t, database.CreateExportRun(ctx, db, &failed))
	require.NoError(t, database.CompleteExportRun(ctx, db, failed.Id, database.ExportOutcome{Err: errors.New("output shape mismatch")}))

	saved, err = database.GetExportRun(ctx, db, failed.Id)
	require.NoError(t, err)
	assert.Equal(t, database.ExportFailed, saved.Status)
	assert.Equal(t, "output shape mismatch", saved.Error.String)
}

func TestNewDatabaseSqlite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "finsent.db")

	db, err := database.NewDatabase("sqlite://" + path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", db.Dialector.Name())

	assert.True(t, db.Migrator().HasTable(&database.Analysis{}))
	assert.True(t, db.Migrator().HasTable(&database.ExportRun{}))

	_, err = database.NewDatabase("")
	assert.Error(t, err)
}

func TestMigrationRollback(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	migrator := database.GetMigrator(db)
	require.NoError(t, migrator.Migrate())
	assert.True(t, db.Migrator().HasTable(&database.ExportRun{}))

	require.NoError(t, migrator.RollbackLast())
	assert.False(t, db.Migrator().HasTable(&database.ExportRun{}))
	assert.True(t, db.Migrator().HasTable(&database.Analysis{}))
}
