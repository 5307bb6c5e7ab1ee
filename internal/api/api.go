package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"finsent-backend/internal/core"
	"finsent-backend/internal/database"
	"finsent-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	defaultTrendDays = 7
	maxTrendDays     = 365
)

type Analyzer interface {
	Analyze(ctx context.Context, text string) (core.Prediction, error)
}

type BackendService struct {
	analyzer Analyzer
	model    core.ModelInfo
	db       *gorm.DB
	metrics  *Metrics
}

// NewBackendService builds the HTTP surface over a loaded pipeline. db and
// metrics are optional; without db analyses are not recorded.
func NewBackendService(analyzer Analyzer, model core.ModelInfo, db *gorm.DB, metrics *Metrics) *BackendService {
	return &BackendService{analyzer: analyzer, model: model, db: db, metrics: metrics}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Get("/model", RestHandler(s.GetModelInfo))

	r.Post("/analyze", RestHandler(s.Analyze))
	r.Post("/analyze/details", RestHandler(s.AnalyzeDetails))

	r.Route("/analyses", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListAnalyses))
		r.Get("/trend", RestHandler(s.SentimentTrend))
		r.Get("/{analysis_id}", RestHandler(s.GetAnalysis))
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
}

func (s *BackendService) GetModelInfo(r *http.Request) (any, error) {
	return api.ModelInfo{
		Checkpoint:        s.modelVersion(),
		TokenizerKind:     string(s.model.TokenizerKind),
		Labels:            s.model.Labels,
		MaxSequenceLength: s.model.MaxSequenceLength,
	}, nil
}

func (s *BackendService) Analyze(r *http.Request) (any, error) {
	pred, err := s.analyze(r)
	if err != nil {
		return nil, err
	}

	return api.AnalyzeResponse{
		Sentiment: []api.SentimentScore{{Label: pred.Label, Score: pred.Score}},
	}, nil
}

func (s *BackendService) AnalyzeDetails(r *http.Request) (any, error) {
	pred, err := s.analyze(r)
	if err != nil {
		return nil, err
	}

	return api.AnalyzeDetailsResponse{
		Label:         pred.Label,
		Score:         pred.Score,
		Polarity:      pred.Polarity,
		Probabilities: pred.Probabilities,
	}, nil
}

func (s *BackendService) analyze(r *http.Request) (core.Prediction, error) {
	req, err := ParseRequest[api.AnalyzeRequest](r)
	if err != nil {
		return core.Prediction{}, err
	}

	if strings.TrimSpace(req.Text) == "" {
		return core.Prediction{}, CodedErrorf(http.StatusUnprocessableEntity, "text must be a non-empty string")
	}

	start := time.Now()
	pred, err := s.analyzer.Analyze(r.Context(), req.Text)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidInput):
			return core.Prediction{}, CodedError(http.StatusUnprocessableEntity, err)
		case errors.Is(err, core.ErrModelUnavailable):
			return core.Prediction{}, CodedError(http.StatusServiceUnavailable, err)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return core.Prediction{}, CodedErrorf(http.StatusServiceUnavailable, "request cancelled while waiting for inference")
		}
		slog.Error("error analyzing text", "error", err)
		return core.Prediction{}, CodedErrorf(http.StatusInternalServerError, "error analyzing text")
	}
	latency := time.Since(start)

	if s.metrics != nil {
		s.metrics.ObservePrediction(pred.Label)
	}

	s.recordAnalysis(r.Context(), req, pred, latency)

	return pred, nil
}

// recordAnalysis is best effort: a history write failure never fails the
// request that produced the prediction.
func (s *BackendService) recordAnalysis(ctx context.Context, req api.AnalyzeRequest, pred core.Prediction, latency time.Duration) {
	if s.db == nil {
		return
	}

	probabilities, err := json.Marshal(pred.Probabilities)
	if err != nil {
		slog.Error("error encoding probabilities", "error", err)
		return
	}

	analysis := database.Analysis{
		TextHash:      core.TextDigestHex(req.Text),
		TextLength:    len(req.Text),
		Symbol:        sql.NullString{String: req.Symbol, Valid: req.Symbol != ""},
		Label:         pred.Label,
		Score:         pred.Score,
		Polarity:      pred.Polarity,
		Probabilities: probabilities,
		ModelVersion:  s.modelVersion(),
		LatencyMs:     latency.Milliseconds(),
	}

	if err := database.RecordAnalysis(ctx, s.db, &analysis); err != nil {
		slog.Error("error recording analysis", "error", err)
	}
}

func (s *BackendService) ListAnalyses(r *http.Request) (any, error) {
	if s.db == nil {
		return nil, CodedErrorf(http.StatusNotFound, "analysis history is not enabled")
	}

	params, err := ParseRequestQueryParams[api.ListAnalysesParams](r)
	if err != nil {
		return nil, err
	}

	if params.Limit < 0 {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "limit must not be negative")
	}
	if params.Limit == 0 {
		params.Limit = defaultListLimit
	}
	params.Limit = min(params.Limit, maxListLimit)

	analyses, err := database.ListAnalyses(r.Context(), s.db, database.AnalysisFilter{
		Label:  params.Label,
		Symbol: params.Symbol,
		Since:  params.Since,
		Limit:  params.Limit,
	})
	if err != nil {
		slog.Error("error listing analyses", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving analyses")
	}

	return convertAnalyses(analyses), nil
}

// SentimentTrend returns per-day aggregates for one symbol, covering today and
// the preceding Days-1 days.
func (s *BackendService) SentimentTrend(r *http.Request) (any, error) {
	if s.db == nil {
		return nil, CodedErrorf(http.StatusNotFound, "analysis history is not enabled")
	}

	params, err := ParseRequestQueryParams[api.TrendParams](r)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(params.Symbol) == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "symbol is required")
	}
	if params.Days < 0 || params.Days > maxTrendDays {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "days must be between 1 and %d", maxTrendDays)
	}
	if params.Days == 0 {
		params.Days = defaultTrendDays
	}

	since := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -(params.Days - 1))
	buckets, err := database.SentimentTrend(r.Context(), s.db, params.Symbol, since)
	if err != nil {
		slog.Error("error computing sentiment trend", "symbol", params.Symbol, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving sentiment trend")
	}

	return convertTrend(buckets), nil
}

func (s *BackendService) GetAnalysis(r *http.Request) (any, error) {
	if s.db == nil {
		return nil, CodedErrorf(http.StatusNotFound, "analysis history is not enabled")
	}

	id, err := URLParamUUID(r, "analysis_id")
	if err != nil {
		return nil, err
	}

	analysis, err := database.GetAnalysis(r.Context(), s.db, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "analysis not found")
		}
		slog.Error("error getting analysis", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving analysis")
	}

	return convertAnalysis(analysis), nil
}

func (s *BackendService) modelVersion() string {
	return filepath.Base(filepath.Clean(s.model.Checkpoint))
}
