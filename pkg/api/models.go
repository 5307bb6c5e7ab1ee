package api

import (
	"time"

	"github.com/google/uuid"
)

type AnalyzeRequest struct {
	Text string `json:"text"`
	// Symbol optionally tags the analysis with a ticker in the history.
	Symbol string `json:"symbol,omitempty"`
}

type SentimentScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type AnalyzeResponse struct {
	Sentiment []SentimentScore `json:"sentiment"`
}

type AnalyzeDetailsResponse struct {
	Label         string             `json:"label"`
	Score         float64            `json:"score"`
	Polarity      float64            `json:"polarity"`
	Probabilities map[string]float64 `json:"probabilities"`
}

type ModelInfo struct {
	Checkpoint        string   `json:"checkpoint"`
	TokenizerKind     string   `json:"tokenizer_kind"`
	Labels            []string `json:"labels"`
	MaxSequenceLength int      `json:"max_sequence_length"`
}

type ListAnalysesParams struct {
	Label  string    `schema:"label"`
	Symbol string    `schema:"symbol"`
	Since  time.Time `schema:"since"`
	Limit  int       `schema:"limit"`
}

type Analysis struct {
	Id           uuid.UUID `json:"id"`
	TextHash     string    `json:"text_hash"`
	Symbol       string    `json:"symbol,omitempty"`
	Label        string    `json:"label"`
	Score        float64   `json:"score"`
	Polarity     float64   `json:"polarity"`
	ModelVersion string    `json:"model_version"`
	LatencyMs    int64     `json:"latency_ms"`
	CreationTime time.Time `json:"creation_time"`
}

type TrendParams struct {
	Symbol string `schema:"symbol"`
	Days   int    `schema:"days"`
}

type TrendPoint struct {
	Day         time.Time      `json:"day"`
	Count       int            `json:"count"`
	AvgPolarity float64        `json:"avg_polarity"`
	AvgScore    float64        `json:"avg_score"`
	LabelCounts map[string]int `json:"label_counts"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
