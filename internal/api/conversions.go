package api

import (
	"finsent-backend/internal/database"
	"finsent-backend/pkg/api"
)

func convertAnalysis(a database.Analysis) api.Analysis {
	return api.Analysis{
		Id:           a.Id,
		TextHash:     a.TextHash,
		Symbol:       a.Symbol.String,
		Label:        a.Label,
		Score:        a.Score,
		Polarity:     a.Polarity,
		ModelVersion: a.ModelVersion,
		LatencyMs:    a.LatencyMs,
		CreationTime: a.CreationTime,
	}
}

func convertAnalyses(as []database.Analysis) []api.Analysis {
	analyses := make([]api.Analysis, 0, len(as))
	for _, a := range as {
		analyses = append(analyses, convertAnalysis(a))
	}
	return analyses
}

func convertTrend(buckets []database.TrendBucket) []api.TrendPoint {
	points := make([]api.TrendPoint, 0, len(buckets))
	for _, b := range buckets {
		points = append(points, api.TrendPoint{
			Day:         b.Day,
			Count:       b.Count,
			AvgPolarity: b.AvgPolarity,
			AvgScore:    b.AvgScore,
			LabelCounts: b.LabelCounts,
		})
	}
	return points
}
