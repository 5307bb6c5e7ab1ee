package core

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

type Prediction struct {
	Label string
	// Score is the softmax probability of Label.
	Score float64
	// Polarity is P(positive) - P(negative), in [-1, 1]. It is 0 when the
	// label set has no positive/negative classes.
	Polarity      float64
	Probabilities map[string]float64
}

func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}

	m := float64(slices.Max(logits))

	sum := 0.0
	probs := make([]float64, len(logits))
	for i, v := range logits {
		e := math.Exp(float64(v) - m)
		probs[i] = e
		sum += e
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// ProcessLogits converts raw class scores into a prediction using the
// checkpoint's label order.
func ProcessLogits(logits []float32, labels []string) (Prediction, error) {
	if len(logits) != len(labels) {
		return Prediction{}, fmt.Errorf("model returned %d logits for %d labels", len(logits), len(labels))
	}

	for _, v := range logits {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return Prediction{}, fmt.Errorf("model returned non-finite logits: %v", logits)
		}
	}

	probs := Softmax(logits)

	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}

	pred := Prediction{
		Label:         labels[best],
		Score:         probs[best],
		Probabilities: make(map[string]float64, len(labels)),
	}

	for i, label := range labels {
		pred.Probabilities[label] = probs[i]
		switch strings.ToLower(label) {
		case "positive":
			pred.Polarity += probs[i]
		case "negative":
			pred.Polarity -= probs[i]
		}
	}

	return pred, nil
}
