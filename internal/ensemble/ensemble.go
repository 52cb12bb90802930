// Package ensemble blends the two model probabilities into the final trade
// decision. The weights and threshold are part of the contract with the
// inference engine, which applies the same blend at runtime.
package ensemble

import (
	"fmt"

	"ensemble-trainer/internal/eval"
)

// Policy fixes the blend weights and the decision threshold.
type Policy struct {
	BoostWeight  float64
	ForestWeight float64
	Threshold    float64
}

// DefaultPolicy returns the production blend: 0.6 boosting, 0.4 forest,
// win at 0.55.
func DefaultPolicy() Policy {
	return Policy{
		BoostWeight:  0.6,
		ForestWeight: 0.4,
		Threshold:    0.55,
	}
}

// Combine blends two win probabilities into one score. With convex weights
// and inputs in [0, 1] the score stays in [0, 1].
func (p Policy) Combine(boostProb, forestProb float64) float64 {
	return p.BoostWeight*boostProb + p.ForestWeight*forestProb
}

// Classify maps a blended score to a class: 1 when the score reaches the
// threshold.
func (p Policy) Classify(score float64) int {
	if score >= p.Threshold {
		return 1
	}
	return 0
}

// Scores blends two probability vectors element-wise.
func (p Policy) Scores(boost, forest []float64) ([]float64, error) {
	if len(boost) != len(forest) {
		return nil, fmt.Errorf("probability vectors disagree: %d vs %d", len(boost), len(forest))
	}

	scores := make([]float64, len(boost))
	for i := range boost {
		scores[i] = p.Combine(boost[i], forest[i])
	}
	return scores, nil
}

// Labels classifies a vector of blended scores.
func (p Policy) Labels(scores []float64) []int {
	labels := make([]int, len(scores))
	for i, s := range scores {
		labels[i] = p.Classify(s)
	}
	return labels
}

// Result bundles holdout metrics for the blended classifier.
type Result struct {
	Accuracy float64
	AUC      float64
	Report   *eval.Report
	Scores   []float64
	Labels   []int
}

// Evaluate blends per-model win probabilities and scores the result against
// the holdout labels.
func (p Policy) Evaluate(boost, forest []float64, truth []int) (*Result, error) {
	scores, err := p.Scores(boost, forest)
	if err != nil {
		return nil, err
	}
	if len(truth) != len(scores) {
		return nil, fmt.Errorf("labels disagree with probabilities: %d vs %d", len(truth), len(scores))
	}

	labels := p.Labels(scores)
	auc, err := eval.AUC(scores, truth)
	if err != nil {
		return nil, fmt.Errorf("failed to compute ensemble AUC: %w", err)
	}

	return &Result{
		Accuracy: eval.Accuracy(labels, truth),
		AUC:      auc,
		Report:   eval.ClassificationReport(labels, truth),
		Scores:   scores,
		Labels:   labels,
	}, nil
}
