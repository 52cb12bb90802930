package ensemble

import (
	"math"
	"testing"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	if p.BoostWeight != 0.6 || p.ForestWeight != 0.4 {
		t.Errorf("unexpected weights: %v/%v", p.BoostWeight, p.ForestWeight)
	}
	if p.BoostWeight+p.ForestWeight != 1.0 {
		t.Errorf("weights should be convex, sum to %v", p.BoostWeight+p.ForestWeight)
	}
	if p.Threshold != 0.55 {
		t.Errorf("unexpected threshold: %v", p.Threshold)
	}
}

func TestCombine(t *testing.T) {
	p := DefaultPolicy()

	if got := p.Combine(1, 1); got != 1 {
		t.Errorf("Combine(1,1) = %v", got)
	}
	if got := p.Combine(0, 0); got != 0 {
		t.Errorf("Combine(0,0) = %v", got)
	}
	if got := p.Combine(0.5, 0.75); math.Abs(got-0.6) > 1e-12 {
		t.Errorf("Combine(0.5,0.75) = %v, expected 0.6", got)
	}
	// Score must stay inside the hull of its inputs.
	if got := p.Combine(0.3, 0.9); got < 0.3 || got > 0.9 {
		t.Errorf("Combine(0.3,0.9) = %v outside input hull", got)
	}
}

func TestClassifyThresholdBoundary(t *testing.T) {
	p := DefaultPolicy()

	if p.Classify(0.55) != 1 {
		t.Error("score equal to the threshold should classify as win")
	}
	if p.Classify(0.5499999) != 0 {
		t.Error("score below the threshold should classify as loss")
	}
	if p.Classify(1) != 1 || p.Classify(0) != 0 {
		t.Error("extremes misclassified")
	}
}

func TestScores(t *testing.T) {
	p := DefaultPolicy()

	scores, err := p.Scores([]float64{0.9, 0.1}, []float64{0.5, 0.5})
	if err != nil {
		t.Fatalf("Scores failed: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scores))
	}
	if math.Abs(scores[0]-0.74) > 1e-12 {
		t.Errorf("scores[0] = %v, expected 0.74", scores[0])
	}
	if math.Abs(scores[1]-0.26) > 1e-12 {
		t.Errorf("scores[1] = %v, expected 0.26", scores[1])
	}

	labels := p.Labels(scores)
	if labels[0] != 1 || labels[1] != 0 {
		t.Errorf("unexpected labels: %v", labels)
	}
}

func TestScoresLengthMismatch(t *testing.T) {
	p := DefaultPolicy()
	if _, err := p.Scores([]float64{0.5}, []float64{0.5, 0.5}); err == nil {
		t.Fatal("expected error for mismatched vectors")
	}
}

func TestEvaluate(t *testing.T) {
	p := DefaultPolicy()
	boost := []float64{0.9, 0.8, 0.2, 0.4}
	forest := []float64{0.8, 0.7, 0.3, 0.2}
	truth := []int{1, 1, 0, 0}

	res, err := p.Evaluate(boost, forest, truth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Blended scores 0.86, 0.76, 0.24, 0.32 classify as 1,1,0,0.
	wantLabels := []int{1, 1, 0, 0}
	for i, want := range wantLabels {
		if res.Labels[i] != want {
			t.Errorf("label %d: got %d, want %d", i, res.Labels[i], want)
		}
	}
	if res.Accuracy != 1.0 {
		t.Errorf("expected perfect accuracy, got %v", res.Accuracy)
	}
	if math.Abs(res.AUC-1.0) > 1e-12 {
		t.Errorf("expected AUC 1.0, got %v", res.AUC)
	}
	if res.Report == nil || res.Report.Total != 4 {
		t.Errorf("unexpected report: %+v", res.Report)
	}
}

func TestEvaluateErrors(t *testing.T) {
	p := DefaultPolicy()

	if _, err := p.Evaluate([]float64{0.5}, []float64{0.5, 0.6}, []int{1}); err == nil {
		t.Error("expected error for mismatched probability vectors")
	}
	if _, err := p.Evaluate([]float64{0.5}, []float64{0.5}, []int{1, 0}); err == nil {
		t.Error("expected error for mismatched labels")
	}
	if _, err := p.Evaluate([]float64{0.5, 0.6}, []float64{0.5, 0.6}, []int{1, 1}); err == nil {
		t.Error("expected error for single-class labels")
	}
}
