package model

import (
	"errors"
	"testing"

	"ensemble-trainer/internal/dataset"
)

func treeDepth(t *Tree, id, depth int) int {
	n := t.Nodes[id]
	if n.Feature < 0 {
		return depth
	}
	left := treeDepth(t, n.Left, depth+1)
	right := treeDepth(t, n.Right, depth+1)
	if left > right {
		return left
	}
	return right
}

func trainAccuracy(c Classifier, tbl *dataset.Table) float64 {
	correct := 0
	for i, x := range tbl.X {
		if c.Predict(x) == tbl.Y[i] {
			correct++
		}
	}
	return float64(correct) / float64(tbl.Len())
}

func TestBoostingFitDeterministic(t *testing.T) {
	tbl := dataset.Synthetic(150, 3)
	trainer := NewBoostingTrainer()

	a, err := trainer.Fit(tbl.X, tbl.Y)
	if err != nil {
		t.Fatalf("first fit failed: %v", err)
	}
	b, err := trainer.Fit(tbl.X, tbl.Y)
	if err != nil {
		t.Fatalf("second fit failed: %v", err)
	}

	for i := 0; i < 20; i++ {
		pa := a.PredictProbability(tbl.X[i])
		pb := b.PredictProbability(tbl.X[i])
		if pa != pb {
			t.Fatalf("row %d: fits diverge: %v vs %v", i, pa, pb)
		}
	}
}

func TestBoostingLearnsSignal(t *testing.T) {
	tbl := dataset.Synthetic(300, 11)

	m, err := NewBoostingTrainer().Fit(tbl.X, tbl.Y)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if acc := trainAccuracy(m, tbl); acc < 0.7 {
		t.Errorf("expected training accuracy above 0.7 on separable data, got %.3f", acc)
	}
}

func TestBoostingProbabilityBounds(t *testing.T) {
	tbl := dataset.Synthetic(120, 5)

	m, err := NewBoostingTrainer().Fit(tbl.X, tbl.Y)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	for i, x := range tbl.X {
		p := m.PredictProbability(x)
		if p <= 0 || p >= 1 {
			t.Fatalf("row %d: probability %v outside (0, 1)", i, p)
		}
	}
}

func TestBoostingRejectsDegenerateData(t *testing.T) {
	tbl := dataset.Synthetic(60, 9)

	allWins := make([]int, tbl.Len())
	for i := range allWins {
		allWins[i] = 1
	}
	if _, err := NewBoostingTrainer().Fit(tbl.X, allWins); !errors.Is(err, ErrSingleClass) {
		t.Errorf("expected ErrSingleClass for all-win labels, got %v", err)
	}

	allLosses := make([]int, tbl.Len())
	if _, err := NewBoostingTrainer().Fit(tbl.X, allLosses); !errors.Is(err, ErrSingleClass) {
		t.Errorf("expected ErrSingleClass for all-loss labels, got %v", err)
	}

	if _, err := NewBoostingTrainer().Fit(nil, nil); err == nil {
		t.Error("expected error for empty training set")
	}

	if _, err := NewBoostingTrainer().Fit(tbl.X, tbl.Y[:10]); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}

func TestBoostingRespectsDepthAndCount(t *testing.T) {
	tbl := dataset.Synthetic(200, 17)
	trainer := NewBoostingTrainer()

	m, err := trainer.Fit(tbl.X, tbl.Y)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if len(m.trees) != trainer.Policy.Trees {
		t.Fatalf("expected %d trees, got %d", trainer.Policy.Trees, len(m.trees))
	}
	for i := range m.trees {
		if d := treeDepth(&m.trees[i], 0, 0); d > trainer.Policy.MaxDepth {
			t.Fatalf("tree %d exceeds max depth: %d", i, d)
		}
	}
}

func TestBoostingImportance(t *testing.T) {
	tbl := dataset.Synthetic(300, 23)

	m, err := NewBoostingTrainer().Fit(tbl.X, tbl.Y)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	imp := m.FeatureImportance()
	if len(imp) != dataset.NumFeatures {
		t.Fatalf("expected %d importance scores, got %d", dataset.NumFeatures, len(imp))
	}

	var sum float64
	for _, v := range imp {
		if v < 0 {
			t.Fatalf("importance must be non-negative, got %v", v)
		}
		sum += v
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("importance should sum to 1, got %v", sum)
	}

	top := TopFeatures(imp, dataset.FeatureColumns, 1)[0].Name
	switch top {
	case "signal_strength", "confidence", "risk_reward_ratio":
	default:
		t.Errorf("top feature should be one of the informative columns, got %s", top)
	}
}

func BenchmarkBoostedPredict(b *testing.B) {
	tbl := dataset.Synthetic(200, 1)
	m, err := NewBoostingTrainer().Fit(tbl.X, tbl.Y)
	if err != nil {
		b.Fatalf("Fit failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.PredictProbability(tbl.X[i%tbl.Len()])
	}
}
