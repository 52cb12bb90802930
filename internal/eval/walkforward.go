package eval

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"ensemble-trainer/internal/dataset"
	"ensemble-trainer/internal/model"
)

// Fold is one expanding-window validation split. Indices are half-open row
// ranges over the chronological table; the training window always starts at
// row 0 and ends where the test window begins, so no fold ever trains on
// rows from its own future.
type Fold struct {
	TrainStart int
	TrainEnd   int
	TestStart  int
	TestEnd    int
}

// Folds computes k expanding-window folds over n chronological rows. Every
// test window has n/(k+1) rows and the windows tile the tail of the table
// back to back; the division remainder stays in the first training window.
func Folds(n, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("walk-forward needs at least 2 folds, got %d", k)
	}

	testSize := n / (k + 1)
	if testSize < 1 {
		return nil, fmt.Errorf("%d rows cannot fill %d walk-forward folds", n, k)
	}

	folds := make([]Fold, 0, k)
	for i := 0; i < k; i++ {
		testStart := n - (k-i)*testSize
		folds = append(folds, Fold{
			TrainStart: 0,
			TrainEnd:   testStart,
			TestStart:  testStart,
			TestEnd:    testStart + testSize,
		})
	}
	return folds, nil
}

// FitFunc fits a fresh classifier on a training window.
type FitFunc func(x [][]float64, y []int) (model.Classifier, error)

// FoldScore holds one fold's metrics.
type FoldScore struct {
	Fold          int
	TrainAccuracy float64
	TestAccuracy  float64
	TestAUC       float64
}

// Summary aggregates walk-forward metrics across folds.
type Summary struct {
	Folds             []FoldScore
	MeanTrainAccuracy float64
	MeanTestAccuracy  float64
	MeanTestAUC       float64

	// OverfitRatio is mean train accuracy over mean test accuracy, +Inf
	// when the fold models were never right on a test window.
	OverfitRatio float64
}

// Evaluate runs expanding-window validation: one fresh fit per fold, scored
// on that fold's unseen test window. A test window holding a single class
// degrades its AUC to 0.5 instead of failing the run; every other error is
// fatal. Fold models are discarded after scoring.
func Evaluate(tbl *dataset.Table, fit FitFunc, k int) (*Summary, error) {
	folds, err := Folds(tbl.Len(), k)
	if err != nil {
		return nil, err
	}

	s := &Summary{Folds: make([]FoldScore, 0, len(folds))}
	trainAccs := make([]float64, 0, len(folds))
	testAccs := make([]float64, 0, len(folds))
	testAUCs := make([]float64, 0, len(folds))

	for i, f := range folds {
		clf, err := fit(tbl.X[f.TrainStart:f.TrainEnd], tbl.Y[f.TrainStart:f.TrainEnd])
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", i+1, err)
		}

		trainAcc := accuracyOn(clf, tbl, f.TrainStart, f.TrainEnd)
		testAcc := accuracyOn(clf, tbl, f.TestStart, f.TestEnd)

		scores := make([]float64, 0, f.TestEnd-f.TestStart)
		for _, x := range tbl.X[f.TestStart:f.TestEnd] {
			scores = append(scores, clf.PredictProbability(x))
		}
		auc, err := AUC(scores, tbl.Y[f.TestStart:f.TestEnd])
		if errors.Is(err, ErrSingleClass) {
			auc = 0.5
		} else if err != nil {
			return nil, fmt.Errorf("fold %d: %w", i+1, err)
		}

		s.Folds = append(s.Folds, FoldScore{
			Fold:          i + 1,
			TrainAccuracy: trainAcc,
			TestAccuracy:  testAcc,
			TestAUC:       auc,
		})
		trainAccs = append(trainAccs, trainAcc)
		testAccs = append(testAccs, testAcc)
		testAUCs = append(testAUCs, auc)
	}

	s.MeanTrainAccuracy = stat.Mean(trainAccs, nil)
	s.MeanTestAccuracy = stat.Mean(testAccs, nil)
	s.MeanTestAUC = stat.Mean(testAUCs, nil)
	if s.MeanTestAccuracy == 0 {
		s.OverfitRatio = math.Inf(1)
	} else {
		s.OverfitRatio = s.MeanTrainAccuracy / s.MeanTestAccuracy
	}

	return s, nil
}

func accuracyOn(c model.Classifier, tbl *dataset.Table, start, end int) float64 {
	pred := make([]int, 0, end-start)
	for _, x := range tbl.X[start:end] {
		pred = append(pred, c.Predict(x))
	}
	return Accuracy(pred, tbl.Y[start:end])
}
