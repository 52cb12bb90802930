package eval

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ensemble-trainer/internal/dataset"
	"ensemble-trainer/internal/model"
)

// constantClassifier always reports the same win probability.
type constantClassifier struct {
	prob float64
}

func (c constantClassifier) Predict(x []float64) int {
	if c.prob > 0.5 {
		return 1
	}
	return 0
}

func (c constantClassifier) PredictProbability(x []float64) float64 {
	return c.prob
}

func constantFit(prob float64) FitFunc {
	return func(x [][]float64, y []int) (model.Classifier, error) {
		return constantClassifier{prob: prob}, nil
	}
}

func TestFolds(t *testing.T) {
	tests := []struct {
		name       string
		n, k       int
		testStarts []int
		testSize   int
		wantErr    bool
	}{
		{name: "even hundred", n: 100, k: 5, testStarts: []int{20, 36, 52, 68, 84}, testSize: 16},
		{name: "remainder stays in first train window", n: 103, k: 5, testStarts: []int{18, 35, 52, 69, 86}, testSize: 17},
		{name: "minimum viable", n: 10, k: 5, testStarts: []int{5, 6, 7, 8, 9}, testSize: 1},
		{name: "too few rows", n: 5, k: 5, wantErr: true},
		{name: "too few folds", n: 100, k: 1, wantErr: true},
		{name: "zero folds", n: 100, k: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			folds, err := Folds(tt.n, tt.k)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, folds, tt.k)

			for i, f := range folds {
				assert.Equal(t, 0, f.TrainStart, "fold %d", i)
				assert.Equal(t, tt.testStarts[i], f.TrainEnd, "fold %d train end", i)
				assert.Equal(t, tt.testStarts[i], f.TestStart, "fold %d test start", i)
				assert.Equal(t, tt.testStarts[i]+tt.testSize, f.TestEnd, "fold %d test end", i)
			}

			// Test windows tile the tail without overlap.
			last := folds[len(folds)-1]
			assert.Equal(t, tt.n, last.TestEnd)
			for i := 1; i < len(folds); i++ {
				assert.Equal(t, folds[i-1].TestEnd, folds[i].TestStart)
			}
		})
	}
}

func TestEvaluateDegradesSingleClassAUC(t *testing.T) {
	// 12 rows, 2 folds -> test windows [4,8) and [8,12), both all-win.
	tbl := &dataset.Table{
		X: make([][]float64, 12),
		Y: []int{0, 1, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1},
	}
	for i := range tbl.X {
		tbl.X[i] = []float64{float64(i)}
	}

	s, err := Evaluate(tbl, constantFit(0.7), 2)
	require.NoError(t, err)
	require.Len(t, s.Folds, 2)

	for _, f := range s.Folds {
		assert.Equal(t, 0.5, f.TestAUC, "single-class window AUC should degrade to 0.5")
		assert.Equal(t, 1.0, f.TestAccuracy)
	}
	assert.Equal(t, 0.5, s.MeanTestAUC)
}

func TestEvaluateOverfitRatio(t *testing.T) {
	tbl := &dataset.Table{
		X: make([][]float64, 12),
		Y: []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
	}
	for i := range tbl.X {
		tbl.X[i] = []float64{float64(i)}
	}

	// Always predicts loss: 0 accuracy everywhere, so the ratio blows up.
	s, err := Evaluate(tbl, constantFit(0.2), 2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.MeanTestAccuracy)
	assert.True(t, math.IsInf(s.OverfitRatio, 1), "overfit ratio should be +Inf, got %v", s.OverfitRatio)

	// Always predicts win: 1.0 accuracy in every window, ratio exactly 1.
	s, err = Evaluate(tbl, constantFit(0.7), 2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.MeanTrainAccuracy)
	assert.Equal(t, 1.0, s.MeanTestAccuracy)
	assert.Equal(t, 1.0, s.OverfitRatio)
}

func TestEvaluatePropagatesFitErrors(t *testing.T) {
	tbl := dataset.Synthetic(60, 2)
	fitErr := errors.New("bad fold")

	_, err := Evaluate(tbl, func(x [][]float64, y []int) (model.Classifier, error) {
		return nil, fitErr
	}, 3)

	require.Error(t, err)
	assert.ErrorIs(t, err, fitErr)
	assert.Contains(t, err.Error(), "fold 1")
}

func TestEvaluateWithRealTrainers(t *testing.T) {
	tbl := dataset.Synthetic(200, 41)

	boost := model.NewBoostingTrainer()
	s, err := Evaluate(tbl, func(x [][]float64, y []int) (model.Classifier, error) {
		return boost.Fit(x, y)
	}, 5)
	require.NoError(t, err)

	require.Len(t, s.Folds, 5)
	assert.Greater(t, s.MeanTrainAccuracy, 0.5)
	assert.Greater(t, s.MeanTestAUC, 0.0)
	assert.False(t, math.IsNaN(s.OverfitRatio))
	for _, f := range s.Folds {
		assert.GreaterOrEqual(t, f.TestAUC, 0.0)
		assert.LessOrEqual(t, f.TestAUC, 1.0)
	}
}
