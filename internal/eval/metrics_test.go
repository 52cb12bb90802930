package eval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 1.0, Accuracy([]int{1, 0, 1}, []int{1, 0, 1}))
	assert.Equal(t, 0.0, Accuracy([]int{1, 1, 1}, []int{0, 0, 0}))
	assert.InDelta(t, 2.0/3.0, Accuracy([]int{1, 0, 0}, []int{1, 0, 1}), 1e-12)
	assert.Equal(t, 0.0, Accuracy(nil, nil))
	assert.Equal(t, 0.0, Accuracy([]int{1}, []int{1, 0}))
}

func TestAUC(t *testing.T) {
	scores := []float64{0.1, 0.4, 0.35, 0.8}
	labels := []int{0, 0, 1, 1}

	auc, err := AUC(scores, labels)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, auc, 1e-9)
}

func TestAUCPerfectRanking(t *testing.T) {
	auc, err := AUC([]float64{0.1, 0.2, 0.8, 0.9}, []int{0, 0, 1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, auc, 1e-9)

	auc, err = AUC([]float64{0.9, 0.8, 0.2, 0.1}, []int{0, 0, 1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, auc, 1e-9)
}

func TestAUCSingleClass(t *testing.T) {
	_, err := AUC([]float64{0.2, 0.7}, []int{1, 1})
	assert.ErrorIs(t, err, ErrSingleClass)

	_, err = AUC([]float64{0.2, 0.7}, []int{0, 0})
	assert.ErrorIs(t, err, ErrSingleClass)
}

func TestAUCLengthMismatch(t *testing.T) {
	_, err := AUC([]float64{0.2}, []int{1, 0})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSingleClass)
}

func TestClassificationReport(t *testing.T) {
	pred := []int{1, 0, 1, 1, 0, 1}
	truth := []int{1, 0, 0, 1, 0, 0}

	r := ClassificationReport(pred, truth)

	assert.Equal(t, 4, r.Loss.Support)
	assert.InDelta(t, 1.0, r.Loss.Precision, 1e-9)
	assert.InDelta(t, 0.5, r.Loss.Recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, r.Loss.F1, 1e-9)

	assert.Equal(t, 2, r.Win.Support)
	assert.InDelta(t, 0.5, r.Win.Precision, 1e-9)
	assert.InDelta(t, 1.0, r.Win.Recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, r.Win.F1, 1e-9)

	assert.InDelta(t, 2.0/3.0, r.Accuracy, 1e-9)

	macro := r.MacroAvg()
	assert.InDelta(t, 0.75, macro.Precision, 1e-9)
	assert.InDelta(t, 0.75, macro.Recall, 1e-9)

	weighted := r.WeightedAvg()
	assert.InDelta(t, 5.0/6.0, weighted.Precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, weighted.Recall, 1e-9)
}

func TestReportZeroDivisionIsSilent(t *testing.T) {
	// Model never predicts win: win precision has a zero denominator and
	// must come back 0, not NaN.
	r := ClassificationReport([]int{0, 0, 0}, []int{0, 1, 1})

	assert.Equal(t, 0.0, r.Win.Precision)
	assert.Equal(t, 0.0, r.Win.Recall)
	assert.Equal(t, 0.0, r.Win.F1)
	assert.InDelta(t, 1.0/3.0, r.Accuracy, 1e-9)
}

func TestReportString(t *testing.T) {
	out := ClassificationReport([]int{1, 0}, []int{1, 1}).String()

	for _, want := range []string{"precision", "recall", "f1-score", "support", "loss", "win", "accuracy", "macro avg", "weighted avg"} {
		assert.True(t, strings.Contains(out, want), "report should contain %q:\n%s", want, out)
	}
}
