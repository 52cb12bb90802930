// Package eval scores fitted classifiers: pointwise metrics, a two-class
// report, and expanding-window walk-forward validation over chronological
// trade tables.
package eval

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ErrSingleClass is returned by AUC when a window holds only wins or only
// losses; the ROC curve is undefined there.
var ErrSingleClass = errors.New("window contains a single class")

// Accuracy returns the fraction of predictions matching the truth labels.
func Accuracy(pred, truth []int) float64 {
	if len(pred) == 0 || len(pred) != len(truth) {
		return 0
	}
	correct := 0
	for i := range pred {
		if pred[i] == truth[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(pred))
}

// AUC returns the area under the ROC curve of win scores against binary
// labels.
func AUC(scores []float64, labels []int) (float64, error) {
	if len(scores) == 0 || len(scores) != len(labels) {
		return 0, fmt.Errorf("scores and labels disagree: %d vs %d", len(scores), len(labels))
	}

	wins := 0
	for _, l := range labels {
		wins += l
	}
	if wins == 0 || wins == len(labels) {
		return 0, ErrSingleClass
	}

	y := append([]float64(nil), scores...)
	classes := make([]bool, len(labels))
	for i, l := range labels {
		classes[i] = l == 1
	}

	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}
