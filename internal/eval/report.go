package eval

import (
	"fmt"
	"strings"
)

// ClassMetrics holds precision, recall and F1 for one class.
type ClassMetrics struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report is a two-class classification report.
type Report struct {
	Loss     ClassMetrics
	Win      ClassMetrics
	Accuracy float64
	Total    int
}

// ClassificationReport scores predictions against truth labels per class.
func ClassificationReport(pred, truth []int) *Report {
	return &Report{
		Loss:     classMetrics(0, pred, truth),
		Win:      classMetrics(1, pred, truth),
		Accuracy: Accuracy(pred, truth),
		Total:    len(truth),
	}
}

func classMetrics(class int, pred, truth []int) ClassMetrics {
	var tp, fp, fn, support int
	for i := range truth {
		if truth[i] == class {
			support++
			if pred[i] == class {
				tp++
			} else {
				fn++
			}
		} else if pred[i] == class {
			fp++
		}
	}

	m := ClassMetrics{Support: support}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// MacroAvg averages the class metrics without support weighting.
func (r *Report) MacroAvg() ClassMetrics {
	return ClassMetrics{
		Precision: (r.Loss.Precision + r.Win.Precision) / 2,
		Recall:    (r.Loss.Recall + r.Win.Recall) / 2,
		F1:        (r.Loss.F1 + r.Win.F1) / 2,
		Support:   r.Total,
	}
}

// WeightedAvg weights the class metrics by class support.
func (r *Report) WeightedAvg() ClassMetrics {
	if r.Total == 0 {
		return ClassMetrics{}
	}
	wl := float64(r.Loss.Support) / float64(r.Total)
	ww := float64(r.Win.Support) / float64(r.Total)
	return ClassMetrics{
		Precision: wl*r.Loss.Precision + ww*r.Win.Precision,
		Recall:    wl*r.Loss.Recall + ww*r.Win.Recall,
		F1:        wl*r.Loss.F1 + ww*r.Win.F1,
		Support:   r.Total,
	}
}

// String renders the report as a console table.
func (r *Report) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%14s %9s %9s %9s %9s\n\n", "", "precision", "recall", "f1-score", "support"))

	row := func(name string, m ClassMetrics) {
		sb.WriteString(fmt.Sprintf("%14s %9.2f %9.2f %9.2f %9d\n", name, m.Precision, m.Recall, m.F1, m.Support))
	}
	row("loss", r.Loss)
	row("win", r.Win)

	sb.WriteString(fmt.Sprintf("\n%14s %9s %9s %9.2f %9d\n", "accuracy", "", "", r.Accuracy, r.Total))
	row("macro avg", r.MacroAvg())
	row("weighted avg", r.WeightedAvg())

	return sb.String()
}
