package onnx

import (
	"errors"
	"fmt"
	"math"

	"ensemble-trainer/internal/model"
)

// DefaultTolerance is the largest win-probability drift tolerated between
// the in-process model and its exported artifact. Exported thresholds and
// leaf weights are float32, so small drift is expected.
const DefaultTolerance = 0.01

// Result summarizes one round-trip verification.
type Result struct {
	MaxDiff float64
	Checked int
	OK      bool
}

// VerifyRoundTrip reloads the artifact at path and compares its win
// probabilities against the fitted model on the probe rows. A diff at or
// above tol makes the result not OK; only failing to read or execute the
// artifact is an error.
func VerifyRoundTrip(path string, ref model.Classifier, probe [][]float64, tol float64) (*Result, error) {
	if len(probe) == 0 {
		return nil, errors.New("verification probe is empty")
	}

	sess, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to reload artifact: %w", err)
	}

	batch := make([][]float32, len(probe))
	for i, row := range probe {
		r := make([]float32, len(row))
		for j, v := range row {
			r[j] = float32(v)
		}
		batch[i] = r
	}

	_, probs, err := sess.Run(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to execute artifact: %w", err)
	}

	res := &Result{Checked: len(probe)}
	for i, row := range probe {
		if len(probs[i]) != 2 {
			return nil, fmt.Errorf("row %d: got %d probabilities, want 2", i, len(probs[i]))
		}
		diff := math.Abs(float64(probs[i][1]) - ref.PredictProbability(row))
		if diff > res.MaxDiff {
			res.MaxDiff = diff
		}
	}
	res.OK = res.MaxDiff < tol
	return res, nil
}
