package dataset

import "fmt"

// DefaultTrainFraction is the chronological share of rows used to fit the
// final models; the remainder is the held-out evaluation window.
const DefaultTrainFraction = 0.8

// HoldoutSplit splits the table chronologically: the first trainFraction of
// rows become the training window, the rest the held-out test window. Both
// returned tables are views over the receiver's backing arrays.
func HoldoutSplit(t *Table, trainFraction float64) (train, test *Table, err error) {
	if trainFraction <= 0 || trainFraction >= 1 {
		return nil, nil, fmt.Errorf("train fraction must be in (0, 1), got %v", trainFraction)
	}

	cut := int(trainFraction * float64(t.Len()))
	if cut == 0 || cut == t.Len() {
		return nil, nil, fmt.Errorf("holdout split of %d rows leaves an empty window", t.Len())
	}

	train = &Table{X: t.X[:cut], Y: t.Y[:cut]}
	test = &Table{X: t.X[cut:], Y: t.Y[cut:]}
	return train, test, nil
}
