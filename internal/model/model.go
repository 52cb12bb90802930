// Package model implements the two tree-ensemble learners behind the win
// classifier: a regularized gradient-boosted ensemble and a class-balanced
// random forest. Both produce flattened trees that the ONNX exporter can
// serialize without reaching into trainer internals.
package model

import "math"

// Classifier scores a single feature vector.
type Classifier interface {
	// Predict returns the predicted class, 1 for a win.
	Predict(x []float64) int
	// PredictProbability returns P(win) in [0, 1].
	PredictProbability(x []float64) float64
}

// Node is one node of a fitted tree in flattened form. Internal nodes route
// x[Feature] <= Threshold to Left, everything else to Right. Leaves have
// Feature == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int

	// Value is the raw score contribution of a boosted leaf, already
	// scaled by the learning rate.
	Value float64
	// Dist is the weighted class distribution of a forest leaf.
	Dist []float64

	// Gain is the split quality recorded for feature importance.
	Gain float64
	// Samples is the weighted sample count that reached the node.
	Samples float64
}

// Tree is a single fitted decision tree. Nodes[0] is the root.
type Tree struct {
	Nodes []Node
}

// Leaf walks x down the tree and returns the leaf it lands in.
func (t *Tree) Leaf(x []float64) *Node {
	i := 0
	for t.Nodes[i].Feature >= 0 {
		n := &t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return &t.Nodes[i]
}

// EnsembleKind tells the exporter how leaf payloads combine.
type EnsembleKind int

const (
	// BoostedScores sums leaf Values into a raw logit.
	BoostedScores EnsembleKind = iota
	// AveragedDistributions averages leaf Dists into class probabilities.
	AveragedDistributions
)

// TreeEnsemble is the portable form of a fitted model.
type TreeEnsemble struct {
	Kind        EnsembleKind
	Trees       []Tree
	NumFeatures int
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func normalize(scores []float64) {
	var sum float64
	for _, s := range scores {
		sum += s
	}
	if sum == 0 {
		return
	}
	for i := range scores {
		scores[i] /= sum
	}
}
