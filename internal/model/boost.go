package model

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

// ErrSingleClass is returned when training labels contain only wins or only
// losses; no meaningful probability can be fit on such data.
var ErrSingleClass = errors.New("training labels contain a single class")

// BoostingTrainer fits gradient-boosted trees on logistic loss with
// second-order (Newton) leaf updates and L1/L2 regularization.
type BoostingTrainer struct {
	Policy BoostingPolicy
}

// NewBoostingTrainer returns a trainer with the production policy.
func NewBoostingTrainer() *BoostingTrainer {
	return &BoostingTrainer{Policy: DefaultBoostingPolicy()}
}

// Fit trains the ensemble. The returned model is immutable and deterministic
// for a fixed policy seed.
func (t *BoostingTrainer) Fit(x [][]float64, y []int) (*BoostedModel, error) {
	if err := checkTrainingSet(x, y); err != nil {
		return nil, err
	}

	p := t.Policy
	n := len(x)
	k := len(x[0])

	rng := rand.New(rand.NewSource(p.Seed))
	raw := make([]float64, n)
	grad := make([]float64, n)
	hess := make([]float64, n)
	importance := make([]float64, k)
	trees := make([]Tree, 0, p.Trees)

	for round := 0; round < p.Trees; round++ {
		for i := range raw {
			prob := sigmoid(raw[i])
			grad[i] = prob - float64(y[i])
			hess[i] = prob * (1 - prob)
		}

		rows := sampleFraction(rng, n, p.Subsample)
		cols := sampleFraction(rng, k, p.ColSample)

		tree := growBoostedTree(x, grad, hess, rows, cols, p, importance)
		trees = append(trees, tree)

		for i := range x {
			raw[i] += tree.Leaf(x[i]).Value
		}
	}

	normalize(importance)

	return &BoostedModel{trees: trees, importance: importance, numFeatures: k}, nil
}

// BoostedModel is a fitted gradient-boosted ensemble. The base score is 0.5,
// so the raw prediction starts at logit 0.
type BoostedModel struct {
	trees       []Tree
	importance  []float64
	numFeatures int
}

// RawScore returns the unsquashed logit for x.
func (m *BoostedModel) RawScore(x []float64) float64 {
	var score float64
	for i := range m.trees {
		score += m.trees[i].Leaf(x).Value
	}
	return score
}

// PredictProbability returns P(win) for x.
func (m *BoostedModel) PredictProbability(x []float64) float64 {
	return sigmoid(m.RawScore(x))
}

// Predict returns 1 when the win probability exceeds 0.5.
func (m *BoostedModel) Predict(x []float64) int {
	if m.PredictProbability(x) > 0.5 {
		return 1
	}
	return 0
}

// FeatureImportance returns the normalized total split gain per feature.
func (m *BoostedModel) FeatureImportance() []float64 {
	return append([]float64(nil), m.importance...)
}

// TreeEnsemble returns the portable form for export.
func (m *BoostedModel) TreeEnsemble() *TreeEnsemble {
	return &TreeEnsemble{Kind: BoostedScores, Trees: m.trees, NumFeatures: m.numFeatures}
}

func checkTrainingSet(x [][]float64, y []int) error {
	if len(x) == 0 {
		return errors.New("training set is empty")
	}
	if len(x) != len(y) {
		return fmt.Errorf("feature rows and labels disagree: %d vs %d", len(x), len(y))
	}
	wins := 0
	for _, v := range y {
		if v != 0 && v != 1 {
			return fmt.Errorf("labels must be 0 or 1, got %d", v)
		}
		wins += v
	}
	if wins == 0 || wins == len(y) {
		return ErrSingleClass
	}
	return nil
}

func growBoostedTree(x [][]float64, grad, hess []float64, rows, cols []int, p BoostingPolicy, importance []float64) Tree {
	tr := Tree{}

	var build func(rows []int, depth int) int
	build = func(rows []int, depth int) int {
		var gSum, hSum float64
		for _, i := range rows {
			gSum += grad[i]
			hSum += hess[i]
		}

		id := len(tr.Nodes)
		tr.Nodes = append(tr.Nodes, Node{Feature: -1, Left: -1, Right: -1, Samples: float64(len(rows))})

		if depth < p.MaxDepth && len(rows) >= 2 {
			if s := findBoostSplit(x, grad, hess, rows, cols, gSum, hSum, p); s.feature >= 0 {
				importance[s.feature] += s.gain

				var leftRows, rightRows []int
				for _, i := range rows {
					if x[i][s.feature] <= s.threshold {
						leftRows = append(leftRows, i)
					} else {
						rightRows = append(rightRows, i)
					}
				}

				tr.Nodes[id].Feature = s.feature
				tr.Nodes[id].Threshold = s.threshold
				tr.Nodes[id].Gain = s.gain
				left := build(leftRows, depth+1)
				right := build(rightRows, depth+1)
				tr.Nodes[id].Left = left
				tr.Nodes[id].Right = right
				return id
			}
		}

		tr.Nodes[id].Value = leafValue(gSum, hSum, p)
		return id
	}

	build(rows, 0)
	return tr
}

type boostSplit struct {
	feature   int
	threshold float64
	gain      float64
}

func findBoostSplit(x [][]float64, grad, hess []float64, rows, cols []int, gSum, hSum float64, p BoostingPolicy) boostSplit {
	best := boostSplit{feature: -1}
	parent := splitScore(gSum, hSum, p)

	order := make([]int, len(rows))
	for _, f := range cols {
		copy(order, rows)
		sort.Slice(order, func(a, b int) bool { return x[order[a]][f] < x[order[b]][f] })

		var gl, hl float64
		for i := 0; i < len(order)-1; i++ {
			r := order[i]
			gl += grad[r]
			hl += hess[r]
			if x[r][f] == x[order[i+1]][f] {
				continue
			}
			hr := hSum - hl
			if hl < p.MinChildWeight || hr < p.MinChildWeight {
				continue
			}
			gain := 0.5 * (splitScore(gl, hl, p) + splitScore(gSum-gl, hr, p) - parent)
			if gain > best.gain {
				best = boostSplit{
					feature:   f,
					threshold: (x[r][f] + x[order[i+1]][f]) / 2,
					gain:      gain,
				}
			}
		}
	}

	return best
}

// splitScore is the regularized quality term G'^2/(H+lambda) with the L1
// soft threshold applied to the gradient sum.
func splitScore(g, h float64, p BoostingPolicy) float64 {
	t := l1Shrink(g, p.L1)
	return t * t / (h + p.L2)
}

func leafValue(g, h float64, p BoostingPolicy) float64 {
	return -p.LearningRate * l1Shrink(g, p.L1) / (h + p.L2)
}

func l1Shrink(g, alpha float64) float64 {
	switch {
	case g > alpha:
		return g - alpha
	case g < -alpha:
		return g + alpha
	default:
		return 0
	}
}

// sampleFraction draws frac*n distinct indices, sorted ascending.
func sampleFraction(rng *rand.Rand, n int, frac float64) []int {
	if frac >= 1 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	m := int(frac * float64(n))
	if m < 1 {
		m = 1
	}
	idx := append([]int(nil), rng.Perm(n)[:m]...)
	sort.Ints(idx)
	return idx
}
