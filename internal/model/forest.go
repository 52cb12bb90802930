package model

import (
	"math"
	"math/rand"
	"sort"
)

// ForestTrainer fits a bootstrap-aggregated forest of Gini trees with
// class-balanced sample weights.
type ForestTrainer struct {
	Policy ForestPolicy
}

// NewForestTrainer returns a trainer with the production policy.
func NewForestTrainer() *ForestTrainer {
	return &ForestTrainer{Policy: DefaultForestPolicy()}
}

// Fit trains the forest. The returned model is immutable and deterministic
// for a fixed policy seed.
func (t *ForestTrainer) Fit(x [][]float64, y []int) (*ForestModel, error) {
	if err := checkTrainingSet(x, y); err != nil {
		return nil, err
	}

	p := t.Policy
	n := len(x)
	k := len(x[0])

	maxFeatures := p.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(k)))
	}
	if maxFeatures > k {
		maxFeatures = k
	}

	// Balanced weighting: each class contributes half the total weight,
	// computed on the full training window before bootstrapping.
	classWeight := [2]float64{1, 1}
	if p.Balanced {
		wins := 0
		for _, v := range y {
			wins += v
		}
		classWeight[0] = float64(n) / (2 * float64(n-wins))
		classWeight[1] = float64(n) / (2 * float64(wins))
	}

	rng := rand.New(rand.NewSource(p.Seed))
	importance := make([]float64, k)
	treeImportance := make([]float64, k)
	trees := make([]Tree, 0, p.Trees)
	sample := make([]int, n)

	for round := 0; round < p.Trees; round++ {
		for i := range sample {
			sample[i] = rng.Intn(n)
		}

		tree := growForestTree(x, y, sample, classWeight, maxFeatures, p, rng, treeImportance)
		trees = append(trees, tree)

		normalize(treeImportance)
		for i, v := range treeImportance {
			importance[i] += v
			treeImportance[i] = 0
		}
	}

	for i := range importance {
		importance[i] /= float64(p.Trees)
	}
	normalize(importance)

	return &ForestModel{trees: trees, importance: importance, numFeatures: k}, nil
}

// ForestModel is a fitted random forest.
type ForestModel struct {
	trees       []Tree
	importance  []float64
	numFeatures int
}

// PredictProbability returns P(win): the mean of the weighted win fraction
// in the leaf each tree routes x to.
func (m *ForestModel) PredictProbability(x []float64) float64 {
	var p float64
	for i := range m.trees {
		p += m.trees[i].Leaf(x).Dist[1]
	}
	return p / float64(len(m.trees))
}

// Predict returns 1 when the win probability exceeds 0.5.
func (m *ForestModel) Predict(x []float64) int {
	if m.PredictProbability(x) > 0.5 {
		return 1
	}
	return 0
}

// FeatureImportance returns the normalized mean impurity decrease per
// feature.
func (m *ForestModel) FeatureImportance() []float64 {
	return append([]float64(nil), m.importance...)
}

// TreeEnsemble returns the portable form for export.
func (m *ForestModel) TreeEnsemble() *TreeEnsemble {
	return &TreeEnsemble{Kind: AveragedDistributions, Trees: m.trees, NumFeatures: m.numFeatures}
}

func growForestTree(x [][]float64, y []int, rows []int, classWeight [2]float64, maxFeatures int, p ForestPolicy, rng *rand.Rand, importance []float64) Tree {
	var rootWeight float64
	for _, i := range rows {
		rootWeight += classWeight[y[i]]
	}

	tr := Tree{}
	var build func(rows []int, depth int) int
	build = func(rows []int, depth int) int {
		var w [2]float64
		for _, i := range rows {
			w[y[i]] += classWeight[y[i]]
		}
		total := w[0] + w[1]
		impurity := gini(w)

		id := len(tr.Nodes)
		tr.Nodes = append(tr.Nodes, Node{Feature: -1, Left: -1, Right: -1, Samples: total})

		if depth < p.MaxDepth && len(rows) >= p.MinSamplesSplit && impurity > 0 {
			if s := findForestSplit(x, y, rows, classWeight, maxFeatures, p, rng, w); s.feature >= 0 {
				decrease := total*impurity - s.leftWeight*s.leftImpurity - s.rightWeight*s.rightImpurity
				importance[s.feature] += decrease / rootWeight

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
				tr.Nodes[id].Gain = decrease
				left := build(leftRows, depth+1)
				right := build(rightRows, depth+1)
				tr.Nodes[id].Left = left
				tr.Nodes[id].Right = right
				return id
			}
		}

		tr.Nodes[id].Dist = []float64{w[0] / total, w[1] / total}
		return id
	}

	build(rows, 0)
	return tr
}

type forestSplit struct {
	feature       int
	threshold     float64
	leftWeight    float64
	rightWeight   float64
	leftImpurity  float64
	rightImpurity float64
}

func findForestSplit(x [][]float64, y []int, rows []int, classWeight [2]float64, maxFeatures int, p ForestPolicy, rng *rand.Rand, w [2]float64) forestSplit {
	best := forestSplit{feature: -1}
	bestChild := math.Inf(1)

	order := make([]int, len(rows))
	feats := rng.Perm(len(x[0]))[:maxFeatures]

	for _, f := range feats {
		copy(order, rows)
		sort.Slice(order, func(a, b int) bool { return x[order[a]][f] < x[order[b]][f] })

		var wl [2]float64
		for i := 0; i < len(order)-1; i++ {
			r := order[i]
			wl[y[r]] += classWeight[y[r]]
			if x[r][f] == x[order[i+1]][f] {
				continue
			}
			if i+1 < p.MinSamplesLeaf || len(order)-i-1 < p.MinSamplesLeaf {
				continue
			}

			wr := [2]float64{w[0] - wl[0], w[1] - wl[1]}
			leftTotal := wl[0] + wl[1]
			rightTotal := wr[0] + wr[1]
			leftGini := gini(wl)
			rightGini := gini(wr)

			child := leftTotal*leftGini + rightTotal*rightGini
			if child < bestChild {
				bestChild = child
				best = forestSplit{
					feature:       f,
					threshold:     (x[r][f] + x[order[i+1]][f]) / 2,
					leftWeight:    leftTotal,
					rightWeight:   rightTotal,
					leftImpurity:  leftGini,
					rightImpurity: rightGini,
				}
			}
		}
	}

	return best
}

func gini(w [2]float64) float64 {
	total := w[0] + w[1]
	if total == 0 {
		return 0
	}
	p0 := w[0] / total
	p1 := w[1] / total
	return 1 - p0*p0 - p1*p1
}
