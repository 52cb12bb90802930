package onnx

import (
	"errors"
	"fmt"
	"math"
	"os"
)

// Session executes a TreeEnsembleClassifier graph decoded from an ONNX
// artifact. Scoring depends only on the decoded attributes, never on the
// trainer that produced the file, which is what makes round-trip checks
// meaningful.
type Session struct {
	numFeatures int
	op          *treeClassifier
}

type treeNode struct {
	leaf      bool
	feature   int
	threshold float32
	trueID    int64
	falseID   int64
}

type leafScore struct {
	class  int
	weight float32
}

type treeClassifier struct {
	treeOrder     []int64
	nodes         map[int64]map[int64]*treeNode
	leaves        map[[2]int64][]leafScore
	labels        []int64
	baseValues    []float32
	postTransform string
}

// Open reads and decodes an ONNX artifact from disk.
func Open(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return NewSession(data)
}

// NewSession decodes an ONNX model from raw bytes.
func NewSession(data []byte) (*Session, error) {
	m, err := ParseModel(data)
	if err != nil {
		return nil, err
	}

	var node *NodeProto
	for i := range m.Graph.Nodes {
		if m.Graph.Nodes[i].OpType == "TreeEnsembleClassifier" {
			node = &m.Graph.Nodes[i]
			break
		}
	}
	if node == nil {
		return nil, errors.New("model has no TreeEnsembleClassifier node")
	}

	if len(m.Graph.Inputs) != 1 {
		return nil, fmt.Errorf("model has %d inputs, want 1", len(m.Graph.Inputs))
	}
	dims := m.Graph.Inputs[0].Type.Dims
	if len(dims) != 2 || dims[1].Value <= 0 {
		return nil, errors.New("model input is not a [batch, features] tensor")
	}

	op, err := newTreeClassifier(node)
	if err != nil {
		return nil, err
	}
	return &Session{numFeatures: int(dims[1].Value), op: op}, nil
}

// NumFeatures reports the feature count of the graph input.
func (s *Session) NumFeatures() int { return s.numFeatures }

// Run scores a batch of feature rows. It returns one predicted label and
// one probability row per input, probabilities ordered by class label.
func (s *Session) Run(batch [][]float32) ([]int64, [][]float32, error) {
	labels := make([]int64, len(batch))
	probs := make([][]float32, len(batch))
	for i, x := range batch {
		if len(x) != s.numFeatures {
			return nil, nil, fmt.Errorf("row %d: got %d features, want %d", i, len(x), s.numFeatures)
		}
		scores, err := s.op.score(x)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i, err)
		}
		best := 0
		for c := 1; c < len(scores); c++ {
			if scores[c] > scores[best] {
				best = c
			}
		}
		labels[i] = s.op.labels[best]
		probs[i] = scores
	}
	return labels, probs, nil
}

func newTreeClassifier(node *NodeProto) (*treeClassifier, error) {
	attrs := make(map[string]*Attribute, len(node.Attributes))
	for i := range node.Attributes {
		attrs[node.Attributes[i].Name] = &node.Attributes[i]
	}
	ints := func(name string) []int64 {
		if a, ok := attrs[name]; ok {
			return a.Ints
		}
		return nil
	}
	floats := func(name string) []float32 {
		if a, ok := attrs[name]; ok {
			return a.Floats
		}
		return nil
	}

	op := &treeClassifier{
		nodes:         make(map[int64]map[int64]*treeNode),
		leaves:        make(map[[2]int64][]leafScore),
		labels:        ints("classlabels_int64s"),
		baseValues:    floats("base_values"),
		postTransform: "NONE",
	}
	if a, ok := attrs["post_transform"]; ok && len(a.S) > 0 {
		op.postTransform = string(a.S)
	}
	if len(op.labels) == 0 {
		return nil, errors.New("model has no class labels")
	}

	treeIDs := ints("nodes_treeids")
	nodeIDs := ints("nodes_nodeids")
	featureIDs := ints("nodes_featureids")
	values := floats("nodes_values")
	trueIDs := ints("nodes_truenodeids")
	falseIDs := ints("nodes_falsenodeids")
	var modes [][]byte
	if a, ok := attrs["nodes_modes"]; ok {
		modes = a.Strings
	}

	count := len(treeIDs)
	if count == 0 ||
		len(nodeIDs) != count || len(featureIDs) != count ||
		len(values) != count || len(trueIDs) != count ||
		len(falseIDs) != count || len(modes) != count {
		return nil, errors.New("tree node attributes disagree in length")
	}

	for i := 0; i < count; i++ {
		mode := string(modes[i])
		if mode != "LEAF" && mode != "BRANCH_LEQ" {
			return nil, fmt.Errorf("unsupported node mode %q", mode)
		}
		byID, ok := op.nodes[treeIDs[i]]
		if !ok {
			byID = make(map[int64]*treeNode)
			op.nodes[treeIDs[i]] = byID
			op.treeOrder = append(op.treeOrder, treeIDs[i])
		}
		byID[nodeIDs[i]] = &treeNode{
			leaf:      mode == "LEAF",
			feature:   int(featureIDs[i]),
			threshold: values[i],
			trueID:    trueIDs[i],
			falseID:   falseIDs[i],
		}
	}

	classTree := ints("class_treeids")
	classNode := ints("class_nodeids")
	classID := ints("class_ids")
	classWeight := floats("class_weights")
	if len(classTree) == 0 ||
		len(classNode) != len(classTree) ||
		len(classID) != len(classTree) ||
		len(classWeight) != len(classTree) {
		return nil, errors.New("leaf weight attributes disagree in length")
	}
	for i := range classTree {
		if classID[i] < 0 || classID[i] >= int64(len(op.labels)) {
			return nil, fmt.Errorf("class id %d out of range", classID[i])
		}
		key := [2]int64{classTree[i], classNode[i]}
		op.leaves[key] = append(op.leaves[key], leafScore{class: int(classID[i]), weight: classWeight[i]})
	}
	return op, nil
}

func (op *treeClassifier) score(x []float32) ([]float32, error) {
	scores := make([]float32, len(op.labels))
	copy(scores, op.baseValues)

	for _, tid := range op.treeOrder {
		byID := op.nodes[tid]
		nid := int64(0)
		for steps := 0; ; steps++ {
			if steps > len(byID) {
				return nil, fmt.Errorf("tree %d: traversal does not terminate", tid)
			}
			node, ok := byID[nid]
			if !ok {
				return nil, fmt.Errorf("tree %d: missing node %d", tid, nid)
			}
			if node.leaf {
				entries, ok := op.leaves[[2]int64{tid, nid}]
				if !ok {
					return nil, fmt.Errorf("tree %d: leaf %d has no class weights", tid, nid)
				}
				for _, e := range entries {
					scores[e.class] += e.weight
				}
				break
			}
			if node.feature < 0 || node.feature >= len(x) {
				return nil, fmt.Errorf("tree %d: feature %d out of range", tid, node.feature)
			}
			if x[node.feature] <= node.threshold {
				nid = node.trueID
			} else {
				nid = node.falseID
			}
		}
	}

	switch op.postTransform {
	case "NONE":
	case "LOGISTIC":
		for i, v := range scores {
			scores[i] = float32(1 / (1 + math.Exp(-float64(v))))
		}
	default:
		return nil, fmt.Errorf("unsupported post transform %q", op.postTransform)
	}
	return scores, nil
}
