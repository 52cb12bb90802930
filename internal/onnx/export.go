package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"ensemble-trainer/internal/model"
)

const (
	irVersion           = 8
	mlOpsetVersion      = 1
	defaultOpsetVersion = 13
	producerName        = "ensemble-trainer"
	producerVersion     = "1.0"
)

// Tensor names shared between exported graphs and the inference session.
const (
	InputName         = "float_input"
	LabelOutput       = "label"
	ProbabilityOutput = "probabilities"
)

// Export writes the ensemble to path as an ONNX TreeEnsembleClassifier
// artifact and returns the artifact size in bytes.
func Export(path string, ens *model.TreeEnsemble) (int, error) {
	m, err := BuildModel(ens)
	if err != nil {
		return 0, fmt.Errorf("failed to build ONNX graph: %w", err)
	}

	data := m.Marshal()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write model file: %w", err)
	}

	log.Info().
		Str("path", path).
		Int("bytes", len(data)).
		Int("trees", len(ens.Trees)).
		Msg("Model exported")
	return len(data), nil
}

// BuildModel converts a fitted ensemble into an ONNX model with the
// canonical signature: float input [N, features], int64 labels [N] and a
// dense float probability tensor [N, 2].
func BuildModel(ens *model.TreeEnsemble) (*Model, error) {
	if ens == nil || len(ens.Trees) == 0 {
		return nil, errors.New("tree ensemble is empty")
	}
	if ens.NumFeatures <= 0 {
		return nil, errors.New("tree ensemble has no feature count")
	}

	attrs, err := classifierAttributes(ens)
	if err != nil {
		return nil, err
	}

	graph := Graph{
		Name: "trade_win_classifier",
		Nodes: []NodeProto{{
			Inputs:     []string{InputName},
			Outputs:    []string{LabelOutput, ProbabilityOutput},
			Name:       "TreeEnsembleClassifier",
			OpType:     "TreeEnsembleClassifier",
			Domain:     "ai.onnx.ml",
			Attributes: attrs,
		}},
		Inputs: []ValueInfo{{
			Name: InputName,
			Type: TensorType{
				ElemType: TensorFloat,
				Dims:     []Dim{{Param: "N"}, {Value: int64(ens.NumFeatures)}},
			},
		}},
		Outputs: []ValueInfo{
			{
				Name: LabelOutput,
				Type: TensorType{ElemType: TensorInt64, Dims: []Dim{{Param: "N"}}},
			},
			{
				Name: ProbabilityOutput,
				Type: TensorType{
					ElemType: TensorFloat,
					Dims:     []Dim{{Param: "N"}, {Value: 2}},
				},
			},
		},
	}

	return &Model{
		IRVersion: irVersion,
		OpsetImports: []OperatorSet{
			{Domain: "ai.onnx.ml", Version: mlOpsetVersion},
			{Domain: "", Version: defaultOpsetVersion},
		},
		ProducerName:    producerName,
		ProducerVersion: producerVersion,
		Graph:           graph,
	}, nil
}

// classifierAttributes flattens every tree into the parallel node arrays the
// TreeEnsembleClassifier operator expects. Node ids are positions within
// their tree's Nodes slice, so the root is always node 0.
func classifierAttributes(ens *model.TreeEnsemble) ([]Attribute, error) {
	var (
		nodeTreeIDs  []int64
		nodeIDs      []int64
		featureIDs   []int64
		modes        [][]byte
		values       []float32
		trueIDs      []int64
		falseIDs     []int64
		missingTrack []int64

		classTreeIDs []int64
		classNodeIDs []int64
		classIDs     []int64
		classWeights []float32
	)

	treeCount := float32(len(ens.Trees))
	for ti := range ens.Trees {
		tree := &ens.Trees[ti]
		if len(tree.Nodes) == 0 {
			return nil, fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni := range tree.Nodes {
			n := &tree.Nodes[ni]
			nodeTreeIDs = append(nodeTreeIDs, int64(ti))
			nodeIDs = append(nodeIDs, int64(ni))
			missingTrack = append(missingTrack, 0)

			if n.Feature >= 0 {
				if n.Feature >= ens.NumFeatures {
					return nil, fmt.Errorf("tree %d node %d: feature %d out of range %d", ti, ni, n.Feature, ens.NumFeatures)
				}
				if n.Left <= 0 || n.Left >= len(tree.Nodes) || n.Right <= 0 || n.Right >= len(tree.Nodes) {
					return nil, fmt.Errorf("tree %d node %d: child index out of range", ti, ni)
				}
				modes = append(modes, []byte("BRANCH_LEQ"))
				featureIDs = append(featureIDs, int64(n.Feature))
				values = append(values, float32(n.Threshold))
				trueIDs = append(trueIDs, int64(n.Left))
				falseIDs = append(falseIDs, int64(n.Right))
				continue
			}

			modes = append(modes, []byte("LEAF"))
			featureIDs = append(featureIDs, 0)
			values = append(values, 0)
			trueIDs = append(trueIDs, 0)
			falseIDs = append(falseIDs, 0)

			classTreeIDs = append(classTreeIDs, int64(ti), int64(ti))
			classNodeIDs = append(classNodeIDs, int64(ni), int64(ni))
			classIDs = append(classIDs, 0, 1)
			switch ens.Kind {
			case model.BoostedScores:
				// Mirrored raw scores per class so the LOGISTIC
				// transform yields [1-p, p].
				classWeights = append(classWeights, float32(-n.Value), float32(n.Value))
			case model.AveragedDistributions:
				if len(n.Dist) != 2 {
					return nil, fmt.Errorf("tree %d node %d: leaf distribution has %d classes", ti, ni, len(n.Dist))
				}
				classWeights = append(classWeights, float32(n.Dist[0])/treeCount, float32(n.Dist[1])/treeCount)
			default:
				return nil, fmt.Errorf("unsupported ensemble kind %d", ens.Kind)
			}
		}
	}

	postTransform := "NONE"
	if ens.Kind == model.BoostedScores {
		postTransform = "LOGISTIC"
	}

	return []Attribute{
		{Name: "base_values", Type: AttrFloats, Floats: []float32{0, 0}},
		{Name: "class_ids", Type: AttrInts, Ints: classIDs},
		{Name: "class_nodeids", Type: AttrInts, Ints: classNodeIDs},
		{Name: "class_treeids", Type: AttrInts, Ints: classTreeIDs},
		{Name: "class_weights", Type: AttrFloats, Floats: classWeights},
		{Name: "classlabels_int64s", Type: AttrInts, Ints: []int64{0, 1}},
		{Name: "nodes_falsenodeids", Type: AttrInts, Ints: falseIDs},
		{Name: "nodes_featureids", Type: AttrInts, Ints: featureIDs},
		{Name: "nodes_missing_value_tracks_true", Type: AttrInts, Ints: missingTrack},
		{Name: "nodes_modes", Type: AttrStrings, Strings: modes},
		{Name: "nodes_nodeids", Type: AttrInts, Ints: nodeIDs},
		{Name: "nodes_treeids", Type: AttrInts, Ints: nodeTreeIDs},
		{Name: "nodes_truenodeids", Type: AttrInts, Ints: trueIDs},
		{Name: "nodes_values", Type: AttrFloats, Floats: values},
		{Name: "post_transform", Type: AttrString, S: []byte(postTransform)},
	}, nil
}
