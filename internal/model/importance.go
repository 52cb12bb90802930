package model

import (
	"fmt"
	"sort"
)

// RankedFeature pairs a feature name with its importance score.
type RankedFeature struct {
	Name  string
	Score float64
}

// TopFeatures ranks features by importance, descending. Equal scores keep
// their original column order.
func TopFeatures(scores []float64, names []string, n int) []RankedFeature {
	ranked := make([]RankedFeature, 0, len(scores))
	for i, s := range scores {
		name := fmt.Sprintf("f%d", i)
		if i < len(names) {
			name = names[i]
		}
		ranked = append(ranked, RankedFeature{Name: name, Score: s})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}
