package model

// BoostingPolicy fixes the gradient-boosting hyperparameters. The values
// are part of the training contract shared with the inference engine and
// are not runtime configuration.
type BoostingPolicy struct {
	Trees          int
	MaxDepth       int
	LearningRate   float64
	L1             float64
	L2             float64
	MinChildWeight float64
	Subsample      float64
	ColSample      float64
	Seed           int64
}

// DefaultBoostingPolicy returns the production boosting configuration.
func DefaultBoostingPolicy() BoostingPolicy {
	return BoostingPolicy{
		Trees:          100,
		MaxDepth:       4,
		LearningRate:   0.05,
		L1:             0.1,
		L2:             1.0,
		MinChildWeight: 5,
		Subsample:      0.8,
		ColSample:      0.8,
		Seed:           42,
	}
}

// ForestPolicy fixes the random-forest hyperparameters.
type ForestPolicy struct {
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	// MaxFeatures caps the features considered per split; 0 means
	// floor(sqrt(feature count)).
	MaxFeatures int
	// Balanced reweights samples inversely to class frequency.
	Balanced bool
	Seed     int64
}

// DefaultForestPolicy returns the production forest configuration.
func DefaultForestPolicy() ForestPolicy {
	return ForestPolicy{
		Trees:           100,
		MaxDepth:        6,
		MinSamplesSplit: 10,
		MinSamplesLeaf:  5,
		Balanced:        true,
		Seed:            42,
	}
}
