package model

import "testing"

func TestTopFeatures(t *testing.T) {
	scores := []float64{0.1, 0.4, 0.4, 0.05, 0.05}
	names := []string{"a", "b", "c", "d", "e"}

	top := TopFeatures(scores, names, 3)

	if len(top) != 3 {
		t.Fatalf("expected 3 features, got %d", len(top))
	}
	// b and c tie at 0.4; b comes first because stable ranking keeps the
	// original column order.
	if top[0].Name != "b" || top[1].Name != "c" || top[2].Name != "a" {
		t.Errorf("unexpected ranking: %v", top)
	}
	if top[0].Score != 0.4 {
		t.Errorf("expected score 0.4, got %v", top[0].Score)
	}
}

func TestTopFeaturesClampsCount(t *testing.T) {
	top := TopFeatures([]float64{0.7, 0.3}, []string{"a", "b"}, 10)
	if len(top) != 2 {
		t.Fatalf("expected 2 features, got %d", len(top))
	}
	if top[0].Name != "a" {
		t.Errorf("expected a first, got %s", top[0].Name)
	}
}

func TestTopFeaturesFallbackNames(t *testing.T) {
	top := TopFeatures([]float64{0.2, 0.8}, nil, 2)
	if top[0].Name != "f1" {
		t.Errorf("expected positional fallback name f1, got %s", top[0].Name)
	}
}
