package analysis

import (
	"errors"
	"math"
	"testing"
)

func TestCosineSymmetry(t *testing.T) {
	a := []float32{0.3, -1.2, 4.5}
	b := []float32{2.0, 0.1, -0.7}
	ab, err := CosineSimilarity(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ba, err := CosineSimilarity(b, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ab != ba {
		t.Fatalf("cosine not symmetric: %v vs %v", ab, ba)
	}
}

func TestCosineZeroVector(t *testing.T) {
	got, err := CosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3})
	if err != nil {
		t.Fatalf("zero vector must not error: %v", err)
	}
	if got != 0.0 {
		t.Fatalf("expected 0.0 for zero vector, got %v", got)
	}
}

func TestCosineDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEuclideanDistance(t *testing.T) {
	d, err := EuclideanDistance([]float32{0, 0}, []float32{3, 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(d-5.0) > 1e-9 {
		t.Fatalf("expected 5.0, got %v", d)
	}

	if _, err := EuclideanDistance([]float32{1}, []float32{1, 2}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestMeanVector(t *testing.T) {
	mean, err := MeanVector([][]float32{{1, 2}, {3, 4}, {5, 6}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mean[0] != 3 || mean[1] != 4 {
		t.Fatalf("expected [3 4], got %v", mean)
	}

	if _, err := MeanVector(nil); err == nil {
		t.Fatalf("expected error for empty input")
	}
	if _, err := MeanVector([][]float32{{1}, {1, 2}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}
