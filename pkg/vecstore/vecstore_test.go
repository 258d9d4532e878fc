package vecstore

import "testing"

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 0},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 1},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, 2},
		{"similar", []float32{1, 0.1, 0}, []float32{1, 0, 0}, 0.005},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineDistance(tt.a, tt.b)
			if diff := got - tt.want; diff > 0.01 || diff < -0.01 {
				t.Errorf("CosineDistance = %f, want ~%f", got, tt.want)
			}
		})
	}
}

func TestCosineDistanceEdgeCases(t *testing.T) {
	// Dimension mismatch.
	d := CosineDistance([]float32{1, 0}, []float32{1, 0, 0})
	if d != 2 {
		t.Errorf("dimension mismatch: got %f, want 2", d)
	}
	// Zero vector.
	d = CosineDistance([]float32{0, 0, 0}, []float32{1, 0, 0})
	if d != 0 {
		t.Errorf("zero vector: got %f, want 0", d)
	}
}
