package retentionmath

import (
	"math"
	"testing"

	"github.com/orogiadon/ltm-system-for-llm/internal/config"
	"github.com/orogiadon/ltm-system-for-llm/internal/record"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name       string
		intensity  int
		decay      float64
		days       float64
		want       float64
	}{
		{"zero days", 80, 0.9, 0, 80},
		{"one day", 100, 0.5, 1, 50},
		{"zero intensity", 0, 0.9, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.intensity, tt.decay, tt.days)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score(%d, %v, %v) = %v, want %v", tt.intensity, tt.decay, tt.days, got, tt.want)
			}
		})
	}
}

func TestInitialDecayCoefficientInterpolatesByIntensity(t *testing.T) {
	cfg := config.Retention{
		DecayByCategory: config.DecayByCategory{
			Work: config.DecayInterval{Min: 0.90, Max: 0.99},
		},
	}
	got := InitialDecayCoefficient(record.CategoryWork, 50, cfg)
	want := 0.90 + (0.99-0.90)*0.5
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("got %v, want %v", got, want)
	}

	if got0 := InitialDecayCoefficient(record.CategoryWork, 0, cfg); math.Abs(got0-0.90) > 1e-9 {
		t.Errorf("intensity 0 should floor at Min, got %v", got0)
	}
	if got100 := InitialDecayCoefficient(record.CategoryWork, 100, cfg); math.Abs(got100-0.99) > 1e-9 {
		t.Errorf("intensity 100 should ceiling at Max, got %v", got100)
	}
}

func TestDetermineLevel(t *testing.T) {
	levels := config.Levels{Level1Threshold: 50, Level2Threshold: 20, Level3Threshold: 5}
	tests := []struct {
		score float64
		want  int
	}{
		{100, 1},
		{50, 1},
		{49.999, 2},
		{20, 2},
		{19.999, 3},
		{5, 3},
		{4.999, 4},
		{0, 4},
	}
	for _, tt := range tests {
		if got := DetermineLevel(tt.score, levels); got != tt.want {
			t.Errorf("DetermineLevel(%v) = %d, want %d", tt.score, got, tt.want)
		}
	}
}

func TestShouldCompressProtectedNeverCompresses(t *testing.T) {
	levels := config.Levels{Level1Threshold: 50, Level2Threshold: 20, Level3Threshold: 5}
	m := &record.Memory{CurrentLevel: 1, RetentionScore: 0, Protected: true}
	should, newLevel := ShouldCompress(m, levels)
	if should {
		t.Fatalf("protected record should never compress")
	}
	if newLevel != m.CurrentLevel {
		t.Fatalf("protected record's level should stay %d, got %d", m.CurrentLevel, newLevel)
	}
}

func TestShouldCompressOnlyAdvancesForward(t *testing.T) {
	levels := config.Levels{Level1Threshold: 50, Level2Threshold: 20, Level3Threshold: 5}

	m := &record.Memory{CurrentLevel: 1, RetentionScore: 10}
	should, newLevel := ShouldCompress(m, levels)
	if !should || newLevel != 3 {
		t.Fatalf("expected compression to level 3, got should=%v level=%d", should, newLevel)
	}

	m2 := &record.Memory{CurrentLevel: 3, RetentionScore: 90}
	should2, newLevel2 := ShouldCompress(m2, levels)
	if should2 {
		t.Fatalf("a rescored-up record should not decompress, got newLevel=%d", newLevel2)
	}
}

func TestCapDecayCoefficient(t *testing.T) {
	if got := CapDecayCoefficient(1.5, 0.999); got != 0.999 {
		t.Errorf("expected cap at 0.999, got %v", got)
	}
	if got := CapDecayCoefficient(0.5, 0.999); got != 0.5 {
		t.Errorf("expected unchanged 0.5, got %v", got)
	}
	if got := CapDecayCoefficient(0, 0.999); got <= 0 {
		t.Errorf("expected a positive floor for non-positive input, got %v", got)
	}
}
