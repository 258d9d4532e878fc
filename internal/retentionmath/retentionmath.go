// Package retentionmath implements the pure retention-score arithmetic:
// decay scoring, initial decay-coefficient interpolation, level
// determination, and the compression predicate. Nothing in this package
// touches the Store or any external collaborator.
package retentionmath

import (
	"math"

	"github.com/orogiadon/ltm-system-for-llm/internal/config"
	"github.com/orogiadon/ltm-system-for-llm/internal/record"
)

// Score computes retention_score = emotional_intensity * decay_coefficient^memory_days.
func Score(emotionalIntensity int, decayCoefficient, memoryDays float64) float64 {
	return float64(emotionalIntensity) * math.Pow(decayCoefficient, memoryDays)
}

// UpdateScore recomputes and returns the retention score for a record from
// its current fields, without mutating it.
func UpdateScore(m *record.Memory) float64 {
	return Score(m.EmotionalIntensity, m.DecayCoefficient, m.MemoryDays)
}

// InitialDecayCoefficient linearly interpolates the category's configured
// [min, max] interval by emotionalIntensity/100.
func InitialDecayCoefficient(category record.Category, emotionalIntensity int, cfg config.Retention) float64 {
	r := cfg.DecayByCategory.For(category)
	ratio := float64(emotionalIntensity) / 100.0
	return r.Min + (r.Max-r.Min)*ratio
}

// DetermineLevel maps a retention score to a compression level using the
// three-threshold definition: T1 >= level1, T2 <= score < T1 -> level 2,
// T3 <= score < T2 -> level 3, score < T3 -> level 4 (archived).
//
// See DESIGN.md for why this keeps the full three-threshold level 3 rather
// than collapsing directly to level 4 below T2.
func DetermineLevel(score float64, levels config.Levels) int {
	switch {
	case score >= levels.Level1Threshold:
		return 1
	case score >= levels.Level2Threshold:
		return 2
	case score >= levels.Level3Threshold:
		return 3
	default:
		return 4
	}
}

// ShouldCompress evaluates the compression predicate for m against its
// freshly recomputed retention score. Protected records never compress.
// Compression triggers only when the newly determined level is strictly
// greater (more compressed) than the current level.
func ShouldCompress(m *record.Memory, levels config.Levels) (should bool, newLevel int) {
	newLevel = DetermineLevel(m.RetentionScore, levels)
	if m.Protected {
		return false, m.CurrentLevel
	}
	if newLevel > m.CurrentLevel {
		return true, newLevel
	}
	return false, m.CurrentLevel
}

// CapDecayCoefficient clamps c to (0, maxDecay].
func CapDecayCoefficient(c, maxDecay float64) float64 {
	if c > maxDecay {
		return maxDecay
	}
	if c <= 0 {
		return math.SmallestNonzeroFloat64
	}
	return c
}
