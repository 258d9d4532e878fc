// Package resonance implements the pure emotional-affinity scalar used by
// Retrieval's relevance bonus term.
package resonance

import (
	"math"

	"github.com/orogiadon/ltm-system-for-llm/internal/config"
	"github.com/orogiadon/ltm-system-for-llm/internal/record"
)

// Snapshot is a live emotion reading supplied by the Analyzer when
// classifying a retrieval prompt.
type Snapshot struct {
	Valence record.Valence
	Arousal int // 0..100
	Tags    []string
}

// Score computes the resonance between a memory's emotional fields and a
// live Snapshot:
//
//	resonance = (valence matches ? alpha_v : 0)
//	          + max(0, alpha_a * (1 - |mem.arousal - q.arousal| / 100))
//	          + w_t * (|mem.tags ∩ q.tags| / max(|mem.tags|, |q.tags|))   when both non-empty
func Score(m *record.Memory, q Snapshot, cfg config.Resonance) float64 {
	var score float64

	if m.EmotionalValence == q.Valence {
		score += cfg.ValenceMatchBonus
	}

	arousalDiff := math.Abs(float64(m.EmotionalArousal-q.Arousal)) / 100.0
	if proximity := cfg.ArousalProximityBonus * (1 - arousalDiff); proximity > 0 {
		score += proximity
	}

	if len(m.EmotionalTags) > 0 && len(q.Tags) > 0 {
		overlap := tagOverlap(m.EmotionalTags, q.Tags)
		denom := len(m.EmotionalTags)
		if len(q.Tags) > denom {
			denom = len(q.Tags)
		}
		score += cfg.TagsOverlapWeight * (float64(overlap) / float64(denom))
	}

	return score
}

func tagOverlap(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	n := 0
	for _, t := range b {
		if _, ok := set[t]; ok {
			n++
		}
	}
	return n
}
