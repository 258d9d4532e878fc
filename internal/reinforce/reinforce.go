// Package reinforce implements recall reinforcement: the per-record update
// Batch applies to any record retrieval has flagged since the last run.
package reinforce

import (
	"github.com/orogiadon/ltm-system-for-llm/internal/config"
	"github.com/orogiadon/ltm-system-for-llm/internal/record"
	"github.com/orogiadon/ltm-system-for-llm/internal/retentionmath"
)

// Apply mutates m in place: halves memory_days, raises decay_coefficient by
// the configured boost (capped), increments recall_count, and clears the
// recalled flag. Callers must only invoke this on active records with
// RecalledSinceLastBatch set — Batch enforces that precondition.
func Apply(m *record.Memory, cfg config.Recall, maxDecay float64) {
	m.MemoryDays *= cfg.MemoryDaysReduction
	m.DecayCoefficient = retentionmath.CapDecayCoefficient(m.DecayCoefficient+cfg.DecayCoefficientBoost, maxDecay)
	m.RecallCount++
	m.RecalledSinceLastBatch = false
}
