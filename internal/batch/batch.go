// Package batch implements the date-gated daily maintenance pipeline:
// reinforce -> age -> rescore -> compress -> revive -> relink -> purge ->
// mark completion. Each step reads the affected record set, applies a pure
// transform, writes the result back, then cascades to the next step.
package batch

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/orogiadon/ltm-system-for-llm/internal/analyzer"
	"github.com/orogiadon/ltm-system-for-llm/internal/config"
	"github.com/orogiadon/ltm-system-for-llm/internal/record"
	"github.com/orogiadon/ltm-system-for-llm/internal/reinforce"
	"github.com/orogiadon/ltm-system-for-llm/internal/relations"
	"github.com/orogiadon/ltm-system-for-llm/internal/retentionmath"
	"github.com/orogiadon/ltm-system-for-llm/internal/store"
	"github.com/orogiadon/ltm-system-for-llm/pkg/embed"
)

// Result summarizes one batch invocation.
type Result struct {
	Skipped     bool
	Reinforced  int
	Aged        int
	Compressed  int
	Revived     int
	RelinkEdits int
	Deleted     int
}

// Runner executes the batch pipeline against a Store.
type Runner struct {
	Store    *store.Store
	Embedder embed.Embedder
	Analyzer analyzer.Analyzer
	Config   config.Config
	Now      func() time.Time // overridable for tests; defaults to time.Now
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run executes one idempotent pass of the pipeline. force bypasses the
// date gate.
func (r *Runner) Run(ctx context.Context, force bool) (Result, error) {
	now := r.now()

	last, ok, err := r.Store.LastCompressionRun(ctx)
	if err != nil {
		return Result{}, err
	}
	if ok && !force && sameLocalDate(last, now) {
		return Result{Skipped: true}, nil
	}

	var res Result

	active, err := r.Store.GetActive(ctx)
	if err != nil {
		return Result{}, err
	}

	// Step 2: recall reinforcement.
	maxDecay := r.Config.Retention().MaxDecayCoefficient
	reinforced := make(map[string]bool)
	for _, m := range active {
		if !m.RecalledSinceLastBatch {
			continue
		}
		reinforce.Apply(m, r.Config.Recall(), maxDecay)
		if err := r.Store.Update(ctx, m.ID, m); err != nil {
			return Result{}, err
		}
		reinforced[m.ID] = true
		res.Reinforced++
	}

	// Step 3: aging — only records that were unflagged before reinforcement.
	for _, m := range active {
		if reinforced[m.ID] {
			continue
		}
		m.MemoryDays += 1.0
		if err := r.Store.Update(ctx, m.ID, m); err != nil {
			return Result{}, err
		}
		res.Aged++
	}

	// Step 4: rescore.
	for _, m := range active {
		m.RetentionScore = retentionmath.UpdateScore(m)
		if err := r.Store.Update(ctx, m.ID, m); err != nil {
			return Result{}, err
		}
	}

	// Step 5: compression sweep.
	newlyArchivedOrLinked := make(map[string]struct{})
	for _, m := range active {
		should, newLevel := retentionmath.ShouldCompress(m, r.Config.Levels())
		if !should {
			continue
		}
		if err := r.compress(ctx, m, newLevel); err != nil {
			return Result{}, fmt.Errorf("batch: compress %s: %w", m.ID, err)
		}
		if err := r.Store.Update(ctx, m.ID, m); err != nil {
			return Result{}, err
		}
		res.Compressed++
		if newLevel == 4 {
			newlyArchivedOrLinked[m.ID] = struct{}{}
		}
	}

	// Step 6: revival.
	archived, err := r.Store.GetArchived(ctx)
	if err != nil {
		return Result{}, err
	}
	var stillArchived []*record.Memory
	for _, m := range archived {
		if !m.RevivalRequested {
			stillArchived = append(stillArchived, m)
			continue
		}
		r.revive(m, now)
		if err := r.Store.Update(ctx, m.ID, m); err != nil {
			return Result{}, err
		}
		res.Revived++
		newlyArchivedOrLinked[m.ID] = struct{}{}
	}

	// Step 7: relations, three phases in order. Integrity sweep and direction
	// reevaluation run over every record, archived included, so an archived
	// record that references a deleted id gets swept and an edge from an
	// archived record into a higher-scored active one still gets reversed.
	// Auto-linking stays restricted to non-archived candidates.
	all, err := r.Store.GetAll(ctx, true)
	if err != nil {
		return Result{}, err
	}

	changed := relations.IntegritySweep(all)
	res.RelinkEdits += len(changed)

	changed = relations.ReevaluateDirection(all, r.Config.Relations())
	res.RelinkEdits += len(changed)

	nonArchived := make([]*record.Memory, 0, len(all))
	for _, m := range all {
		if !m.IsArchived() {
			nonArchived = append(nonArchived, m)
		}
	}
	linked := relations.AutoLink(nonArchived, newlyArchivedOrLinked, r.Config.Relations())
	res.RelinkEdits += len(linked)

	allTouched := make(map[string]*record.Memory)
	for _, m := range all {
		allTouched[m.ID] = m
	}
	for id := range allTouched {
		if err := r.Store.Update(ctx, id, allTouched[id]); err != nil {
			return Result{}, err
		}
	}

	// Step 8: auto-delete.
	if r.Config.Archive().AutoDeleteEnabled {
		deleted, err := r.autoDelete(ctx, stillArchived, now)
		if err != nil {
			return Result{}, err
		}
		res.Deleted = deleted
	}

	// Step 9: mark completion — written last so a cancelled batch repeats.
	if err := r.Store.SetLastCompressionRun(ctx, now); err != nil {
		return Result{}, err
	}

	return res, nil
}

func sameLocalDate(a, b time.Time) bool {
	a, b = a.Local(), b.Local()
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// compress mutates m in place: rewrites trigger/content (and regenerates the
// embedding) via the Analyzer, advances current_level, and archives at
// level 4. If the external call fails the level change is still applied
// and text/embedding are left unchanged.
func (r *Runner) compress(ctx context.Context, m *record.Memory, newLevel int) error {
	switch {
	case m.CurrentLevel == 1 && newLevel == 2:
		res, err := r.Analyzer.CompressToLevel2(ctx, m.Trigger, m.Content)
		if err == nil {
			m.Trigger, m.Content = res.Trigger, res.Content
			r.regenerateEmbedding(ctx, m)
		}
	case m.CurrentLevel <= 2 && newLevel >= 3:
		res, err := r.Analyzer.CompressToLevel3(ctx, m.Trigger, m.Content)
		if err == nil {
			m.Trigger, m.Content = res.Trigger, res.Content
			r.regenerateEmbedding(ctx, m)
		}
	}

	m.CurrentLevel = newLevel
	if newLevel == 4 {
		now := r.now()
		m.ArchivedAt = &now
	}
	return nil
}

func (r *Runner) regenerateEmbedding(ctx context.Context, m *record.Memory) {
	text := m.Trigger + " " + m.Content
	v, err := r.Embedder.Embed(ctx, text)
	if err != nil {
		return // keep the stale embedding rather than fail the batch
	}
	m.Embedding = v
}

// revive mutates an archived record back to level 3.
func (r *Runner) revive(m *record.Memory, now time.Time) {
	daysInArchive := math.Floor(now.Sub(*m.ArchivedAt).Hours() / 24)
	cfg := r.Config.Archive()
	decayed := float64(m.EmotionalIntensity) * math.Pow(cfg.RevivalDecayPerDay, daysInArchive)
	floor := r.Config.Levels().Level3Threshold + cfg.RevivalMinMargin
	newScore := math.Max(decayed, floor)

	m.ArchivedAt = nil
	m.CurrentLevel = 3
	m.RetentionScore = newScore
	m.RevivalRequested = false
	m.RevivalRequestedAt = nil
}

// autoDelete evaluates the configured delete conditions over archived,
// non-protected records and removes matches.
func (r *Runner) autoDelete(ctx context.Context, archived []*record.Memory, now time.Time) (int, error) {
	cfg := r.Config.Archive()
	retentionCutoff := now.AddDate(0, 0, -cfg.RetentionDays)

	deleted := 0
	for _, m := range archived {
		if m.Protected || m.ArchivedAt == nil {
			continue
		}

		conditions := []bool{
			m.ArchivedAt.Before(retentionCutoff),
			m.EmotionalIntensity <= cfg.DeleteMaxIntensity,
		}
		if cfg.DeleteRequireZeroRecall {
			conditions = append(conditions, m.RecallCount == 0)
		}

		var match bool
		if cfg.DeleteConditionMode == "OR" {
			match = false
			for _, c := range conditions {
				match = match || c
			}
		} else {
			match = true
			for _, c := range conditions {
				match = match && c
			}
		}

		if match {
			if err := r.Store.Delete(ctx, m.ID); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
	return deleted, nil
}
