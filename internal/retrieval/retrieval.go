// Package retrieval implements the per-prompt relevance scorer and graph
// expansion: category-normalized retention, squared cosine similarity,
// recall-count weighting, categorical boost, emotional resonance, top-K
// ranking with fallback, and graph expansion with recall/revival side
// effects.
package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/orogiadon/ltm-system-for-llm/internal/analyzer"
	"github.com/orogiadon/ltm-system-for-llm/internal/config"
	"github.com/orogiadon/ltm-system-for-llm/internal/record"
	"github.com/orogiadon/ltm-system-for-llm/internal/relations"
	"github.com/orogiadon/ltm-system-for-llm/internal/resonance"
	"github.com/orogiadon/ltm-system-for-llm/internal/store"
	"github.com/orogiadon/ltm-system-for-llm/pkg/embed"
	"github.com/orogiadon/ltm-system-for-llm/pkg/vecstore"
)

// Hit is one entry in a retrieval result: a record plus the flags that
// describe how it was reached.
type Hit struct {
	Memory     *record.Memory
	IsArchived bool
	IsRelated  bool
}

// Engine ties the Store and the two external collaborators together for
// one retrieval call.
type Engine struct {
	Store    *store.Store
	Embedder embed.Embedder
	Analyzer analyzer.Analyzer // optional; nil disables classification
	Config   config.Config
}

// commandMarker disqualifies a message from ingestion/retrieval — it marks
// a host-runtime control directive rather than user content.
const commandMarker = "<<cmd>>"

func isSkippable(prompt string) bool {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return true
	}
	if strings.HasPrefix(trimmed, "/") {
		return true
	}
	if strings.Contains(prompt, commandMarker) {
		return true
	}
	return false
}

// Retrieve runs the full relevance-scoring pipeline for one prompt. An empty result with
// no error means the prompt was skipped or no candidates qualified — not a
// failure.
func (e *Engine) Retrieve(ctx context.Context, prompt string) ([]Hit, error) {
	if isSkippable(prompt) {
		return nil, nil
	}

	queryEmb, err := e.Embedder.Embed(ctx, prompt)
	if err != nil {
		return nil, nil // embed failure: return without side effects
	}

	var queryCategory string
	var emotion resonance.Snapshot
	var haveEmotion bool
	if e.Analyzer != nil {
		cls, err := e.Analyzer.ClassifyPrompt(ctx, prompt)
		if err == nil {
			queryCategory = cls.Category
			if cls.HasEmotion {
				haveEmotion = true
				emotion = resonance.Snapshot{
					Valence: record.ParseValence(cls.Valence),
					Arousal: cls.Arousal,
					Tags:    cls.Tags,
				}
			}
		}
	}

	candidates, err := e.gatherCandidates(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	stats := categoryStats(candidates)

	type scoredCandidate struct {
		m         *record.Memory
		relevance float64
	}
	scored := make([]scoredCandidate, 0, len(candidates))
	for _, m := range candidates {
		rel := relevance(m, queryEmb, queryCategory, haveEmotion, emotion, stats, e.Config)
		if rel > 0 {
			scored = append(scored, scoredCandidate{m: m, relevance: rel})
		}
	}

	topK := e.Config.Retrieval().TopK
	threshold := e.Config.Retrieval().RelevanceThreshold

	above := make([]scoredCandidate, 0, len(scored))
	for _, c := range scored {
		if c.relevance >= threshold {
			above = append(above, c)
		}
	}

	rank := func(s []scoredCandidate) {
		sort.Slice(s, func(i, j int) bool {
			if s[i].relevance != s[j].relevance {
				return s[i].relevance > s[j].relevance
			}
			return s[i].m.ID < s[j].m.ID
		})
	}

	var finalSet []scoredCandidate
	if len(above) >= topK {
		rank(above)
		finalSet = above[:topK]
	} else {
		rank(scored)
		if len(scored) > topK {
			finalSet = scored[:topK]
		} else {
			finalSet = scored
		}
	}

	byID := make(map[string]*record.Memory, len(candidates))
	for _, m := range candidates {
		byID[m.ID] = m
	}

	resultIDs := make([]string, 0, len(finalSet))
	hitsByID := make(map[string]*Hit, len(finalSet))
	for _, c := range finalSet {
		h := &Hit{Memory: c.m, IsArchived: c.m.IsArchived()}
		hitsByID[c.m.ID] = h
		resultIDs = append(resultIDs, c.m.ID)
	}

	expanded := relations.Expand(resultIDs, byID, e.Config.Relations().RelationTraversalDepth)
	for _, id := range expanded {
		m, ok := byID[id]
		if !ok {
			continue
		}
		hitsByID[id] = &Hit{Memory: m, IsArchived: m.IsArchived(), IsRelated: true}
	}

	allIDs := append(append([]string(nil), resultIDs...), expanded...)

	var toMarkRecalled []string
	now := time.Now()
	for _, id := range allIDs {
		h := hitsByID[id]
		if h.IsArchived {
			h.Memory.RevivalRequested = true
			t := now
			h.Memory.RevivalRequestedAt = &t
			if err := e.Store.Update(ctx, id, h.Memory); err != nil {
				return nil, err
			}
		} else {
			toMarkRecalled = append(toMarkRecalled, id)
		}
	}
	if len(toMarkRecalled) > 0 {
		if err := e.Store.MarkRecalled(ctx, toMarkRecalled); err != nil {
			return nil, err
		}
	}

	out := make([]Hit, 0, len(allIDs))
	for _, id := range resultIDs {
		out = append(out, *hitsByID[id])
	}
	for _, id := range expanded {
		out = append(out, *hitsByID[id])
	}
	return out, nil
}

func (e *Engine) gatherCandidates(ctx context.Context) ([]*record.Memory, error) {
	active, err := e.Store.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if !e.Config.Archive().EnableArchiveRecall {
		return active, nil
	}
	archived, err := e.Store.GetArchived(ctx)
	if err != nil {
		return nil, err
	}
	return append(active, archived...), nil
}

type categoryStat struct {
	mean float64
	std  float64
}

// categoryStats computes per-category (mean, std) of retention_score,
// substituting std = 1 when zero (including single-member categories).
func categoryStats(candidates []*record.Memory) map[record.Category]categoryStat {
	sums := make(map[record.Category]float64)
	counts := make(map[record.Category]int)
	for _, m := range candidates {
		sums[m.Category] += m.RetentionScore
		counts[m.Category]++
	}

	means := make(map[record.Category]float64, len(sums))
	for cat, sum := range sums {
		means[cat] = sum / float64(counts[cat])
	}

	variances := make(map[record.Category]float64)
	for _, m := range candidates {
		d := m.RetentionScore - means[m.Category]
		variances[m.Category] += d * d
	}

	out := make(map[record.Category]categoryStat, len(sums))
	for cat, v := range variances {
		std := math.Sqrt(v / float64(counts[cat]))
		if std == 0 {
			std = 1
		}
		out[cat] = categoryStat{mean: means[cat], std: std}
	}
	return out
}

func relevance(
	m *record.Memory,
	queryEmb []float32,
	queryCategory string,
	haveEmotion bool,
	emotion resonance.Snapshot,
	stats map[record.Category]categoryStat,
	cfg config.Config,
) float64 {
	var normalized float64
	if s, ok := stats[m.Category]; ok {
		normalized = (m.RetentionScore - s.mean) / s.std
	} else {
		normalized = m.RetentionScore
	}

	var sim float64
	if m.Embedding != nil && queryEmb != nil {
		cos := 1 - float64(vecstore.CosineDistance(queryEmb, m.Embedding))
		if cos > 0 {
			sim = cos
		}
	}

	boost := 1.0
	if queryCategory != "" && string(m.Category) == queryCategory {
		boost = cfg.Retrieval().CategoryBoostBeta
	}

	base := normalized * sim * sim * (1 + cfg.Recall().RecallCountWeight*float64(m.RecallCount)) * boost

	var bonus float64
	if haveEmotion {
		bonus = cfg.Resonance().PriorityWeightAlpha * resonance.Score(m, emotion, cfg.Resonance()) * normalized
	}

	return base + bonus
}
