// Package ingest implements turn filtering, parallel analyze+embed, and
// record construction. The two external calls run concurrently in a joined
// pair of goroutines, synchronized with sync.WaitGroup, before the ordered,
// sequential Store writes.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/orogiadon/ltm-system-for-llm/internal/analyzer"
	"github.com/orogiadon/ltm-system-for-llm/internal/config"
	"github.com/orogiadon/ltm-system-for-llm/internal/record"
	"github.com/orogiadon/ltm-system-for-llm/internal/retentionmath"
	"github.com/orogiadon/ltm-system-for-llm/internal/store"
	"github.com/orogiadon/ltm-system-for-llm/pkg/embed"
)

// Turn is one (user_message, assistant_message) pair from a completed
// session.
type Turn struct {
	UserMessage      string
	AssistantMessage string
}

const (
	commandMarker  = "<<cmd>>"
	embedTextLimit = 8000
	embedRetries   = 3
)

func isFiltered(t Turn) bool {
	u := strings.TrimSpace(t.UserMessage)
	if u == "" {
		return true
	}
	if strings.HasPrefix(u, "/") {
		return true
	}
	if strings.Contains(t.UserMessage, commandMarker) {
		return true
	}
	return false
}

// Ingester runs the ingestion pipeline for one completed session against a
// Store.
type Ingester struct {
	Store    *store.Store
	Embedder embed.Embedder
	Analyzer analyzer.Analyzer
	Config   config.Config
	Now      func() time.Time
}

func (in *Ingester) now() time.Time {
	if in.Now != nil {
		return in.Now()
	}
	return time.Now()
}

// Result summarizes one ingestion run.
type Result struct {
	Stored  int
	Skipped int
}

// Ingest filters, analyzes, embeds, and persists every surviving turn in
// session, preserving conversation order in the Store writes.
func (in *Ingester) Ingest(ctx context.Context, session []Turn) (Result, error) {
	var surviving []Turn
	var skipped int
	for _, t := range session {
		if isFiltered(t) {
			skipped++
			continue
		}
		surviving = append(surviving, t)
	}
	if len(surviving) == 0 {
		return Result{Skipped: skipped}, nil
	}

	var (
		wg         sync.WaitGroup
		analyses   []analyzer.Analysis
		analyzeErr error
		embeddings [][]float32
		embedErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		turns := make([]analyzer.Turn, len(surviving))
		for i, t := range surviving {
			turns[i] = analyzer.Turn{UserMessage: t.UserMessage, AssistantMessage: t.AssistantMessage}
		}
		analyses, analyzeErr = in.Analyzer.AnalyzeBatch(ctx, turns)
	}()
	go func() {
		defer wg.Done()
		embeddings, embedErr = in.embedWithRetry(ctx, surviving)
	}()
	wg.Wait()

	if analyzeErr != nil {
		// A batch-wide analyzer failure leaves every turn unanalyzed; treat
		// each as missing rather than aborting ingestion.
		analyses = make([]analyzer.Analysis, len(surviving))
		for i := range analyses {
			analyses[i] = analyzer.Analysis{Missing: true}
		}
	}
	if embedErr != nil {
		// Exhausted retries: proceed with embeddings absent.
		embeddings = make([][]float32, len(surviving))
	}

	res := Result{Skipped: skipped}
	now := in.now()
	for i, t := range surviving {
		if i >= len(analyses) || analyses[i].Missing {
			res.Skipped++
			continue
		}
		a := analyses[i]

		m, err := in.buildRecord(now, t, a, embeddings[i])
		if err != nil {
			return res, err
		}
		if err := in.enforceProtectionLimit(ctx, m); err != nil {
			return res, err
		}
		if err := in.Store.Add(ctx, m); err != nil {
			return res, err
		}
		res.Stored++
	}
	return res, nil
}

func (in *Ingester) embedWithRetry(ctx context.Context, turns []Turn) ([][]float32, error) {
	texts := make([]string, len(turns))
	for i, t := range turns {
		text := fmt.Sprintf("%s %s", t.UserMessage, t.AssistantMessage)
		if r := []rune(text); len(r) > embedTextLimit {
			text = string(r[:embedTextLimit])
		}
		texts[i] = text
	}

	var lastErr error
	for attempt := 0; attempt <= embedRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		vecs, err := in.Embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("ingest: embed batch exhausted %d retries: %w", embedRetries, lastErr)
}

func (in *Ingester) buildRecord(now time.Time, t Turn, a analyzer.Analysis, emb []float32) (*record.Memory, error) {
	id, err := record.NewID(now)
	if err != nil {
		return nil, err
	}

	category := record.ParseCategory(a.Category)
	decay := retentionmath.InitialDecayCoefficient(category, a.EmotionalIntensity, in.Config.Retention())
	decay = retentionmath.CapDecayCoefficient(decay, in.Config.Retention().MaxDecayCoefficient)

	const initialMemoryDays = 0.5
	m := &record.Memory{
		ID:                 id,
		Created:            now,
		MemoryDays:         initialMemoryDays,
		EmotionalIntensity: a.EmotionalIntensity,
		EmotionalValence:   record.ParseValence(a.EmotionalValence),
		EmotionalArousal:   a.EmotionalArousal,
		EmotionalTags:      a.EmotionalTags,
		DecayCoefficient:   decay,
		Category:           category,
		Keywords:           a.Keywords,
		CurrentLevel:       1,
		Trigger:            t.UserMessage,
		Content:            t.AssistantMessage,
		Embedding:          emb,
		Protected:          a.Protected,
	}
	m.RetentionScore = retentionmath.Score(m.EmotionalIntensity, m.DecayCoefficient, m.MemoryDays)
	return m, nil
}

// enforceProtectionLimit downgrades m.Protected to false if the protected
// count is already at the configured cap.
func (in *Ingester) enforceProtectionLimit(ctx context.Context, m *record.Memory) error {
	if !m.Protected {
		return nil
	}
	n, err := in.Store.CountProtected(ctx)
	if err != nil {
		return err
	}
	if n >= in.Config.Protection().MaxProtectedMemories {
		m.Protected = false
	}
	return nil
}
