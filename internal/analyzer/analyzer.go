// Package analyzer defines the opaque Analyzer collaborator interface and
// a concrete LLM-backed adapter. The core (Ingestion, Retrieval, Batch)
// depends only on the interface.
package analyzer

import "context"

// Turn is one (user_message, assistant_message) pair to be analyzed.
type Turn struct {
	UserMessage      string
	AssistantMessage string
}

// Analysis is the per-turn annotation produced by analyze_batch. A zero
// value with Missing set true indicates no entry was returned for that
// input index; the turn is dropped later.
type Analysis struct {
	Missing bool

	EmotionalIntensity int      // 0..100
	EmotionalValence   string   // "positive" | "negative" | "neutral"
	EmotionalArousal   int      // 0..100
	EmotionalTags      []string
	Category           string // "casual" | "work" | "decision" | "emotional"
	Keywords           []string
	Protected          bool
}

// Classification is the result of classify_prompt: the retrieval query's
// category and a live emotion snapshot.
type Classification struct {
	Category string // empty if unclassified

	HasEmotion bool
	Valence    string
	Arousal    int
	Tags       []string
}

// Level2Result is the output of compress_to_level2: a summary-form
// trigger/content pair.
type Level2Result struct {
	Trigger string
	Content string
}

// Level3Result is the output of compress_to_level3: a keyword-form
// trigger/content pair.
type Level3Result struct {
	Trigger string
	Content string
}

// Analyzer classifies conversation turns and retrieval prompts, and
// rewrites record text across compression-level transitions. All methods
// may block on an external LLM call; implementations are responsible for
// their own per-call timeout and retry/backoff behavior.
type Analyzer interface {
	// AnalyzeBatch returns one Analysis per input turn, indexed identically
	// to turns. An implementation may omit entries for turns it could not
	// analyze; callers must tolerate a shorter or sparser result and treat
	// missing indices as Analysis{Missing: true}.
	AnalyzeBatch(ctx context.Context, turns []Turn) ([]Analysis, error)

	// ClassifyPrompt classifies a retrieval prompt. On failure the caller
	// proceeds with an unset Classification.
	ClassifyPrompt(ctx context.Context, prompt string) (Classification, error)

	// CompressToLevel2 produces a summary-form trigger/content pair from the
	// current verbatim text.
	CompressToLevel2(ctx context.Context, trigger, content string) (Level2Result, error)

	// CompressToLevel3 produces a keyword-form trigger/content pair.
	CompressToLevel3(ctx context.Context, trigger, content string) (Level3Result, error)
}
