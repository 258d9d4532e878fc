// Package config loads the JSON configuration document layered over
// built-in defaults. A [Config] value is immutable after [Load] returns
// and is read fresh once per process.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/orogiadon/ltm-system-for-llm/internal/record"
)

// DecayInterval is a closed [min, max] interpolation range.
type DecayInterval struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DecayByCategory carries one interval per memory category.
type DecayByCategory struct {
	Casual    DecayInterval `json:"casual"`
	Work      DecayInterval `json:"work"`
	Decision  DecayInterval `json:"decision"`
	Emotional DecayInterval `json:"emotional"`
}

// For returns the interval for the given category, defaulting to the Work
// interval for an unrecognized category (matching the source's fallback).
func (d DecayByCategory) For(c record.Category) DecayInterval {
	switch c {
	case record.CategoryCasual:
		return d.Casual
	case record.CategoryWork:
		return d.Work
	case record.CategoryDecision:
		return d.Decision
	case record.CategoryEmotional:
		return d.Emotional
	default:
		return d.Work
	}
}

// Retention configures decay-coefficient bounds and seeding.
type Retention struct {
	MaxDecayCoefficient float64         `json:"max_decay_coefficient"`
	DecayByCategory     DecayByCategory `json:"decay_by_category"`
}

// Levels configures the retention-score thresholds separating levels.
type Levels struct {
	Level1Threshold float64 `json:"level1_threshold"`
	Level2Threshold float64 `json:"level2_threshold"`
	Level3Threshold float64 `json:"level3_threshold"`
}

// Recall configures reinforcement knobs.
type Recall struct {
	DecayCoefficientBoost float64 `json:"decay_coefficient_boost"`
	MemoryDaysReduction   float64 `json:"memory_days_reduction"`
	RecallCountWeight     float64 `json:"recall_count_weight"`
}

// Resonance configures emotional-affinity weights.
type Resonance struct {
	ValenceMatchBonus   float64 `json:"valence_match_bonus"`
	ArousalProximityBonus float64 `json:"arousal_proximity_bonus"`
	TagsOverlapWeight   float64 `json:"tags_overlap_weight"`
	PriorityWeightAlpha float64 `json:"priority_weight_alpha"`
}

// Relations configures cross-reference policy.
type Relations struct {
	AutoLinkSimilarityThreshold float64 `json:"auto_link_similarity_threshold"`
	MaxRelationsPerMemory       int     `json:"max_relations_per_memory"`
	RelationTraversalDepth      int     `json:"relation_traversal_depth"`
	EnableAutoLinking           bool    `json:"enable_auto_linking"`
}

// Retrieval configures the relevance scorer and ranking.
type Retrieval struct {
	TopK               int     `json:"top_k"`
	RelevanceThreshold float64 `json:"relevance_threshold"`
	CategoryBoostBeta  float64 `json:"category_boost_beta"`
}

// Archive configures archive-recall, revival, and auto-delete behavior.
type Archive struct {
	EnableArchiveRecall    bool    `json:"enable_archive_recall"`
	RevivalDecayPerDay     float64 `json:"revival_decay_per_day"`
	RevivalMinMargin       float64 `json:"revival_min_margin"`
	AutoDeleteEnabled      bool    `json:"auto_delete_enabled"`
	RetentionDays          int     `json:"retention_days"`
	DeleteRequireZeroRecall bool   `json:"delete_require_zero_recall"`
	DeleteMaxIntensity     int     `json:"delete_max_intensity"`
	DeleteConditionMode    string  `json:"delete_condition_mode"` // "AND" or "OR"
}

// Protection configures the global protected-record cap.
type Protection struct {
	MaxProtectedMemories int `json:"max_protected_memories"`
}

// Embedding configures the embedder adapter.
type Embedding struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// LLM configures the analyzer adapter.
type LLM struct {
	Model         string  `json:"model"`
	Temperature   float64 `json:"temperature"`
	MaxTokens     int     `json:"max_tokens"`
	MaxConcurrent int     `json:"max_concurrent"`
}

// Config is the fully-resolved, immutable configuration value for one
// process, deep-merged from [Defaults] and an optional JSON file.
type Config struct {
	RetentionCfg  Retention  `json:"retention"`
	LevelsCfg     Levels     `json:"levels"`
	RecallCfg     Recall     `json:"recall"`
	ResonanceCfg  Resonance  `json:"resonance"`
	RelationsCfg  Relations  `json:"relations"`
	RetrievalCfg  Retrieval  `json:"retrieval"`
	ArchiveCfg    Archive    `json:"archive"`
	ProtectionCfg Protection `json:"protection"`
	EmbeddingCfg  Embedding  `json:"embedding"`
	LLMCfg        LLM        `json:"llm"`
}

func (c Config) Retention() Retention   { return c.RetentionCfg }
func (c Config) Levels() Levels         { return c.LevelsCfg }
func (c Config) Recall() Recall         { return c.RecallCfg }
func (c Config) Resonance() Resonance   { return c.ResonanceCfg }
func (c Config) Relations() Relations   { return c.RelationsCfg }
func (c Config) Retrieval() Retrieval   { return c.RetrievalCfg }
func (c Config) Archive() Archive       { return c.ArchiveCfg }
func (c Config) Protection() Protection { return c.ProtectionCfg }
func (c Config) Embedding() Embedding   { return c.EmbeddingCfg }
func (c Config) LLM() LLM               { return c.LLMCfg }

// Defaults returns the built-in default configuration.
func Defaults() Config {
	return Config{
		RetentionCfg: Retention{
			MaxDecayCoefficient: 0.999,
			DecayByCategory: DecayByCategory{
				Casual:    DecayInterval{Min: 0.70, Max: 0.80},
				Work:      DecayInterval{Min: 0.85, Max: 0.92},
				Decision:  DecayInterval{Min: 0.93, Max: 0.97},
				Emotional: DecayInterval{Min: 0.98, Max: 0.999},
			},
		},
		LevelsCfg: Levels{Level1Threshold: 50, Level2Threshold: 20, Level3Threshold: 5},
		RecallCfg: Recall{DecayCoefficientBoost: 0.02, MemoryDaysReduction: 0.5, RecallCountWeight: 0.1},
		ResonanceCfg: Resonance{
			ValenceMatchBonus:     0.3,
			ArousalProximityBonus: 0.2,
			TagsOverlapWeight:     0.5,
			PriorityWeightAlpha:   0.3,
		},
		RelationsCfg: Relations{
			AutoLinkSimilarityThreshold: 0.85,
			MaxRelationsPerMemory:       10,
			RelationTraversalDepth:      1,
			EnableAutoLinking:           true,
		},
		RetrievalCfg: Retrieval{TopK: 10, RelevanceThreshold: 0.5, CategoryBoostBeta: 2.0},
		ArchiveCfg: Archive{
			EnableArchiveRecall:     true,
			RevivalDecayPerDay:      0.995,
			RevivalMinMargin:        3.0,
			AutoDeleteEnabled:       false,
			RetentionDays:           365,
			DeleteRequireZeroRecall: true,
			DeleteMaxIntensity:      20,
			DeleteConditionMode:     "AND",
		},
		ProtectionCfg: Protection{MaxProtectedMemories: 50},
		EmbeddingCfg:  Embedding{Model: "text-embedding-3-small", Dimensions: record.EmbeddingDim},
		LLMCfg:        LLM{Model: "gpt-4o-mini", Temperature: 0.3, MaxTokens: 1024, MaxConcurrent: 10},
	}
}

// Load reads path (a JSON document) and deep-merges it over [Defaults].
// A missing path is not an error: Load returns the defaults unchanged.
// Absent sections or keys in the file simply leave the default untouched
// because json.Unmarshal only overwrites fields present in the input
// document.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
