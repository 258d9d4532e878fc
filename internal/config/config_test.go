package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/orogiadon/ltm-system-for-llm/internal/record"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Levels().Level1Threshold != 50 {
		t.Errorf("expected default Level1Threshold 50, got %v", cfg.Levels().Level1Threshold)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Embedding().Dimensions != record.EmbeddingDim {
		t.Errorf("expected default embedding dim %d, got %d", record.EmbeddingDim, cfg.Embedding().Dimensions)
	}
}

func TestLoadOverlaysOnlyProvidedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"levels":{"level1_threshold":70}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Levels().Level1Threshold != 70 {
		t.Errorf("expected overridden Level1Threshold 70, got %v", cfg.Levels().Level1Threshold)
	}
	// Untouched sibling fields should keep their defaults.
	if cfg.Levels().Level2Threshold != 20 {
		t.Errorf("expected default Level2Threshold 20 to survive partial override, got %v", cfg.Levels().Level2Threshold)
	}
	if cfg.Retention().MaxDecayCoefficient != 0.999 {
		t.Errorf("expected default retention config untouched, got %v", cfg.Retention().MaxDecayCoefficient)
	}
}

func TestLoadMalformedJSONErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestDecayByCategoryForUnknownFallsBackToWork(t *testing.T) {
	d := Defaults().Retention().DecayByCategory
	if got := d.For(record.Category("bogus")); got != d.Work {
		t.Errorf("expected unknown category to fall back to Work interval, got %+v", got)
	}
	if got := d.For(record.CategoryEmotional); got != d.Emotional {
		t.Errorf("expected CategoryEmotional to map to its own interval, got %+v", got)
	}
}
