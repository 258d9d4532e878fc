package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/orogiadon/ltm-system-for-llm/internal/analyzer"
	"github.com/orogiadon/ltm-system-for-llm/internal/config"
	"github.com/orogiadon/ltm-system-for-llm/internal/store"
	"github.com/orogiadon/ltm-system-for-llm/pkg/cli"
	"github.com/orogiadon/ltm-system-for-llm/pkg/embed"
	"github.com/orogiadon/ltm-system-for-llm/pkg/kv"
)

// storeSeparator is the KV separator for the memory store, chosen (like the
// teacher's memory CLI) to be a byte that can never appear in a record id or
// an index segment.
const storeSeparator byte = 0x1F

func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if env := os.Getenv("LTM_DATA_DIR"); env != "" {
		return env
	}
	paths, err := cli.NewPaths("ltm")
	if err != nil {
		return "data"
	}
	return paths.DataDir()
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("LTM_CONFIG"); env != "" {
		return env
	}
	paths, err := cli.NewPaths("ltm")
	if err != nil {
		return ""
	}
	return paths.ConfigFile()
}

// openStore opens the badger-backed store at the resolved data directory.
// The caller must close it.
func openStore() (*store.Store, error) {
	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := kv.NewBadger(kv.BadgerOptions{
		Dir:     filepath.Join(dir, "badger"),
		Options: &kv.Options{Separator: storeSeparator},
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store.New(db), nil
}

func loadConfig() (config.Config, error) {
	return config.Load(resolveConfigPath())
}

// newEmbedder builds the Embedder configured by cfg, or nil if no API key is
// set. API keys are never stored in the config file; they come only from
// the environment.
func newEmbedder(cfg config.Config) embed.Embedder {
	apiKey := os.Getenv("LTM_EMBEDDING_API_KEY")
	if apiKey == "" {
		return nil
	}
	e := cfg.Embedding()
	opts := []embed.Option{embed.WithModel(e.Model), embed.WithDimension(e.Dimensions)}
	if baseURL := os.Getenv("LTM_EMBEDDING_BASE_URL"); baseURL != "" {
		opts = append(opts, embed.WithBaseURL(baseURL))
	}
	return embed.NewOpenAI(apiKey, opts...)
}

// newAnalyzer builds the Analyzer configured by cfg, or nil if no API key is
// set.
func newAnalyzer(cfg config.Config) analyzer.Analyzer {
	apiKey := os.Getenv("LTM_LLM_API_KEY")
	if apiKey == "" {
		return nil
	}
	l := cfg.LLM()
	var opts []analyzer.LLMOption
	if baseURL := os.Getenv("LTM_LLM_BASE_URL"); baseURL != "" {
		opts = append(opts, analyzer.WithBaseURL(baseURL))
	}
	opts = append(opts, analyzer.WithMaxConcurrent(l.MaxConcurrent))
	return analyzer.NewLLM(apiKey, l.Model, l.Temperature, l.MaxTokens, opts...)
}
