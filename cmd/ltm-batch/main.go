// Command ltm-batch runs one pass of the daily memory maintenance pipeline:
// reinforce, age, rescore, compress, revive, relink, purge, mark complete.
// It is meant to be invoked once per day, e.g. from cron or a host runtime's
// own scheduler; the date gate in internal/batch makes repeat invocations on
// the same local day a no-op unless --force is given.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/orogiadon/ltm-system-for-llm/internal/analyzer"
	"github.com/orogiadon/ltm-system-for-llm/internal/batch"
	"github.com/orogiadon/ltm-system-for-llm/internal/config"
	"github.com/orogiadon/ltm-system-for-llm/internal/store"
	"github.com/orogiadon/ltm-system-for-llm/pkg/cli"
	"github.com/orogiadon/ltm-system-for-llm/pkg/embed"
	"github.com/orogiadon/ltm-system-for-llm/pkg/kv"
)

const storeSeparator byte = 0x1F

func main() {
	force := flag.Bool("force", false, "bypass the once-per-day gate")
	flag.Parse()

	if err := run(*force); err != nil {
		fmt.Fprintf(os.Stderr, "ltm-batch: %v\n", err)
		os.Exit(1)
	}
}

func run(force bool) error {
	dataDir := resolveDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	db, err := kv.NewBadger(kv.BadgerOptions{
		Dir:     filepath.Join(dataDir, "badger"),
		Options: &kv.Options{Separator: storeSeparator},
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	s := store.New(db)
	defer s.Close()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	embedder, an := newEmbedder(cfg), newAnalyzer(cfg)
	if embedder == nil || an == nil {
		return fmt.Errorf("LTM_EMBEDDING_API_KEY and LTM_LLM_API_KEY must both be set")
	}

	runner := &batch.Runner{
		Store:    s,
		Embedder: embedder,
		Analyzer: an,
		Config:   cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := runner.Run(ctx, force)
	if err != nil {
		return fmt.Errorf("run batch: %w", err)
	}

	if result.Skipped {
		fmt.Fprintln(os.Stderr, "ltm-batch: already ran today, skipped (use --force to override)")
		return nil
	}
	fmt.Fprintf(os.Stderr,
		"ltm-batch: reinforced=%d compressed=%d revived=%d relink_edits=%d deleted=%d\n",
		result.Reinforced, result.Compressed, result.Revived, result.RelinkEdits, result.Deleted)
	return nil
}

func resolveDataDir() string {
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
	if env := os.Getenv("LTM_CONFIG"); env != "" {
		return env
	}
	paths, err := cli.NewPaths("ltm")
	if err != nil {
		return ""
	}
	return paths.ConfigFile()
}

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
