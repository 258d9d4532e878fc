// Command ltm-retrieve runs the retrieval pipeline for one prompt and
// writes the resulting `<memories>` block to stdout, the only thing this
// process ever puts there. A retrieval miss or a skipped prompt produces no
// stdout output at all, not an error; this process always exits 0 so a host
// runtime can pipe its output straight into a system prompt without
// special-casing failures.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/orogiadon/ltm-system-for-llm/internal/analyzer"
	"github.com/orogiadon/ltm-system-for-llm/internal/config"
	"github.com/orogiadon/ltm-system-for-llm/internal/retrieval"
	"github.com/orogiadon/ltm-system-for-llm/internal/store"
	"github.com/orogiadon/ltm-system-for-llm/pkg/cli"
	"github.com/orogiadon/ltm-system-for-llm/pkg/embed"
	"github.com/orogiadon/ltm-system-for-llm/pkg/kv"
)

const storeSeparator byte = 0x1F

type request struct {
	Prompt string `json:"prompt"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var req request
	if err := cli.LoadRequestFromStdin(&req); err != nil {
		fmt.Fprintf(os.Stderr, "ltm-retrieve: decode request: %v\n", err)
		return 0
	}

	dataDir := resolveDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "ltm-retrieve: create data dir: %v\n", err)
		return 0
	}
	db, err := kv.NewBadger(kv.BadgerOptions{
		Dir:     filepath.Join(dataDir, "badger"),
		Options: &kv.Options{Separator: storeSeparator},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ltm-retrieve: open store: %v\n", err)
		return 0
	}
	s := store.New(db)
	defer s.Close()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ltm-retrieve: load config: %v\n", err)
		return 0
	}

	embedder := newEmbedder(cfg)
	if embedder == nil {
		fmt.Fprintln(os.Stderr, "ltm-retrieve: LTM_EMBEDDING_API_KEY not set, skipping retrieval")
		return 0
	}

	eng := &retrieval.Engine{
		Store:    s,
		Embedder: embedder,
		Analyzer: newAnalyzer(cfg),
		Config:   cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hits, err := eng.Retrieve(ctx, req.Prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ltm-retrieve: retrieve: %v\n", err)
		return 0
	}
	if len(hits) == 0 {
		fmt.Fprintln(os.Stderr, "ltm-retrieve: no hits")
		return 0
	}

	fmt.Println(renderBlock(hits))
	return 0
}

// renderBlock formats hits as the §6 `<memories>` block:
//
//	<memories>
//	- [YYYY-MM-DD][L<level>][archived][related] <trigger> → <content>
//	…
//	</memories>
func renderBlock(hits []retrieval.Hit) string {
	var b strings.Builder
	b.WriteString("<memories>\n")
	for _, h := range hits {
		m := h.Memory
		var tags strings.Builder
		fmt.Fprintf(&tags, "[%s][L%d]", m.Created.Format("2006-01-02"), m.CurrentLevel)
		if h.IsArchived {
			tags.WriteString("[archived]")
		}
		if h.IsRelated {
			tags.WriteString("[related]")
		}
		fmt.Fprintf(&b, "- %s %s → %s\n", tags.String(), m.Trigger, m.Content)
	}
	b.WriteString("</memories>")
	return b.String()
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
