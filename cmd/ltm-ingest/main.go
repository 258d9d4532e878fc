// Command ltm-ingest reads a conversation transcript and writes new memory
// records for it. It is meant to be invoked by a host runtime at the end of
// a session: the runtime writes `{"transcript_path": "..."}` to stdin and
// ltm-ingest does the rest, exiting 0 on success (including "nothing to
// ingest") and 1 on any failure that stops ingestion: an unreadable request
// or transcript, a config or store error, missing API keys, or an ingest
// error.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/orogiadon/ltm-system-for-llm/internal/analyzer"
	"github.com/orogiadon/ltm-system-for-llm/internal/config"
	"github.com/orogiadon/ltm-system-for-llm/internal/ingest"
	"github.com/orogiadon/ltm-system-for-llm/internal/store"
	"github.com/orogiadon/ltm-system-for-llm/pkg/cli"
	"github.com/orogiadon/ltm-system-for-llm/pkg/embed"
	"github.com/orogiadon/ltm-system-for-llm/pkg/kv"
)

const storeSeparator byte = 0x1F

// request is the stdin payload a host runtime sends at end of session.
type request struct {
	TranscriptPath string `json:"transcript_path"`
}

// transcriptLine is one newline-delimited JSON record in the transcript
// file: a single user/assistant turn.
type transcriptLine struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ltm-ingest: %v\n", err)
		os.Exit(1)
	}
}

// marker is the completion record written to stdout after an ingestion
// attempt, success or failure.
type marker struct {
	CompletedAt    string `json:"completed_at"`
	Success        bool   `json:"success"`
	Count          int    `json:"count"`
	TranscriptPath string `json:"transcript_path,omitempty"`
	Error          string `json:"error,omitempty"`
}

func run() error {
	var req request
	if err := cli.LoadRequestFromStdin(&req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	if req.TranscriptPath == "" {
		return fmt.Errorf("transcript_path is required")
	}

	turns, err := readTranscript(req.TranscriptPath)
	if err != nil {
		writeMarker(marker{Success: false, Error: err.Error()})
		return fmt.Errorf("read transcript: %w", err)
	}
	if len(turns) == 0 {
		fmt.Fprintln(os.Stderr, "ltm-ingest: empty transcript, nothing to ingest")
		writeMarker(marker{Success: true, Count: 0, TranscriptPath: req.TranscriptPath})
		return nil
	}

	dataDir := resolveDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		writeMarker(marker{Success: false, Error: err.Error()})
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := kv.NewBadger(kv.BadgerOptions{
		Dir:     filepath.Join(dataDir, "badger"),
		Options: &kv.Options{Separator: storeSeparator},
	})
	if err != nil {
		writeMarker(marker{Success: false, Error: err.Error()})
		return fmt.Errorf("open store: %w", err)
	}
	s := store.New(db)
	defer s.Close()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		writeMarker(marker{Success: false, Error: err.Error()})
		return fmt.Errorf("load config: %w", err)
	}

	embedder, an := newEmbedder(cfg), newAnalyzer(cfg)
	if embedder == nil || an == nil {
		err := fmt.Errorf("LTM_EMBEDDING_API_KEY and LTM_LLM_API_KEY must both be set")
		writeMarker(marker{Success: false, Error: err.Error()})
		return err
	}

	in := &ingest.Ingester{
		Store:    s,
		Embedder: embedder,
		Analyzer: an,
		Config:   cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := in.Ingest(ctx, turns)
	if err != nil {
		writeMarker(marker{Success: false, Error: err.Error(), Count: 0})
		return fmt.Errorf("ingest: %w", err)
	}
	fmt.Fprintf(os.Stderr, "ltm-ingest: stored=%d skipped=%d\n", result.Stored, result.Skipped)
	writeMarker(marker{Success: true, Count: result.Stored, TranscriptPath: req.TranscriptPath})
	return nil
}

func writeMarker(m marker) {
	m.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(m)
}

func readTranscript(path string) ([]ingest.Turn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var turns []ingest.Turn
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var tl transcriptLine
		if err := json.Unmarshal(line, &tl); err != nil {
			return nil, fmt.Errorf("parse transcript line: %w", err)
		}
		turns = append(turns, ingest.Turn{UserMessage: tl.User, AssistantMessage: tl.Assistant})
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, err
	}
	return turns, nil
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
