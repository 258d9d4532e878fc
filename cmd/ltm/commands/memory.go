package commands

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/orogiadon/ltm-system-for-llm/internal/record"
	"github.com/orogiadon/ltm-system-for-llm/internal/retrieval"
	"github.com/orogiadon/ltm-system-for-llm/pkg/cli"
)

var (
	listLevel           int
	listIncludeArchived bool
	outputFormat        string
	searchLimit         int
	purgeOlderThan      string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List memory records",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		var records []*record.Memory
		if cmd.Flags().Changed("level") {
			records, err = s.GetByLevel(ctx, listLevel, listIncludeArchived)
		} else {
			records, err = s.GetAll(ctx, listIncludeArchived)
		}
		if err != nil {
			return err
		}

		sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
		return cli.Output(summaries(records), cli.OutputOptions{Format: cli.OutputFormat(outputFormat)})
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one memory record in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		m, err := s.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return cli.Output(m, cli.OutputOptions{Format: cli.OutputFormat(outputFormat)})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a memory record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		if _, err := s.Get(ctx, args[0]); err != nil {
			return err
		}
		if err := s.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

var protectCmd = &cobra.Command{
	Use:   "protect <id>",
	Short: "Mark a memory record protected (exempt from auto-delete)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error { return setProtected(cmd, args[0], true) },
}

var unprotectCmd = &cobra.Command{
	Use:   "unprotect <id>",
	Short: "Clear a memory record's protected flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error { return setProtected(cmd, args[0], false) },
}

func setProtected(cmd *cobra.Command, id string, protected bool) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	m, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if m.Protected == protected {
		fmt.Fprintf(cmd.OutOrStdout(), "%s already %s\n", id, protectedWord(protected))
		return nil
	}
	m.Protected = protected
	if err := s.Update(ctx, id, m); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s marked %s\n", id, protectedWord(protected))
	return nil
}

func protectedWord(protected bool) string {
	if protected {
		return "protected"
	}
	return "unprotected"
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record counts by level and protection status",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		out := map[string]any{}
		for level := 1; level <= 4; level++ {
			n, err := s.CountByLevel(ctx, level)
			if err != nil {
				return err
			}
			out[fmt.Sprintf("level%d", level)] = n
		}
		protected, err := s.CountProtected(ctx)
		if err != nil {
			return err
		}
		out["protected"] = protected
		if last, ok, err := s.LastCompressionRun(ctx); err == nil && ok {
			out["last_compression_run"] = last.Format(time.RFC3339)
		}
		return cli.Output(out, cli.OutputOptions{Format: cli.OutputFormat(outputFormat)})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <prompt>",
	Short: "Run the retrieval pipeline for a prompt and print the hits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		emb := newEmbedder(cfg)
		if emb == nil {
			return fmt.Errorf("search requires LTM_EMBEDDING_API_KEY to be set")
		}

		eng := &retrieval.Engine{Store: s, Embedder: emb, Analyzer: newAnalyzer(cfg), Config: cfg}
		hits, err := eng.Retrieve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no matching memories")
			return nil
		}

		limit := searchLimit
		if limit <= 0 || limit > len(hits) {
			limit = len(hits)
		}
		for i, h := range hits[:limit] {
			tag := ""
			if h.IsArchived {
				tag = " [archived]"
			}
			if h.IsRelated {
				tag += " [related]"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d. %s%s\n   %s\n", i+1, h.Memory.ID, tag, h.Memory.Trigger)
		}
		return nil
	},
}

var purgeArchiveCmd = &cobra.Command{
	Use:   "purge-archive",
	Short: "Delete archived records older than a duration (e.g. 180d)",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := parseDays(purgeOlderThan)
		if err != nil {
			return err
		}
		cutoff := time.Now().AddDate(0, 0, -d)

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		archived, err := s.GetArchived(ctx)
		if err != nil {
			return err
		}

		deleted := 0
		for _, m := range archived {
			if m.Protected || m.ArchivedAt == nil {
				continue
			}
			if m.ArchivedAt.Before(cutoff) {
				if err := s.Delete(ctx, m.ID); err != nil {
					return err
				}
				deleted++
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d archived record(s) older than %s\n", deleted, purgeOlderThan)
		return nil
	},
}

// parseDays parses a duration string of the form "<n>d" — the only unit
// this command needs; anything finer-grained belongs in the daily batch,
// not a one-shot purge.
func parseDays(s string) (int, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "d") {
		return 0, fmt.Errorf("invalid duration %q: expected e.g. 180d", s)
	}
	n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration %q: expected e.g. 180d", s)
	}
	return n, nil
}

type recordSummary struct {
	ID             string  `json:"id" yaml:"id"`
	Level          int     `json:"level" yaml:"level"`
	Category       string  `json:"category" yaml:"category"`
	RetentionScore float64 `json:"retention_score" yaml:"retention_score"`
	Protected      bool    `json:"protected" yaml:"protected"`
	Trigger        string  `json:"trigger" yaml:"trigger"`
}

func summaries(records []*record.Memory) []recordSummary {
	out := make([]recordSummary, len(records))
	for i, m := range records {
		out[i] = recordSummary{
			ID:             m.ID,
			Level:          m.CurrentLevel,
			Category:       string(m.Category),
			RetentionScore: m.RetentionScore,
			Protected:      m.Protected,
			Trigger:        m.Trigger,
		}
	}
	return out
}

func init() {
	listCmd.Flags().IntVar(&listLevel, "level", 0, "filter to one compression level (1-4)")
	listCmd.Flags().BoolVar(&listIncludeArchived, "include-archived", false, "include archived (level 4) records")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "yaml", "output format: yaml, json, table")

	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "max hits to print")

	purgeArchiveCmd.Flags().StringVar(&purgeOlderThan, "older-than", "365d", "delete archived records older than this")

	rootCmd.AddCommand(listCmd, showCmd, deleteCmd, protectCmd, unprotectCmd, statsCmd, searchCmd, purgeArchiveCmd)
}
