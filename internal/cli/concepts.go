package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/aclarai/internal/concepts"
	"github.com/ppiankov/aclarai/internal/model"
)

var (
	conceptsNodeType string
	conceptsDryRun   bool
)

// conceptsCmd groups concept deduplication commands
var conceptsCmd = &cobra.Command{
	Use:   "concepts",
	Short: "Extract, deduplicate and promote noun-phrase concepts",
}

var conceptsProcessCmd = &cobra.Command{
	Use:   "process <blocks.json>",
	Short: "Run concept detection over Claim or Summary blocks",
	Long: `Process reads a JSON array of blocks ({"id", "semantic_text", "aclarai_id"})
and, for each block, extracts noun phrases, stores them as candidates,
merges near-duplicates into existing concepts and promotes the rest to
new Concept nodes with one Markdown file each.

Example:
  aclarai concepts process claims.json --type claim`,
	Args: cobra.ExactArgs(1),
	RunE: runConceptsProcess,
}

var conceptsRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the similarity index from the candidate store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		store, err := buildCandidateStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		n, err := concepts.NewDetector(store, cfg.Concepts, logger).Rebuild(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Indexed %d candidates\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(conceptsCmd)
	conceptsCmd.AddCommand(conceptsProcessCmd)
	conceptsCmd.AddCommand(conceptsRebuildCmd)

	conceptsProcessCmd.Flags().StringVar(&conceptsNodeType, "type", "claim", "block type (claim, summary)")
	conceptsProcessCmd.Flags().BoolVar(&conceptsDryRun, "dry-run", false, "create concepts in an in-memory graph instead of Neo4j")
}

func runConceptsProcess(cmd *cobra.Command, args []string) error {
	nodeType := model.SourceNodeType(conceptsNodeType)
	if !nodeType.Valid() {
		return fmt.Errorf("unknown block type %q (supported: claim, summary)", conceptsNodeType)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	var blocks []model.BlockInput
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("decode blocks: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	g, err := buildGraph(ctx, cfg, conceptsDryRun, logger)
	if err != nil {
		return err
	}
	defer func() { _ = g.Close(context.Background()) }()

	stack, err := buildConceptStack(cfg, g, logger)
	if err != nil {
		return err
	}
	defer func() { _ = stack.Close() }()

	results := make([]*concepts.Result, 0, len(blocks))
	failed := 0
	for _, b := range blocks {
		res := stack.processor.Process(ctx, b, nodeType)
		if !res.Success {
			failed++
		}
		results = append(results, res)
		fmt.Fprintf(os.Stderr, "  %s: %d extracted, %d merged, %d promoted, %d already decided, %d files\n",
			b.ID, res.CandidatesExtracted, res.MergedCount, res.PromotedCount, res.AlreadyDecided, res.FilesWritten)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d blocks failed", failed, len(blocks))
	}
	return nil
}
