package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/aclarai/internal/extract"
	"github.com/ppiankov/aclarai/internal/graph"
	"github.com/ppiankov/aclarai/internal/model"
	"github.com/ppiankov/aclarai/internal/pipeline"
	"github.com/ppiankov/aclarai/internal/vault"
)

var (
	claimifyDryRun  bool
	claimifyOut     string
	claimifyWorkers int
	claimifyTimeout time.Duration
)

// claimifyCmd represents the claimify command
var claimifyCmd = &cobra.Command{
	Use:   "claimify <file.md>",
	Short: "Extract claims from a Markdown conversation and persist them",
	Long: `Claimify splits each version-commented block of a Markdown file into
sentences and runs every sentence through selection, disambiguation and
decomposition. Passing candidates become Claim nodes, everything else
becomes Sentence nodes linked to the source block.

A file without version comments is treated as a single block.

Example:
  aclarai claimify conversation.md
  aclarai claimify conversation.md --dry-run --json results.json`,
	Args: cobra.ExactArgs(1),
	RunE: runClaimify,
}

func init() {
	rootCmd.AddCommand(claimifyCmd)

	claimifyCmd.Flags().BoolVar(&claimifyDryRun, "dry-run", false, "persist to an in-memory graph instead of Neo4j")
	claimifyCmd.Flags().StringVar(&claimifyOut, "json", "", "write per-sentence results to this path")
	claimifyCmd.Flags().IntVar(&claimifyWorkers, "workers", 0, "concurrent sentences (default: concurrency.workers)")
	claimifyCmd.Flags().DurationVar(&claimifyTimeout, "timeout", 30*time.Minute, "overall timeout")
}

func runClaimify(cmd *cobra.Command, args []string) error {
	path := args[0]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), claimifyTimeout)
	defer cancel()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	blocks := vault.ToBlocks(vault.ParseBlocks(string(data)), path)
	if len(blocks) == 0 {
		text := extract.StripMarkers(string(data))
		blocks = []model.Block{{
			ID:          fileBlockID(path),
			Text:        text,
			ContentHash: model.HashContent(text),
			SourceFile:  path,
			Version:     1,
		}}
	}

	chunker := extract.NewChunker(extract.NewSegmenter(cfg.Claimify.Segmenter), cfg.Claimify.MinChunkChars)
	chunks := chunker.ChunkBlocks(blocks)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  aclarai claimify\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", path)
	fmt.Fprintf(os.Stderr, "  Blocks:       %d\n", len(blocks))
	fmt.Fprintf(os.Stderr, "  Sentences:    %d\n", len(chunks))
	fmt.Fprintf(os.Stderr, "  Model:        %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Fprintf(os.Stderr, "\n")

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	workers := claimifyWorkers
	if workers <= 0 {
		workers = cfg.Concurrency.Workers
	}
	p, err := pipeline.New(provider, cfg.Claimify,
		pipeline.WithLimiter(buildLimiter(cfg)),
		pipeline.WithWorkers(workers),
		pipeline.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	store, err := buildGraph(ctx, cfg, claimifyDryRun, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close(context.Background()) }()

	for _, b := range blocks {
		b.NeedsReprocessing = false
		b.LastUpdated = time.Now().UTC()
		if err := store.CreateBlock(ctx, b); err != nil && !errors.Is(err, graph.ErrVersionConflict) {
			return fmt.Errorf("register block %s: %w", b.ID, err)
		}
	}

	results := p.ProcessChunks(ctx, chunks)
	stats := pipeline.Summarize(results)
	persisted := graph.NewPersister(store, syncPolicy(cfg, logger), logger).Persist(ctx, results)

	fmt.Fprintf(os.Stderr, "✓ Selected %d of %d sentences (%d rejected, %d failed)\n", stats.Selected, stats.Total, stats.Rejected, stats.Failed)
	fmt.Fprintf(os.Stderr, "✓ Decomposed %d sentences into %d claims and %d sentences (%d low-confidence dropped)\n",
		stats.Decomposed, stats.Claims, stats.Sentences, stats.DroppedCandidates)
	fmt.Fprintf(os.Stderr, "✓ Persisted %d claims and %d sentences\n", persisted.Claims, persisted.Sentences)
	fmt.Fprintf(os.Stderr, "  Mean time per sentence: %v\n", stats.MeanTime)
	for _, e := range persisted.Errors {
		fmt.Fprintf(os.Stderr, "✗ %s\n", e)
	}

	if claimifyOut != "" {
		out, err := json.MarshalIndent(struct {
			Stats   pipeline.Stats          `json:"stats"`
			Results []*model.ClaimifyResult `json:"results"`
		}{stats, results}, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal results: %w", err)
		}
		if err := os.WriteFile(claimifyOut, out, 0644); err != nil {
			return fmt.Errorf("write %s: %w", claimifyOut, err)
		}
		fmt.Fprintf(os.Stderr, "✓ Results written to %s\n", claimifyOut)
	}

	if len(persisted.Errors) > 0 {
		return fmt.Errorf("persistence failed for %d batch(es)", len(persisted.Errors))
	}
	return nil
}

// fileBlockID names the implicit block of a file without version comments
func fileBlockID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "blk_" + model.HashContent(abs)[:12]
}
