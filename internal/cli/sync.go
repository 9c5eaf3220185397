package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/aclarai/internal/vault"
	"github.com/ppiankov/aclarai/internal/worker"
)

var syncDryRun bool

// syncCmd groups vault synchronization commands
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile vault Markdown blocks with the graph",
}

var syncApplyCmd = &cobra.Command{
	Use:   "apply <notifications.jsonl>",
	Short: "Apply a file of change notifications",
	Long: `Apply reads one change notification per line and reconciles each
referenced block with the graph using version-based optimistic locking.
Notifications for different blocks run concurrently; notifications for the
same block run in file order.

Example:
  aclarai sync apply changes.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runSyncApply,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncApplyCmd)
	syncApplyCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "reconcile against an empty in-memory graph")
}

func runSyncApply(cmd *cobra.Command, args []string) error {
	lines, err := worker.ReadLines(args[0])
	if err != nil {
		return err
	}
	notifications, parseErrs := vault.ParseNotifications(lines)
	for _, e := range parseErrs {
		fmt.Fprintf(os.Stderr, "✗ %v\n", e)
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
	g, err := buildGraph(ctx, cfg, syncDryRun, logger)
	if err != nil {
		return err
	}
	defer func() { _ = g.Close(context.Background()) }()

	engine := vault.NewEngine(g, expandHome(cfg.Vault.Root), cfg.Sync, logger)
	res := engine.ProcessBatch(ctx, notifications)

	fmt.Fprintf(os.Stderr, "✓ %d created, %d updated, %d unchanged, %d conflicts, %d ignored, %d failed\n",
		res.Created, res.Updated, res.Unchanged, res.Conflicts, res.Ignored, res.Failed)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if res.Failed > 0 || len(parseErrs) > 0 {
		return fmt.Errorf("%d notification(s) failed", res.Failed+len(parseErrs))
	}
	return nil
}
