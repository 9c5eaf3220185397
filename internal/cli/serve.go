package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ppiankov/aclarai/internal/concepts"
	"github.com/ppiankov/aclarai/internal/model"
	"github.com/ppiankov/aclarai/internal/schedule"
	"github.com/ppiankov/aclarai/internal/vault"
)

var serveConsumer string

// serveCmd runs the long-lived sync service
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Consume vault change notifications and maintain the concept index",
	Long: `Serve reads change notifications from the Redis stream configured under
redis.*, applies them to the graph, and acknowledges each message once it
has been reconciled (conflicts included). Failed messages stay pending and
are retried on the next pass.

The concept similarity index is rebuilt on concepts.rebuild_schedule.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveConsumer, "consumer", "", "consumer name within the group (default: redis.consumer)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, err := buildGraph(ctx, cfg, false, logger)
	if err != nil {
		return err
	}
	defer func() { _ = g.Close(context.Background()) }()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = client.Close() }()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
	}

	queue, err := vault.NewQueue(ctx, client, cfg.Redis, logger)
	if err != nil {
		return err
	}
	engine := vault.NewEngine(g, expandHome(cfg.Vault.Root), cfg.Sync, logger)

	store, err := buildCandidateStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	detector := concepts.NewDetector(store, cfg.Concepts, logger)

	scheduler := schedule.NewCronScheduler(logger)
	if cfg.Concepts.RebuildSchedule != "" {
		job := schedule.Job{Name: "concept-index-rebuild", Run: detector.RebuildJob}
		if err := scheduler.AddJob(job, cfg.Concepts.RebuildSchedule); err != nil {
			return err
		}
		if err := scheduler.RunNow(ctx, job); err != nil {
			logger.Warn("initial index rebuild failed", "error", err.Error())
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	consumer := serveConsumer
	if consumer == "" {
		consumer = cfg.Redis.Consumer
	}
	fmt.Fprintf(os.Stderr, "✓ Serving %s as %s/%s (Ctrl+C to stop)\n", cfg.Redis.Stream, cfg.Redis.Group, consumer)

	return queue.Consume(ctx, consumer, func(ctx context.Context, n model.ChangeNotification) error {
		res, err := engine.Process(ctx, n)
		if err != nil {
			return err
		}
		logger.Debug("notification applied", "block_id", res.BlockID, "outcome", string(res.Outcome), "graph_version", res.GraphVersion)
		return nil
	})
}
