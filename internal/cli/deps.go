package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ppiankov/aclarai/internal/cache"
	"github.com/ppiankov/aclarai/internal/concepts"
	"github.com/ppiankov/aclarai/internal/extract"
	"github.com/ppiankov/aclarai/internal/graph"
	"github.com/ppiankov/aclarai/internal/llm"
	"github.com/ppiankov/aclarai/internal/logging"
	"github.com/ppiankov/aclarai/internal/model"
	"github.com/ppiankov/aclarai/internal/retry"
	"github.com/ppiankov/aclarai/internal/worker"
)

func buildProvider(cfg *model.Config) (llm.Provider, error) {
	p, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.Claimify.TimeoutSeconds))
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}
	return p, nil
}

func buildEmbedder(cfg *model.Config) (llm.Embedder, error) {
	e, err := llm.NewEmbedder(llm.EmbeddingConfigFromModel(cfg.Embedding, cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	if !cfg.Cache.Enabled {
		return e, nil
	}
	c := cache.NewMemoryDiskCache(time.Hour, expandHome(cfg.Cache.Dir), cfg.Cache.TTL)
	return llm.NewCachedEmbedder(e, c, cfg.Cache.TTL), nil
}

func buildLimiter(cfg *model.Config) *worker.Limiter {
	if !cfg.RateLimiting.Enabled {
		return nil
	}
	return worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.Burst)
}

// buildGraph returns Neo4j when a URI is configured, otherwise an in-memory graph
func buildGraph(ctx context.Context, cfg *model.Config, dryRun bool, logger *logging.Logger) (graph.Store, error) {
	if dryRun || cfg.Graph.URI == "" {
		logger.Info("using in-memory graph", "dry_run", dryRun)
		return graph.NewMemoryStore(), nil
	}
	s, err := graph.NewNeo4jStore(ctx, cfg.Graph, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func buildCandidateStore(cfg *model.Config) (*concepts.SQLiteStore, error) {
	return concepts.NewSQLiteStore(cfg.Store.Path)
}

func syncPolicy(cfg *model.Config, logger *logging.Logger) retry.Policy {
	return retry.Policy{
		MaxTries:       cfg.Sync.MaxRetries,
		InitialBackoff: cfg.Sync.InitialBackoff,
		MaxBackoff:     cfg.Sync.MaxBackoff,
		Logger:         logger,
	}
}

// conceptStack wires the concept processor and its detector
type conceptStack struct {
	store     *concepts.SQLiteStore
	detector  *concepts.Detector
	processor *concepts.Processor
}

func (s *conceptStack) Close() error { return s.store.Close() }

func buildConceptStack(cfg *model.Config, g graph.ConceptWriter, logger *logging.Logger) (*conceptStack, error) {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	store, err := buildCandidateStore(cfg)
	if err != nil {
		return nil, err
	}
	detector := concepts.NewDetector(store, cfg.Concepts, logger)
	files := concepts.NewFileWriter(filepath.Join(expandHome(cfg.Vault.Root), cfg.Vault.ConceptsDir))
	extractor := extract.NewNounPhraseExtractor(extract.ProseTagger{}, embedder, logger)
	return &conceptStack{
		store:     store,
		detector:  detector,
		processor: concepts.NewProcessor(extractor, store, detector, g, files, syncPolicy(cfg, logger), logger),
	}, nil
}
