package vault

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/aclarai/internal/graph"
	"github.com/ppiankov/aclarai/internal/logging"
	"github.com/ppiankov/aclarai/internal/model"
	"github.com/ppiankov/aclarai/internal/retry"
)

// ErrBlockNotFound is returned when a notified file no longer carries the block
var ErrBlockNotFound = errors.New("block not found in file")

// Outcome is what a notification did to the graph
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeCreated   Outcome = "created"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeConflict  Outcome = "conflict"
	OutcomeUpdated   Outcome = "updated"
)

// Result reports one processed notification
type Result struct {
	BlockID      string  `json:"block_id"`
	FilePath     string  `json:"file_path"`
	Outcome      Outcome `json:"outcome"`
	VaultVersion int     `json:"vault_version"`
	GraphVersion int     `json:"graph_version"` // After processing
	Error        string  `json:"error,omitempty"`
}

// BatchResult aggregates a batch. Conflicts count as successes.
type BatchResult struct {
	Results   []Result `json:"results"`
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Conflicts int      `json:"conflicts"`
	Ignored   int      `json:"ignored"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Engine applies change notifications to the graph's block records
type Engine struct {
	store   graph.BlockStore
	root    string
	policy  retry.Policy
	workers int
	logger  *logging.Logger
	now     func() time.Time
}

// NewEngine creates an engine. Relative notification paths resolve against root.
func NewEngine(store graph.BlockStore, root string, cfg model.SyncConfig, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Engine{
		store: store,
		root:  root,
		policy: retry.Policy{
			MaxTries:       cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
			Logger:         logger,
		},
		workers: workers,
		logger:  logger.With("component", "vault-sync"),
		now:     time.Now,
	}
}

func (e *Engine) resolve(path string) string {
	if filepath.IsAbs(path) || e.root == "" {
		return path
	}
	return filepath.Join(e.root, path)
}

// Process applies one notification. Conflicts are reported as an outcome, not an error.
func (e *Engine) Process(ctx context.Context, n model.ChangeNotification) (Result, error) {
	res := Result{BlockID: n.ID, FilePath: n.FilePath, VaultVersion: n.Version}
	if err := n.Validate(); err != nil {
		return res, err
	}
	if n.ChangeType == model.ChangeDeleted {
		res.Outcome = OutcomeIgnored
		return res, nil
	}

	parsed, err := ReadBlock(e.resolve(n.FilePath), n.ID)
	if err != nil {
		return res, err
	}
	if res.VaultVersion <= 0 {
		res.VaultVersion = parsed.Version
	}
	hash := parsed.Hash()
	now := e.now().UTC()

	existing, err := retry.Do(ctx, e.policy, "get block", func(ctx context.Context) (*model.Block, error) {
		return e.store.GetBlock(ctx, n.ID)
	})
	if errors.Is(err, graph.ErrNotFound) {
		b := model.Block{
			ID:                n.ID,
			Text:              parsed.Text,
			ContentHash:       hash,
			SourceFile:        n.FilePath,
			Version:           max(res.VaultVersion, 1),
			NeedsReprocessing: true,
			LastUpdated:       now,
		}
		err := retry.DoErr(ctx, e.policy, "create block", func(ctx context.Context) error {
			return e.store.CreateBlock(ctx, b)
		})
		if errors.Is(err, graph.ErrVersionConflict) {
			e.logger.Warn("block created concurrently, skipping", "block_id", n.ID)
			res.Outcome = OutcomeConflict
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("create block %s: %w", n.ID, err)
		}
		res.Outcome = OutcomeCreated
		res.GraphVersion = b.Version
		e.logger.Info("block created", "block_id", n.ID, "version", b.Version)
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("get block %s: %w", n.ID, err)
	}

	res.GraphVersion = existing.Version
	if existing.ContentHash == hash {
		res.Outcome = OutcomeUnchanged
		return res, nil
	}
	if res.VaultVersion < existing.Version {
		e.logger.Warn("stale vault block, skipping update",
			"block_id", n.ID, "file", n.FilePath,
			"vault_version", res.VaultVersion, "graph_version", existing.Version)
		res.Outcome = OutcomeConflict
		return res, nil
	}

	updated := *existing
	updated.Text = parsed.Text
	updated.ContentHash = hash
	updated.SourceFile = n.FilePath
	updated.Version = existing.Version + 1
	updated.NeedsReprocessing = true
	updated.LastUpdated = now

	err = retry.DoErr(ctx, e.policy, "update block", func(ctx context.Context) error {
		return e.store.UpdateBlock(ctx, updated, existing.Version)
	})
	if errors.Is(err, graph.ErrVersionConflict) {
		e.logger.Warn("block changed during update, skipping", "block_id", n.ID, "expected_version", existing.Version)
		res.Outcome = OutcomeConflict
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("update block %s: %w", n.ID, err)
	}
	res.Outcome = OutcomeUpdated
	res.GraphVersion = updated.Version
	e.logger.Info("block updated", "block_id", n.ID, "version", updated.Version)
	return res, nil
}

// ProcessBatch applies notifications concurrently across block ids and in
// arrival order within one id. Results are positional.
func (e *Engine) ProcessBatch(ctx context.Context, ns []model.ChangeNotification) *BatchResult {
	out := &BatchResult{Results: make([]Result, len(ns))}

	var order []string
	groups := make(map[string][]int)
	for i, n := range ns {
		if _, ok := groups[n.ID]; !ok {
			order = append(order, n.ID)
		}
		groups[n.ID] = append(groups[n.ID], i)
	}

	errs := make([]error, len(ns))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, id := range order {
		idx := groups[id]
		g.Go(func() error {
			for _, i := range idx {
				out.Results[i], errs[i] = e.Process(ctx, ns[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range out.Results {
		if errs[i] != nil {
			out.Results[i].Error = errs[i].Error()
			out.Failed++
			out.Errors = append(out.Errors, fmt.Sprintf("notification %d (%s): %v", i, ns[i].ID, errs[i]))
			continue
		}
		switch r.Outcome {
		case OutcomeCreated:
			out.Created++
		case OutcomeUpdated:
			out.Updated++
		case OutcomeUnchanged:
			out.Unchanged++
		case OutcomeConflict:
			out.Conflicts++
		case OutcomeIgnored:
			out.Ignored++
		}
	}
	return out
}
