// Package pipeline runs the Claimify Selection, Disambiguation and
// Decomposition stages over sentence chunks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/aclarai/internal/llm"
	"github.com/ppiankov/aclarai/internal/logging"
	"github.com/ppiankov/aclarai/internal/model"
	"github.com/ppiankov/aclarai/internal/retry"
	"github.com/ppiankov/aclarai/internal/worker"
)

// Pipeline orchestrates the three Claimify stages. It holds no per-chunk
// state and is safe for concurrent use.
type Pipeline struct {
	provider    llm.Provider
	cfg         model.ClaimifyConfig
	limiter     *worker.Limiter
	workers     int
	retryPolicy retry.Policy
	logger      *logging.Logger
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithLimiter rate-limits provider calls, keyed by provider name
func WithLimiter(l *worker.Limiter) Option {
	return func(p *Pipeline) { p.limiter = l }
}

// WithWorkers sets how many chunks are processed concurrently
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a pipeline over provider. A provider is required; tests use llm.ScriptedProvider.
func New(provider llm.Provider, cfg model.ClaimifyConfig, opts ...Option) (*Pipeline, error) {
	if provider == nil {
		return nil, errors.New("pipeline requires a completion provider")
	}
	p := &Pipeline{
		provider: provider,
		cfg:      cfg,
		workers:  1,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.retryPolicy = retry.DefaultPolicy()
	p.retryPolicy.MaxTries = max(1, cfg.MaxRetries)
	p.retryPolicy.Logger = p.logger
	return p, nil
}

// ProcessSentence runs the stages for one chunk. It never panics or returns an
// error: failures are recorded in the result and stop the remaining stages.
func (p *Pipeline) ProcessSentence(ctx context.Context, cc model.ClaimifyContext) (res *model.ClaimifyResult) {
	start := time.Now()
	res = &model.ClaimifyResult{Chunk: cc.Current, Context: cc}
	defer func() {
		if r := recover(); r != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("panic: %v", r))
			p.logger.Error("claimify panic", "chunk_id", cc.Current.ChunkID, "panic", fmt.Sprint(r))
		}
		res.TotalProcessingTime = time.Since(start)
	}()

	sel, err := p.selectStage(ctx, cc)
	if err != nil {
		p.fail(res, err)
		return res
	}
	res.Selection = sel
	if !sel.IsSelected {
		p.logger.Debug("chunk rejected", "chunk_id", cc.Current.ChunkID, "reason", sel.RejectionReason())
		return res
	}

	dis, err := p.disambiguateStage(ctx, cc)
	if err != nil {
		p.fail(res, err)
		return res
	}
	res.Disambiguation = dis

	dec, err := p.decomposeStage(ctx, dis.DisambiguatedText)
	if err != nil {
		p.fail(res, err)
		return res
	}
	res.Decomposition = dec
	return res
}

func (p *Pipeline) fail(res *model.ClaimifyResult, err error) {
	res.Errors = append(res.Errors, err.Error())
	p.logger.Warn("claimify stage failed", "chunk_id", res.Chunk.ChunkID, "error", err.Error())
}

// ProcessChunks builds context windows from the original sequence and
// processes every chunk on the worker pool. Results are in input order.
func (p *Pipeline) ProcessChunks(ctx context.Context, chunks []model.SentenceChunk) []*model.ClaimifyResult {
	contexts := BuildContexts(chunks, p.cfg.ContextWindowP, p.cfg.ContextWindowF)
	results := worker.RunOrdered(ctx, p.workers, len(contexts), func(ctx context.Context, i int) *model.ClaimifyResult {
		return p.ProcessSentence(ctx, contexts[i])
	})
	// Chunks never started because the context ended still get a result
	for i, r := range results {
		if r == nil {
			results[i] = &model.ClaimifyResult{
				Chunk:   contexts[i].Current,
				Context: contexts[i],
				Errors:  []string{fmt.Sprintf("not processed: %v", context.Cause(ctx))},
			}
		}
	}
	return results
}
