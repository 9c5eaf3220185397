package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ppiankov/aclarai/internal/logging"
	"github.com/ppiankov/aclarai/internal/model"
	"github.com/ppiankov/aclarai/internal/retry"
)

var nodeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("aclarai:graph-node"))

// NodeID derives a stable node id, so persisting the same run twice updates
// the same nodes instead of creating new ones.
func NodeID(kind, chunkID string, index int, text string) string {
	return uuid.NewSHA1(nodeNamespace, []byte(fmt.Sprintf("%s/%s/%d/%s", kind, chunkID, index, text))).String()
}

// ToInputs converts pipeline results into node writes. Kept candidates that
// pass all criteria become claims, the rest become sentences. Chunks rejected
// by selection become sentences carrying the rejection reason. Chunks that
// failed emit nothing.
func ToInputs(results []*model.ClaimifyResult) ([]model.ClaimInput, []model.SentenceInput) {
	var claims []model.ClaimInput
	var sentences []model.SentenceInput

	for _, r := range results {
		if r == nil || r.HasErrors() || r.Selection == nil {
			continue
		}
		chunk := r.Chunk

		if !r.Selection.IsSelected {
			sentences = append(sentences, model.SentenceInput{
				ID:            NodeID("sentence", chunk.ChunkID, -1, chunk.Text),
				Text:          chunk.Text,
				BlockID:       chunk.SourceBlockID,
				ChunkID:       chunk.ChunkID,
				RejectionNote: r.Selection.RejectionReason(),
			})
			continue
		}
		if r.Decomposition == nil {
			continue
		}

		for i, c := range r.Decomposition.ClaimCandidates {
			if c.PassesCriteria() {
				claims = append(claims, model.ClaimInput{
					ID:              NodeID("claim", chunk.ChunkID, i, c.Text),
					Text:            c.Text,
					BlockID:         chunk.SourceBlockID,
					ChunkID:         chunk.ChunkID,
					Confidence:      c.Confidence,
					Verifiable:      c.IsVerifiable,
					SelfContained:   c.IsSelfContained,
					ContextComplete: c.IsSelfContained,
				})
				continue
			}
			sentences = append(sentences, model.SentenceInput{
				ID:           NodeID("sentence", chunk.ChunkID, i, c.Text),
				Text:         c.Text,
				BlockID:      chunk.SourceBlockID,
				ChunkID:      chunk.ChunkID,
				Ambiguous:    !c.IsSelfContained,
				Verifiable:   c.IsVerifiable,
				FailedDecomp: true,
			})
		}
	}
	return claims, sentences
}

// PersistResult reports what a Persist call wrote
type PersistResult struct {
	Claims    int      `json:"claims"`
	Sentences int      `json:"sentences"`
	Errors    []string `json:"errors,omitempty"`
}

// Persister writes pipeline results with retries on transient failures
type Persister struct {
	store  ClaimWriter
	policy retry.Policy
	logger *logging.Logger
}

// NewPersister creates a persister
func NewPersister(store ClaimWriter, policy retry.Policy, logger *logging.Logger) *Persister {
	if logger == nil {
		logger = logging.NewNop()
	}
	if policy.Logger == nil {
		policy.Logger = logger
	}
	return &Persister{store: store, policy: policy, logger: logger}
}

// Persist writes claims and sentences as two batches. A failed batch is
// reported in Errors and does not prevent the other batch.
func (p *Persister) Persist(ctx context.Context, results []*model.ClaimifyResult) *PersistResult {
	claims, sentences := ToInputs(results)
	out := &PersistResult{}

	if len(claims) > 0 {
		n, err := retry.Do(ctx, p.policy, "upsert claims", func(ctx context.Context) (int, error) {
			return p.store.UpsertClaims(ctx, claims)
		})
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("upsert claims: %v", err))
			p.logger.Error("persist claims failed", "count", len(claims), "error", err.Error())
		}
		out.Claims = n
	}

	if len(sentences) > 0 {
		n, err := retry.Do(ctx, p.policy, "upsert sentences", func(ctx context.Context) (int, error) {
			return p.store.UpsertSentences(ctx, sentences)
		})
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("upsert sentences: %v", err))
			p.logger.Error("persist sentences failed", "count", len(sentences), "error", err.Error())
		}
		out.Sentences = n
	}

	p.logger.Info("persisted claimify results", "claims", out.Claims, "sentences", out.Sentences)
	return out
}
