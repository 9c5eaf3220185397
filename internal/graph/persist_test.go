package graph

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/aclarai/internal/extract"
	"github.com/ppiankov/aclarai/internal/llm"
	"github.com/ppiankov/aclarai/internal/model"
	"github.com/ppiankov/aclarai/internal/pipeline"
	"github.com/ppiankov/aclarai/internal/retry"
)

func chunk(id, text string) model.SentenceChunk {
	return model.SentenceChunk{Text: text, SourceBlockID: "blk_1", ChunkID: id}
}

func TestToInputs(t *testing.T) {
	results := []*model.ClaimifyResult{
		{
			Chunk:          chunk("c0", "The API returned 500s."),
			Selection:      &model.SelectionResult{IsSelected: true, Confidence: 0.9},
			Disambiguation: &model.DisambiguationResult{DisambiguatedText: "The API returned 500s."},
			Decomposition: &model.DecompositionResult{ClaimCandidates: []model.ClaimCandidate{
				{Text: "The API returned 500s.", IsAtomic: true, IsSelfContained: true, IsVerifiable: true, Confidence: 0.9},
				{Text: "They were bad.", IsAtomic: true, IsSelfContained: false, IsVerifiable: true, Confidence: 0.7},
			}},
		},
		{
			Chunk:     chunk("c1", "Thanks everyone!"),
			Selection: &model.SelectionResult{IsSelected: false, Confidence: 0.95, Reasoning: "gratitude", RejectedBy: model.RejectedByModel},
		},
		{
			Chunk:  chunk("c2", "Broken."),
			Errors: []string{"selection: timeout"},
		},
	}

	claims, sentences := ToInputs(results)
	require.Len(t, claims, 1)
	assert.Equal(t, "The API returned 500s.", claims[0].Text)
	assert.Equal(t, "blk_1", claims[0].BlockID)
	assert.True(t, claims[0].SelfContained)
	assert.True(t, claims[0].ContextComplete)
	assert.Nil(t, claims[0].EntailedScore)
	assert.Nil(t, claims[0].CoverageScore)
	assert.Nil(t, claims[0].DecontextScore)

	require.Len(t, sentences, 2)
	assert.Equal(t, "They were bad.", sentences[0].Text)
	assert.True(t, sentences[0].Ambiguous)
	assert.True(t, sentences[0].FailedDecomp)
	assert.Equal(t, "Thanks everyone!", sentences[1].Text)
	assert.Equal(t, "model rejected: gratitude", sentences[1].RejectionNote)

	again, _ := ToInputs(results)
	assert.Equal(t, claims[0].ID, again[0].ID)
}

func TestPersist_EndToEndScenario(t *testing.T) {
	const s1, s2 = "The deployment failed at 10:30 AM.", "It caused a cascading outage."
	prov := llm.NewScriptedProvider("scripted").
		On(`{"selected": true, "confidence": 0.95}`, "Selection stage").
		On(`{"disambiguated_text": "The deployment failed at 10:30 AM.", "confidence": 0.95}`, "Disambiguation stage", `TARGET: "`+s1+`"`).
		On(`{"disambiguated_text": "The deployment failure caused a cascading outage.", "changes": ["It -> The deployment failure"], "confidence": 0.9}`, "Disambiguation stage", `TARGET: "`+s2+`"`).
		On(`{"claim_candidates": [{"text": "The deployment failed at 10:30 AM.", "is_atomic": true, "is_self_contained": true, "is_verifiable": true, "confidence": 0.95}]}`,
			"Decomposition stage", "failed at 10:30").
		On(`{"claim_candidates": [{"text": "The deployment failure caused a cascading outage.", "is_atomic": true, "is_self_contained": true, "is_verifiable": true, "confidence": 0.9}]}`,
			"Decomposition stage", "cascading outage")

	cfg := model.DefaultConfig().Claimify
	cfg.ContextWindowP, cfg.ContextWindowF = 1, 1
	p, err := pipeline.New(prov, cfg)
	require.NoError(t, err)

	chunks := extract.NewChunker(nil, 1).Chunk("blk_incident", s1+" "+s2)
	results := p.ProcessChunks(context.Background(), chunks)

	store := NewMemoryStore()
	out := NewPersister(store, retry.DefaultPolicy(), nil).Persist(context.Background(), results)
	assert.Empty(t, out.Errors)
	assert.Equal(t, 2, out.Claims)

	stored := store.Claims()
	require.Len(t, stored, 2)
	for _, c := range stored {
		assert.Equal(t, "blk_incident", c.Node.BlockID)
		assert.True(t, c.Node.SelfContained)
		assert.Equal(t, 1, c.Version)
	}
	assert.Empty(t, store.Sentences())

	// Writing the same results again updates the same nodes
	NewPersister(store, retry.DefaultPolicy(), nil).Persist(context.Background(), results)
	stored = store.Claims()
	require.Len(t, stored, 2)
	assert.Equal(t, 2, stored[0].Version)
}

// flakyWriter fails the first calls with a transient error
type flakyWriter struct {
	*MemoryStore
	failures int32
	calls    int32
	err      error
}

func (f *flakyWriter) UpsertClaims(ctx context.Context, claims []model.ClaimInput) (int, error) {
	if atomic.AddInt32(&f.calls, 1) <= f.failures {
		return 0, f.err
	}
	return f.MemoryStore.UpsertClaims(ctx, claims)
}

func okResult() []*model.ClaimifyResult {
	return []*model.ClaimifyResult{{
		Chunk:          chunk("c0", "Disk usage hit 95%."),
		Selection:      &model.SelectionResult{IsSelected: true},
		Disambiguation: &model.DisambiguationResult{},
		Decomposition: &model.DecompositionResult{ClaimCandidates: []model.ClaimCandidate{
			{Text: "Disk usage hit 95%.", IsAtomic: true, IsSelfContained: true, IsVerifiable: true, Confidence: 1},
		}},
	}}
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxTries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestPersist_RetriesTransientErrors(t *testing.T) {
	w := &flakyWriter{MemoryStore: NewMemoryStore(), failures: 2, err: errors.New("connection reset by peer")}
	out := NewPersister(w, fastPolicy(), nil).Persist(context.Background(), okResult())
	assert.Empty(t, out.Errors)
	assert.Equal(t, 1, out.Claims)
	assert.EqualValues(t, 3, atomic.LoadInt32(&w.calls))
}

func TestPersist_PermanentErrorFailsFast(t *testing.T) {
	w := &flakyWriter{MemoryStore: NewMemoryStore(), failures: 10, err: errors.New("syntax error in query")}
	out := NewPersister(w, fastPolicy(), nil).Persist(context.Background(), okResult())
	require.Len(t, out.Errors, 1)
	assert.Zero(t, out.Claims)
	assert.EqualValues(t, 1, atomic.LoadInt32(&w.calls))
}
