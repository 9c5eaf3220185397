package concepts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/aclarai/internal/model"
)

func backends(t *testing.T) map[string]CandidateStore {
	t.Helper()
	sq, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]CandidateStore{
		"memory": NewMemoryStore(),
		"sqlite": sq,
	}
}

func cand(id, norm string, emb []float32) model.NounPhraseCandidate {
	return model.NounPhraseCandidate{
		ID:             id,
		Text:           norm,
		NormalizedText: norm,
		SourceNodeID:   "claim_1",
		SourceNodeType: model.SourceClaim,
		AclaraiID:      "doc_1",
		Embedding:      emb,
		Status:         model.StatusPending,
		Timestamp:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCandidateStore_AppendOnly(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			n, err := s.Store(ctx, []model.NounPhraseCandidate{
				cand("a", "outage", []float32{1, 0}),
				cand("b", "rollback", nil),
			})
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			changed := cand("a", "changed", []float32{0, 1})
			n, err = s.Store(ctx, []model.NounPhraseCandidate{changed, cand("c", "pager", []float32{0, 1})})
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			got, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "outage", got.NormalizedText)
			assert.Equal(t, []float32{1, 0}, got.Embedding)
			assert.Equal(t, model.SourceClaim, got.SourceNodeType)
			assert.True(t, got.Timestamp.Equal(cand("a", "", nil).Timestamp))

			b, err := s.Get(ctx, "b")
			require.NoError(t, err)
			assert.Nil(t, b.Embedding)

			_, err = s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestCandidateStore_StatusTransitions(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Store(ctx, []model.NounPhraseCandidate{
				cand("a", "outage", []float32{1, 0}),
				cand("b", "rollback", []float32{0, 1}),
				cand("c", "pager", nil),
			})
			require.NoError(t, err)

			require.NoError(t, s.UpdateStatus(ctx, "a", model.StatusPromoted, "concept_1"))
			assert.ErrorIs(t, s.UpdateStatus(ctx, "a", model.StatusMerged, "concept_2"), ErrInvalidTransition)
			assert.ErrorIs(t, s.UpdateStatus(ctx, "b", model.StatusPending, ""), ErrInvalidTransition)
			assert.ErrorIs(t, s.UpdateStatus(ctx, "missing", model.StatusMerged, ""), ErrNotFound)
			require.NoError(t, s.UpdateStatus(ctx, "b", model.StatusMerged, "concept_1"))

			got, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, model.StatusPromoted, got.Status)
			assert.Equal(t, "concept_1", got.ConceptID)

			idx, err := s.ListIndexable(ctx)
			require.NoError(t, err)
			require.Len(t, idx, 1)
			assert.Equal(t, "a", idx[0].ID)
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/nested/candidates.db"
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	_, err = s.Store(context.Background(), []model.NounPhraseCandidate{cand("a", "outage", []float32{0.5, 0.25})})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, got.Embedding)
}
