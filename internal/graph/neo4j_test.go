package graph

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/aclarai/internal/model"
)

func newTestNeo4j(t *testing.T) *Neo4jStore {
	t.Helper()
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		t.Skip("NEO4J_URI not set")
	}
	s, err := NewNeo4jStore(context.Background(), model.GraphConfig{
		URI:      uri,
		Username: os.Getenv("NEO4J_USER"),
		Password: os.Getenv("NEO4J_PASSWORD"),
		Database: os.Getenv("NEO4J_DATABASE"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestNeo4jStore_BlockVersions(t *testing.T) {
	s := newTestNeo4j(t)
	ctx := context.Background()
	id := "blk_" + uuid.NewString()

	_, err := s.GetBlock(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	b := model.Block{ID: id, Text: "one", ContentHash: model.HashContent("one"), Version: 3, LastUpdated: time.Now()}
	require.NoError(t, s.CreateBlock(ctx, b))
	assert.ErrorIs(t, s.CreateBlock(ctx, b), ErrVersionConflict)

	b.Text, b.Version = "two", 4
	require.NoError(t, s.UpdateBlock(ctx, b, 3))
	assert.ErrorIs(t, s.UpdateBlock(ctx, b, 3), ErrVersionConflict)

	got, err := s.GetBlock(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Version)
	assert.Equal(t, "two", got.Text)
}

func TestNeo4jStore_UpsertClaimsBumpsVersion(t *testing.T) {
	s := newTestNeo4j(t)
	ctx := context.Background()
	claim := model.ClaimInput{ID: uuid.NewString(), Text: "x", BlockID: "blk_" + uuid.NewString(), SelfContained: true}

	n, err := s.UpsertClaims(ctx, []model.ClaimInput{claim})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = s.UpsertClaims(ctx, []model.ClaimInput{claim})
	require.NoError(t, err)

	require.NoError(t, s.CreateConcepts(ctx, []model.ConceptInput{{
		ID: "concept_" + uuid.NewString(), Text: "x", SourceCandidateID: "claim_" + claim.ID + "_x",
		SourceNodeID: claim.ID, SourceNodeType: "claim", Version: 1, Timestamp: time.Now(),
	}}))
}
