package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/aclarai/internal/model"
)

func TestChunker_Chunk(t *testing.T) {
	c := NewChunker(NewRuleSegmenter(), 3)
	chunks := c.Chunk("blk_1", "The deployment failed at 10:30 AM. It caused a cascading outage.\n\nOk.\n")

	require.Len(t, chunks, 3)
	assert.Equal(t, "The deployment failed at 10:30 AM.", chunks[0].Text)
	assert.Equal(t, "It caused a cascading outage.", chunks[1].Text)
	assert.Equal(t, "Ok.", chunks[2].Text)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.SentenceIndex)
		assert.Equal(t, "blk_1", ch.SourceBlockID)
		assert.NotEmpty(t, ch.ChunkID)
	}

	again := c.Chunk("blk_1", "The deployment failed at 10:30 AM. It caused a cascading outage.\n\nOk.\n")
	assert.Equal(t, chunks, again)

	other := c.Chunk("blk_2", "The deployment failed at 10:30 AM.")
	assert.NotEqual(t, chunks[0].ChunkID, other[0].ChunkID)
}

func TestChunker_DropsShortFragments(t *testing.T) {
	c := NewChunker(nil, 10)
	chunks := c.Chunk("b", "Yes. The service restarted cleanly.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "The service restarted cleanly.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].SentenceIndex)
}

func TestChunker_ChunkBlocks(t *testing.T) {
	c := NewChunker(nil, 1)
	chunks := c.ChunkBlocks([]model.Block{
		{ID: "a", Text: "One. Two."},
		{ID: "b", Text: "Three."},
	})
	require.Len(t, chunks, 3)
	assert.Equal(t, "b", chunks[2].SourceBlockID)
	assert.Equal(t, 0, chunks[2].SentenceIndex)
}
