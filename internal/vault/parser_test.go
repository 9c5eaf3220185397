package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/aclarai/internal/model"
)

const conversation = `# Standup

Alice: The deployment failed at 10:30 AM. <!-- aclarai:id=blk_a ver=2 -->
^blk_a

Bob: It caused a cascading outage.
<!-- id=blk_b ver=1 -->
^blk_b

Unversioned trailing note.
`

func TestParseBlocks_Inline(t *testing.T) {
	blocks := ParseBlocks(conversation)
	require.Len(t, blocks, 2)

	assert.Equal(t, ParsedBlock{ID: "blk_a", Version: 2, Text: "Alice: The deployment failed at 10:30 AM.", Inline: true}, blocks[0])
	assert.Equal(t, ParsedBlock{ID: "blk_b", Version: 1, Text: "Bob: It caused a cascading outage.", Inline: true}, blocks[1])
}

func TestParseBlocks_FileLevel(t *testing.T) {
	doc := "# Concept\n\nA summary of the outage.\n\n<!-- aclarai:id=file_1 ver=4 -->\n\n  \n"
	blocks := ParseBlocks(doc)
	require.Len(t, blocks, 1)
	assert.False(t, blocks[0].Inline)
	assert.Equal(t, 4, blocks[0].Version)
	assert.Equal(t, "# Concept\n\nA summary of the outage.", blocks[0].Text)
}

func TestParseBlocks_FileLevelAfterInline(t *testing.T) {
	doc := "First. <!-- id=a ver=1 -->\n^a\n\nSecond.\n<!-- id=doc ver=3 -->"
	blocks := ParseBlocks(doc)
	require.Len(t, blocks, 2)
	assert.True(t, blocks[0].Inline)
	assert.False(t, blocks[1].Inline)
	assert.Equal(t, "First. Second.", model.NormalizeWhitespace(blocks[1].Text))
	assert.NotContains(t, blocks[1].Text, "^a")
}

func TestParseBlocks_NoComments(t *testing.T) {
	assert.Empty(t, ParseBlocks("just text\n"))
}

func TestFindBlockAndHash(t *testing.T) {
	b, ok := FindBlock(conversation, "blk_b")
	require.True(t, ok)
	assert.Equal(t, model.HashContent("Bob:  It caused\na cascading outage."), b.Hash())

	_, ok = FindBlock(conversation, "missing")
	assert.False(t, ok)
}

func TestReadBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "standup.md")
	require.NoError(t, os.WriteFile(path, []byte(conversation), 0644))

	b, err := ReadBlock(path, "blk_a")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Version)

	_, err = ReadBlock(path, "nope")
	assert.ErrorIs(t, err, ErrBlockNotFound)

	_, err = ReadBlock(filepath.Join(t.TempDir(), "gone.md"), "blk_a")
	assert.Error(t, err)
}

func TestToBlocks(t *testing.T) {
	blocks := ToBlocks(ParseBlocks(conversation), "standup.md")
	require.Len(t, blocks, 2)
	assert.Equal(t, "standup.md", blocks[0].SourceFile)
	assert.Equal(t, 2, blocks[0].Version)
	assert.Equal(t, model.HashContent(blocks[0].Text), blocks[0].ContentHash)
}
