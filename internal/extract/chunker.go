package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ppiankov/aclarai/internal/model"
)

var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("aclarai:sentence-chunk"))

// Chunker turns Markdown blocks into ordered sentence chunks
type Chunker struct {
	segmenter Segmenter
	minChars  int
}

// NewChunker creates a chunker; sentences shorter than minChars runes are dropped
func NewChunker(seg Segmenter, minChars int) *Chunker {
	if seg == nil {
		seg = NewRuleSegmenter()
	}
	return &Chunker{segmenter: seg, minChars: minChars}
}

// Chunk splits one block. Chunk IDs depend only on block ID, position and
// text, so chunking the same block twice yields the same IDs.
func (c *Chunker) Chunk(blockID, markdown string) []model.SentenceChunk {
	var sentences []string
	for _, para := range Paragraphs(markdown) {
		sentences = append(sentences, mergeColonLeads(c.segmenter.Split(para))...)
	}

	chunks := make([]model.SentenceChunk, 0, len(sentences))
	for _, s := range sentences {
		if utf8.RuneCountInString(s) < c.minChars {
			continue
		}
		idx := len(chunks)
		chunks = append(chunks, model.SentenceChunk{
			Text:          s,
			SourceBlockID: blockID,
			ChunkID:       ChunkID(blockID, idx, s),
			SentenceIndex: idx,
		})
	}
	return chunks
}

// ChunkBlocks chunks blocks in order and concatenates the results
func (c *Chunker) ChunkBlocks(blocks []model.Block) []model.SentenceChunk {
	var out []model.SentenceChunk
	for _, b := range blocks {
		out = append(out, c.Chunk(b.ID, b.Text)...)
	}
	return out
}

// ChunkID derives the stable UUIDv5 of a chunk
func ChunkID(blockID string, index int, text string) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s/%d/%s", blockID, index, text))).String()
}

// mergeColonLeads joins a lead-in ending in ":" with the sentence after it
func mergeColonLeads(sentences []string) []string {
	out := make([]string, 0, len(sentences))
	carry := ""
	for _, s := range sentences {
		if carry != "" {
			s = carry + " " + s
			carry = ""
		}
		if strings.HasSuffix(s, ":") {
			carry = s
			continue
		}
		out = append(out, s)
	}
	if carry != "" {
		out = append(out, carry)
	}
	return out
}
