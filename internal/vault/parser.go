// Package vault reconciles version-commented Markdown blocks with the graph.
package vault

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/aclarai/internal/extract"
	"github.com/ppiankov/aclarai/internal/model"
)

var (
	commentRe   = regexp.MustCompile(`<!--\s*(?:aclarai:)?id=([^\s>]+)\s+ver=(\d+)\s*-->`)
	blankLineRe = regexp.MustCompile(`\n[ \t]*\n`)
)

// ParsedBlock is one block found in a Markdown file
type ParsedBlock struct {
	ID      string
	Version int
	Text    string
	Inline  bool // False for a file-level block whose comment ends the file
}

// Hash returns the content hash of the block text
func (b ParsedBlock) Hash() string {
	return model.HashContent(b.Text)
}

// ParseBlocks finds every version comment in content. An inline block's text
// is the paragraph leading up to its comment; a file-level block covers the
// whole file with markers removed.
func ParseBlocks(content string) []ParsedBlock {
	matches := commentRe.FindAllStringSubmatchIndex(content, -1)
	blocks := make([]ParsedBlock, 0, len(matches))
	prevEnd := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		id := content[m[2]:m[3]]
		ver, err := strconv.Atoi(content[m[4]:m[5]])
		if err != nil {
			continue
		}

		rest := content[end:]
		if strings.TrimSpace(rest) == "" {
			blocks = append(blocks, ParsedBlock{
				ID:      id,
				Version: ver,
				Text:    strings.TrimSpace(extract.StripMarkers(content[:start])),
			})
			prevEnd = len(content)
			continue
		}

		seg := content[prevEnd:start]
		if locs := blankLineRe.FindAllStringIndex(seg, -1); len(locs) > 0 {
			seg = seg[locs[len(locs)-1][1]:]
		}
		blocks = append(blocks, ParsedBlock{
			ID:      id,
			Version: ver,
			Text:    strings.TrimSpace(extract.StripMarkers(seg)),
			Inline:  true,
		})
		prevEnd = end + anchorLen(rest, id)
	}
	return blocks
}

// anchorLen returns how much of rest is taken by a ^id anchor following the comment
func anchorLen(rest, id string) int {
	trimmed := strings.TrimLeft(rest, " \t\r\n")
	anchor := "^" + id
	if !strings.HasPrefix(trimmed, anchor) {
		return 0
	}
	return len(rest) - len(trimmed) + len(anchor)
}

// FindBlock returns the block with the given id
func FindBlock(content, id string) (ParsedBlock, bool) {
	for _, b := range ParseBlocks(content) {
		if b.ID == id {
			return b, true
		}
	}
	return ParsedBlock{}, false
}

// ReadBlock loads path and locates block id in it
func ReadBlock(path, id string) (ParsedBlock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ParsedBlock{}, fmt.Errorf("read %s: %w", path, err)
	}
	b, ok := FindBlock(string(data), id)
	if !ok {
		return ParsedBlock{}, fmt.Errorf("block %s not in %s: %w", id, path, ErrBlockNotFound)
	}
	return b, nil
}

// ToBlocks converts parsed blocks into graph blocks for the given file
func ToBlocks(parsed []ParsedBlock, sourceFile string) []model.Block {
	out := make([]model.Block, 0, len(parsed))
	for _, p := range parsed {
		out = append(out, model.Block{
			ID:          p.ID,
			Text:        p.Text,
			ContentHash: p.Hash(),
			SourceFile:  sourceFile,
			Version:     max(p.Version, 1),
		})
	}
	return out
}
