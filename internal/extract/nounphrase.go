package extract

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/tsawler/prose/v3"

	"github.com/ppiankov/aclarai/internal/llm"
	"github.com/ppiankov/aclarai/internal/logging"
	"github.com/ppiankov/aclarai/internal/model"
)

// TaggedToken is a word with its Penn Treebank part-of-speech tag
type TaggedToken struct {
	Text string
	Tag  string
}

// Tagger assigns part-of-speech tags
type Tagger interface {
	Tag(text string) ([]TaggedToken, error)
}

// ProseTagger tags with the prose averaged-perceptron model
type ProseTagger struct{}

func (ProseTagger) Tag(text string) ([]TaggedToken, error) {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, fmt.Errorf("tag text: %w", err)
	}
	toks := doc.Tokens()
	out := make([]TaggedToken, len(toks))
	for i, t := range toks {
		out[i] = TaggedToken{Text: t.Text, Tag: t.Tag}
	}
	return out, nil
}

// NounPhraseExtractor pulls concept candidates out of Claim and Summary text
type NounPhraseExtractor struct {
	tagger   Tagger
	embedder llm.Embedder
	logger   *logging.Logger
	now      func() time.Time
}

// NewNounPhraseExtractor creates an extractor; a nil embedder leaves embeddings empty
func NewNounPhraseExtractor(tagger Tagger, embedder llm.Embedder, logger *logging.Logger) *NounPhraseExtractor {
	if tagger == nil {
		tagger = ProseTagger{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &NounPhraseExtractor{tagger: tagger, embedder: embedder, logger: logger, now: time.Now}
}

// Extract returns one pending candidate per distinct normalized phrase in the block.
// Embedding failures are logged and leave Embedding nil.
func (e *NounPhraseExtractor) Extract(ctx context.Context, block model.BlockInput, nodeType model.SourceNodeType) ([]model.NounPhraseCandidate, error) {
	if !nodeType.Valid() {
		return nil, fmt.Errorf("unknown source node type %q", nodeType)
	}
	if strings.TrimSpace(block.SemanticText) == "" {
		return nil, nil
	}

	tokens, err := e.tagger.Tag(block.SemanticText)
	if err != nil {
		return nil, err
	}

	ts := e.now().UTC()
	seen := make(map[string]bool)
	var out []model.NounPhraseCandidate
	for _, phrase := range ChunkNounPhrases(tokens) {
		norm := NormalizePhrase(phrase)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, model.NounPhraseCandidate{
			ID:             CandidateID(nodeType, block.ID, phrase),
			Text:           phrase,
			NormalizedText: norm,
			SourceNodeID:   block.ID,
			SourceNodeType: nodeType,
			AclaraiID:      block.AclaraiID,
			Status:         model.StatusPending,
			Timestamp:      ts,
		})
	}

	if e.embedder != nil && len(out) > 0 {
		texts := make([]string, len(out))
		for i, c := range out {
			texts[i] = c.NormalizedText
		}
		vecs, err := e.embedder.Embed(ctx, texts)
		if err != nil {
			e.logger.Warn("embedding noun phrases failed, continuing without vectors",
				"source_node_id", block.ID, "phrases", len(out), "error", err.Error())
		} else {
			for i := range out {
				out[i].Embedding = vecs[i]
			}
		}
	}
	return out, nil
}

// CandidateID is {source_node_type}_{source_node_id}_{first 50 runes of text}
func CandidateID(nodeType model.SourceNodeType, nodeID, text string) string {
	r := []rune(text)
	if len(r) > 50 {
		r = r[:50]
	}
	return fmt.Sprintf("%s_%s_%s", nodeType, nodeID, string(r))
}

// ChunkNounPhrases matches (DT|PRP$)? (JJ|VBN|VBG|CD)* NN+ over tagged tokens
func ChunkNounPhrases(tokens []TaggedToken) []string {
	var out []string
	for i := 0; i < len(tokens); {
		j := i
		if j < len(tokens) && (tokens[j].Tag == "DT" || tokens[j].Tag == "PRP$") {
			j++
		}
		for j < len(tokens) && isModifier(tokens[j].Tag) {
			j++
		}
		nounStart := j
		for j < len(tokens) && isNoun(tokens[j].Tag) {
			j++
		}
		if j == nounStart {
			i++
			continue
		}
		words := make([]string, 0, j-i)
		for _, t := range tokens[i:j] {
			words = append(words, t.Text)
		}
		out = append(out, strings.Join(words, " "))
		i = j
	}
	return out
}

func isModifier(tag string) bool {
	switch tag {
	case "JJ", "JJR", "JJS", "VBN", "VBG", "CD":
		return true
	}
	return false
}

func isNoun(tag string) bool {
	switch tag {
	case "NN", "NNS", "NNP", "NNPS":
		return true
	}
	return false
}

var leadingDeterminers = map[string]bool{
	"the": true, "a": true, "an": true, "this": true, "that": true, "these": true, "those": true,
	"my": true, "our": true, "your": true, "their": true, "its": true, "his": true, "her": true,
	"some": true, "any": true, "each": true, "every": true,
}

var stopPhrases = map[string]bool{
	"i": true, "me": true, "we": true, "us": true, "you": true, "he": true, "him": true,
	"she": true, "it": true, "they": true, "them": true, "this": true, "that": true,
	"thing": true, "something": true, "anything": true, "everything": true, "nothing": true,
	"someone": true, "anyone": true, "everyone": true, "one": true, "way": true, "lot": true,
}

var irregularPlurals = map[string]string{
	"people": "person", "children": "child", "men": "man", "women": "woman",
	"mice": "mouse", "feet": "foot", "teeth": "tooth", "criteria": "criterion",
	"phenomena": "phenomenon", "analyses": "analysis", "indices": "index",
}

// NormalizePhrase lowercases, strips leading determiners and punctuation and
// singularizes the head noun. Empty means the phrase should be discarded.
func NormalizePhrase(phrase string) string {
	s := stripPunctuation(strings.ToLower(phrase))
	words := strings.Fields(s)
	for len(words) > 0 && leadingDeterminers[words[0]] {
		words = words[1:]
	}
	if len(words) == 0 {
		return ""
	}
	words[len(words)-1] = singularize(words[len(words)-1])

	norm := strings.Join(words, " ")
	if len([]rune(norm)) < 2 || stopPhrases[norm] {
		return ""
	}
	return norm
}

// stripPunctuation keeps letters, digits, spaces, hyphens and separators inside numbers
func stripPunctuation(s string) string {
	r := []rune(s)
	var sb strings.Builder
	for i, c := range r {
		switch {
		case unicode.IsLetter(c), unicode.IsDigit(c), c == '-':
			sb.WriteRune(c)
		case unicode.IsSpace(c):
			sb.WriteRune(' ')
		case (c == '.' || c == ':' || c == ',') && i > 0 && i < len(r)-1 && unicode.IsDigit(r[i-1]) && unicode.IsDigit(r[i+1]):
			sb.WriteRune(c)
		default:
			sb.WriteRune(' ')
		}
	}
	return sb.String()
}

func singularize(w string) string {
	if s, ok := irregularPlurals[w]; ok {
		return s
	}
	n := len(w)
	switch {
	case n > 4 && strings.HasSuffix(w, "ies"):
		return w[:n-3] + "y"
	case n > 4 && (strings.HasSuffix(w, "ches") || strings.HasSuffix(w, "shes")):
		return w[:n-2]
	case n > 3 && (strings.HasSuffix(w, "xes") || strings.HasSuffix(w, "zes") || strings.HasSuffix(w, "sses")):
		return w[:n-2]
	case n > 3 && strings.HasSuffix(w, "ses"):
		return w[:n-1]
	case n > 3 && strings.HasSuffix(w, "s") &&
		!strings.HasSuffix(w, "ss") && !strings.HasSuffix(w, "us") && !strings.HasSuffix(w, "is"):
		return w[:n-1]
	}
	return w
}
