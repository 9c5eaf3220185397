package extract

import (
	"strings"
	"unicode"

	"github.com/tsawler/prose/v3"
)

// Segmenter splits a paragraph into sentences
type Segmenter interface {
	Split(text string) []string
}

// NewSegmenter returns the segmenter named in configuration ("rule" or "prose")
func NewSegmenter(name string) Segmenter {
	if strings.EqualFold(name, "prose") {
		return ProseSegmenter{}
	}
	return NewRuleSegmenter()
}

// RuleSegmenter splits after ., ! or ? when whitespace and a sentence start follow
type RuleSegmenter struct {
	abbreviations map[string]bool
}

var defaultAbbreviations = []string{
	"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st", "vs", "etc",
	"e.g", "i.e", "cf", "al", "inc", "ltd", "co", "corp", "fig", "no",
	"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
	"u.s", "u.k",
}

// NewRuleSegmenter creates a segmenter with the built-in abbreviation list
func NewRuleSegmenter() *RuleSegmenter {
	abbr := make(map[string]bool, len(defaultAbbreviations))
	for _, a := range defaultAbbreviations {
		abbr[a] = true
	}
	return &RuleSegmenter{abbreviations: abbr}
}

func (s *RuleSegmenter) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	var out []string
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// Absorb runs like "?!" and closing quotes or brackets
		end := i + 1
		for end < len(runes) && strings.ContainsRune(".!?\"')]”’", runes[end]) {
			end++
		}
		if end >= len(runes) || !unicode.IsSpace(runes[end]) {
			i = end - 1
			continue
		}
		next := end
		for next < len(runes) && unicode.IsSpace(runes[next]) {
			next++
		}
		if next >= len(runes) || !startsSentence(runes[next]) {
			i = end - 1
			continue
		}
		if r == '.' && s.isAbbreviation(runes[start:i]) {
			i = end - 1
			continue
		}

		if sent := strings.TrimSpace(string(runes[start:end])); sent != "" {
			out = append(out, sent)
		}
		start = next
		i = next - 1
	}

	if start < len(runes) {
		if sent := strings.TrimSpace(string(runes[start:])); sent != "" {
			out = append(out, sent)
		}
	}
	return out
}

// isAbbreviation checks the word right before a period
func (s *RuleSegmenter) isAbbreviation(before []rune) bool {
	j := len(before)
	for j > 0 && !unicode.IsSpace(before[j-1]) && before[j-1] != '(' {
		j--
	}
	word := strings.ToLower(string(before[j:]))
	if word == "" {
		return false
	}
	if s.abbreviations[word] {
		return true
	}
	// Single-letter initials such as "J. Smith"
	w := []rune(word)
	return len(w) == 1 && unicode.IsLetter(w[0])
}

func startsSentence(r rune) bool {
	return unicode.IsUpper(r) || unicode.IsDigit(r) || strings.ContainsRune("\"'“‘([", r)
}

// ProseSegmenter uses the prose sentence tokenizer
type ProseSegmenter struct{}

func (ProseSegmenter) Split(text string) []string {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return NewRuleSegmenter().Split(text)
	}
	var out []string
	for _, sent := range doc.Sentences() {
		if t := strings.TrimSpace(sent.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}
