package pipeline

import (
	"fmt"
	"strings"

	"github.com/ppiankov/aclarai/internal/model"
)

const selectionSystem = `You are the Selection stage of a claim extraction pipeline.
Decide whether the TARGET sentence contains at least one verifiable factual statement.

Select a sentence only if it is:
- verifiable: it could be checked against evidence
- declarative: it states something rather than asking or commanding
- non-trivial: it carries information beyond greetings, filler or opinion
- fact-checkable: a reasonable person could confirm or refute it

Return ONLY a JSON object:
{"selected": true, "confidence": 0.9, "reasoning": "..."}`

const disambiguationSystem = `You are the Disambiguation stage of a claim extraction pipeline.
Rewrite the TARGET sentence so it can be understood without the surrounding text.
Replace pronouns with the entities they refer to, expand ellipsis and resolve
ambiguous references using the context. Do not add facts that are not in the context.
If nothing needs to change, return the sentence unchanged.

Return ONLY a JSON object:
{"disambiguated_text": "...", "changes": ["It -> The deployment failure"], "confidence": 0.9}`

const decompositionSystem = `You are the Decomposition stage of a claim extraction pipeline.
Split the TARGET text into atomic claims. For every claim report:
- is_atomic: it states exactly one fact
- is_self_contained: it can be understood without other text
- is_verifiable: it can be checked against evidence
- confidence: between 0 and 1

Return ONLY a JSON object:
{"claim_candidates": [{"text": "...", "is_atomic": true, "is_self_contained": true, "is_verifiable": true, "confidence": 0.9, "reasoning": "..."}]}`

func selectionPrompt(cc model.ClaimifyContext) string {
	return contextPrompt(cc, cc.Current.Text)
}

func disambiguationPrompt(cc model.ClaimifyContext) string {
	return contextPrompt(cc, cc.Current.Text)
}

func decompositionPrompt(text string) string {
	return fmt.Sprintf("TARGET: %q\n\nJSON:", text)
}

func contextPrompt(cc model.ClaimifyContext, target string) string {
	var sb strings.Builder
	if pre := cc.PrecedingText(); pre != "" {
		fmt.Fprintf(&sb, "PRECEDING: %q\n", pre)
	}
	fmt.Fprintf(&sb, "TARGET: %q\n", target)
	if fol := cc.FollowingText(); fol != "" {
		fmt.Fprintf(&sb, "FOLLOWING: %q\n", fol)
	}
	sb.WriteString("\nJSON:")
	return sb.String()
}
