package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelection(t *testing.T) {
	r, err := parseSelection("```json\n{\"selected\": true, \"confidence\": 0.8, \"reasoning\": \"factual\"}\n```")
	require.NoError(t, err)
	assert.True(t, *r.Selected)
	assert.Equal(t, 0.8, r.Confidence)

	r, err = parseSelection(`Sure! Here you go: {"selected": false, "confidence": 0.9} Hope that helps.`)
	require.NoError(t, err)
	assert.False(t, *r.Selected)

	_, err = parseSelection(`{"confidence": 0.9}`)
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = parseSelection(`{"selected": true, "confidence": 1.7}`)
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = parseSelection("I cannot answer that")
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = parseSelection(`{"selected": tru`)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestParseDisambiguation(t *testing.T) {
	r, err := parseDisambiguation(`{"disambiguated_text": "  The outage began.  ", "changes": ["It -> The outage"], "confidence": 0.7}`)
	require.NoError(t, err)
	assert.Equal(t, "The outage began.", r.DisambiguatedText)
	assert.Equal(t, []string{"It -> The outage"}, r.Changes)

	_, err = parseDisambiguation(`{"disambiguated_text": "", "confidence": 0.7}`)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestParseDecomposition(t *testing.T) {
	r, err := parseDecomposition(`{"claim_candidates": [
		{"text": "A failed.", "is_atomic": true, "is_self_contained": true, "is_verifiable": true, "confidence": 0.9},
		{"text": "  ", "confidence": 0.9},
		{"text": "B rose.", "is_atomic": true, "confidence": 0.4}
	]}`)
	require.NoError(t, err)
	require.Len(t, r.ClaimCandidates, 2)
	assert.True(t, r.ClaimCandidates[0].PassesCriteria())
	assert.False(t, r.ClaimCandidates[1].PassesCriteria())

	r, err = parseDecomposition(`{"claim_candidates": []}`)
	require.NoError(t, err)
	assert.Empty(t, r.ClaimCandidates)

	_, err = parseDecomposition(`{"claim_candidates": [{"text": "x", "confidence": -1}]}`)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
